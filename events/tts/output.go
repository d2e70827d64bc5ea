package tts

import "captionkit/core"

// TranslationAudioEvent is a spoken translation ready for the playback queue,
// either synthesized here (Clip.Remote false) or received from a peer.
type TranslationAudioEvent struct {
	Clip core.AudioClip
}

func (e *TranslationAudioEvent) GetId() string {
	return "tts.translation_audio"
}
