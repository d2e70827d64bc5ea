package stt

import (
	"time"

	"captionkit/core"
)

// STTFinalOutputEvent is a fresh transcription that still needs correcting
// and translating.
type STTFinalOutputEvent struct {
	UtteranceID string
	Fingerprint string
	StartedAt   time.Time
	Result      core.TranscriptionResult
}

func (e *STTFinalOutputEvent) GetId() string {
	return "stt.final_output"
}

// STTCachedOutputEvent replays an earlier corrected translation for audio
// with the same fingerprint. No provider was called.
type STTCachedOutputEvent struct {
	UtteranceID string
	Fingerprint string
	StartedAt   time.Time
	Result      core.TranslationResult
}

func (e *STTCachedOutputEvent) GetId() string {
	return "stt.cached_output"
}
