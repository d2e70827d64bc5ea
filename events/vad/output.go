package vad

import (
	"time"

	"captionkit/core"
)

// VADAudioChunkEvent carries a microphone chunk past the detector after its
// energy has been measured.
type VADAudioChunkEvent struct {
	AudioChunk core.AudioChunk
	RMS        float64
}

func (e *VADAudioChunkEvent) GetId() string {
	return "vad.audio.chunk"
}

// VadUserSpeechStartedEvent fires once speech has lasted MinSpeechDuration.
// SpeechStartedAt is the first sample above threshold.
type VadUserSpeechStartedEvent struct {
	SpeechStartedAt time.Time
	DetectedAt      time.Time
}

func (e *VadUserSpeechStartedEvent) GetId() string {
	return "vad.user_speech.started"
}

// VadUserSpeechEndedEvent fires once silence has lasted SilenceDuration.
// SilenceStartedAt is the first sample below threshold.
type VadUserSpeechEndedEvent struct {
	SilenceStartedAt time.Time
	DetectedAt       time.Time
}

func (e *VadUserSpeechEndedEvent) GetId() string {
	return "vad.user_speech.ended"
}

// VadLevelEvent reports the smoothed input level, 0 to 100.
type VadLevelEvent struct {
	Level int
}

func (e *VadLevelEvent) GetId() string {
	return "vad.level"
}
