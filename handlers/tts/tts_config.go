package tts

import (
	"time"

	"captionkit/core"
)

type TTSConfig struct {
	Feature    core.Feature  `json:"feature"`  // Only the translation feature speaks captions.
	VoiceID    string        `json:"voice_id"` // Provider-specific voice.
	Timeout    time.Duration `json:"timeout"`
	SenderName string        `json:"sender_name"` // Shown to peers alongside the audio.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		Feature: core.FeatureCaptions,
		Timeout: 10 * time.Second,
	}
}
