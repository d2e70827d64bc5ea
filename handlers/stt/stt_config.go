package stt

import "time"

type STTConfig struct {
	ProviderTimeout time.Duration `json:"provider_timeout"` // Budget for each provider call; on expiry the next provider is tried.
	MinTextLength   int           `json:"min_text_length"`  // Shorter transcripts count as empty.
	Language        string        `json:"language"`         // Spoken language hint passed to providers. Empty means auto-detect.
}

// DefaultConfig returns a STTConfig with sensible defaults
func DefaultConfig() STTConfig {
	return STTConfig{
		ProviderTimeout: 8 * time.Second,
		MinTextLength:   2,
	}
}
