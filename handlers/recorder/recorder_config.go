package recorder

import (
	"captionkit/capture"
	"captionkit/core"
)

type RecorderConfig struct {
	Capture capture.Config `json:"capture"`
	Mode    core.Mode      `json:"mode"` // Selects whether VAD transitions or push-to-talk keys open utterances.
}

// DefaultConfig returns a RecorderConfig with sensible defaults
func DefaultConfig() RecorderConfig {
	return RecorderConfig{
		Capture: capture.DefaultConfig(),
		Mode:    core.ModeAuto,
	}
}
