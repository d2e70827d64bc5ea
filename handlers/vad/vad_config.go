package vad

import (
	"captionkit/core"
	"captionkit/vad/energy"
)

type VADConfig struct {
	Detector energy.Config `json:"detector"`
	Mode     core.Mode     `json:"mode"` // In push-to-talk mode the detector only meters level.
}

// DefaultConfig returns a VADConfig with sensible defaults
func DefaultConfig() VADConfig {
	return VADConfig{
		Detector: energy.DefaultConfig(),
		Mode:     core.ModeAuto,
	}
}
