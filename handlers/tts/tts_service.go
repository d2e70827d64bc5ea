package tts

import (
	"context"

	"captionkit/core"
)

// ITTSService speaks one line of text. The returned chunk carries its own
// format and sample rate.
type ITTSService interface {
	ID() string
	Synthesize(ctx context.Context, text, voiceID string) (core.AudioChunk, error)
}
