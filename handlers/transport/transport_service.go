package transport

import (
	"context"

	"captionkit/core"
)

// Microphone is the local capture device. Open fails with a core.DeviceError
// when the device cannot be used. The returned channel closes when the device
// stops.
type Microphone interface {
	Open(ctx context.Context) (<-chan core.AudioChunk, error)
	Close() error
}

// DataMessage is one payload received from a peer.
type DataMessage struct {
	Payload  []byte
	SenderID string
}

// DataChannel is the reliable, ordered broadcast channel shared with every
// peer in the call.
type DataChannel interface {
	Send(ctx context.Context, payload []byte) error
	Messages() <-chan DataMessage
	LocalIdentity() string
}

// Speaker plays one clip to completion.
type Speaker interface {
	Play(ctx context.Context, clip core.AudioClip) error
}
