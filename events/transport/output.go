package transport

import "captionkit/core"

type TransportAudioInputEvent struct {
	AudioChunk core.AudioChunk
}

func (e *TransportAudioInputEvent) GetId() string {
	return "transport.audio_input"
}

// TransportDataInputEvent is a raw payload received on the data channel,
// before it has been decoded.
type TransportDataInputEvent struct {
	Payload  []byte
	SenderID string
}

func (e *TransportDataInputEvent) GetId() string {
	return "transport.data_input"
}
