package stt

import "context"

// Request is one sealed utterance handed to a transcription provider.
type Request struct {
	Audio    []byte
	MimeType string
	Language string
}

// ISTTService transcribes a complete audio clip.
type ISTTService interface {
	ID() string
	Transcribe(ctx context.Context, req Request) (string, error)
}
