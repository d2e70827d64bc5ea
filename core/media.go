package core

import "time"

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little-endian linear PCM.
	ULAW                            // μ-law encoding format.
	ALAW                            // A-law encoding format.
)

func (f AudioEncodingFormat) String() string {
	switch f {
	case PCM:
		return "pcm"
	case ULAW:
		return "ulaw"
	case ALAW:
		return "alaw"
	default:
		return "unknown"
	}
}

type AudioChunk struct {
	Data       []byte              // Raw audio data.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
	Timestamp  time.Time           // Capture time of the first sample.
}

// Duration assumes 16-bit PCM.
func (ac AudioChunk) Duration() time.Duration {
	if ac.SampleRate == 0 || ac.Channels == 0 {
		return 0
	}
	bytesPerFrame := 2 * ac.Channels
	frames := len(ac.Data) / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(ac.SampleRate)
}

// AudioClip is a complete, playable piece of audio: a synthesized translation
// or one received from a peer.
type AudioClip struct {
	ID         string
	Data       []byte // 16-bit PCM, or WAV (header is stripped before playback).
	SampleRate int
	Channels   int
	Text       string
	SenderName string
	Remote     bool
}
