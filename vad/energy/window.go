package energy

import (
	"time"

	"captionkit/core"
	"captionkit/utils/audio"
)

// Frame is one analysis window of the input.
type Frame struct {
	RMS float64
	At  time.Time
}

// Windower slices a PCM stream into fixed-length windows so the detector
// samples at a steady cadence however the microphone sizes its chunks.
type Windower struct {
	interval time.Duration
	pending  []byte
	start    time.Time
	rate     int
	channels int
}

func NewWindower(interval time.Duration) *Windower {
	return &Windower{interval: interval}
}

// Push appends a PCM chunk and returns every window it completed.
func (w *Windower) Push(chunk core.AudioChunk) []Frame {
	if chunk.SampleRate <= 0 || chunk.Channels <= 0 || len(chunk.Data) == 0 {
		return nil
	}
	if chunk.SampleRate != w.rate || chunk.Channels != w.channels {
		w.rate, w.channels = chunk.SampleRate, chunk.Channels
		w.pending = w.pending[:0]
	}
	if len(w.pending) == 0 {
		w.start = chunk.Timestamp
	}
	w.pending = append(w.pending, chunk.Data...)

	bytesPerWindow := int(int64(w.rate)*int64(w.interval)/int64(time.Second)) * 2 * w.channels
	if bytesPerWindow <= 0 {
		return nil
	}

	var frames []Frame
	for len(w.pending) >= bytesPerWindow {
		frames = append(frames, Frame{RMS: audio.RMS(w.pending[:bytesPerWindow]), At: w.start})
		w.pending = w.pending[bytesPerWindow:]
		w.start = w.start.Add(w.interval)
	}
	if len(w.pending) == 0 {
		w.pending = nil
	}
	return frames
}

func (w *Windower) Reset() {
	w.pending = nil
	w.start = time.Time{}
}
