package capture

import (
	"fmt"
	"sync"
	"time"

	"captionkit/core"
	"captionkit/utils/audio"

	"github.com/google/uuid"
)

const MimeTypeWAV = "audio/wav"

type Config struct {
	MaxDuration time.Duration `json:"max_duration"` // Hard ceiling on one utterance; longer speech is force-sealed.
	MinBytes    int           `json:"min_bytes"`    // Sealed clips smaller than this are discarded.
	PreRoll     time.Duration `json:"pre_roll"`     // Audio kept from before a start signal.
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxDuration: 10 * time.Second,
		MinBytes:    6400, // 200ms of 16kHz mono
		PreRoll:     time.Second,
	}
}

// Result is the outcome of closing a recording.
type Result struct {
	Utterance core.Utterance
	Discarded bool // Below MinBytes; must not be forwarded.
}

type recording struct {
	id        string
	startedAt time.Time
	chunks    []core.AudioChunk
}

// Recorder buffers at most one open utterance at a time. Every chunk passes
// through Append so the pre-roll stays current whether or not a recording is
// open.
type Recorder struct {
	config Config

	mu     sync.Mutex
	ring   []core.AudioChunk
	open   *recording
	latest time.Time
}

func NewRecorder(config Config) *Recorder {
	return &Recorder{config: config}
}

// IsRecording reports whether an utterance is open.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open != nil
}

// Start opens a recording at from, pulling in any pre-roll audio captured
// since then. It returns false and leaves the open buffer untouched if a
// recording is already open.
func (r *Recorder) Start(from time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open != nil {
		return false
	}

	rec := &recording{id: uuid.New().String(), startedAt: from}
	for _, c := range r.ring {
		if !c.Timestamp.Add(c.Duration()).After(from) {
			continue
		}
		rec.chunks = append(rec.chunks, c)
	}
	if len(rec.chunks) > 0 && rec.chunks[0].Timestamp.Before(from) {
		rec.startedAt = rec.chunks[0].Timestamp
	}
	r.open = rec
	return true
}

// Append records chunk. When the open recording reaches MaxDuration it is
// sealed and returned with forced set.
func (r *Recorder) Append(chunk core.AudioChunk) (res Result, forced bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pushRing(chunk)
	if r.open == nil {
		return Result{}, false, nil
	}
	r.open.chunks = append(r.open.chunks, chunk)
	if pcmDuration(r.open.chunks) < r.config.MaxDuration {
		return Result{}, false, nil
	}

	res, err = r.seal(time.Time{}, true)
	return res, true, err
}

// Stop seals the open recording. Chunks starting at or after trimFrom are
// dropped as trailing silence; a zero trimFrom keeps everything. ok is false
// when nothing was open.
func (r *Recorder) Stop(trimFrom time.Time) (res Result, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open == nil {
		return Result{}, false, nil
	}
	res, err = r.seal(trimFrom, false)
	return res, true, err
}

// Discard drops the open recording without producing an utterance.
func (r *Recorder) Discard() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	had := r.open != nil
	r.open = nil
	r.ring = nil
	return had
}

func (r *Recorder) seal(trimFrom time.Time, forced bool) (Result, error) {
	rec := r.open
	r.open = nil

	chunks := rec.chunks
	if !trimFrom.IsZero() {
		kept := chunks[:0:0]
		for _, c := range chunks {
			if c.Timestamp.Before(trimFrom) {
				kept = append(kept, c)
			}
		}
		chunks = kept
	}

	res := Result{Utterance: core.Utterance{
		ID:        rec.id,
		StartedAt: rec.startedAt,
		MimeType:  MimeTypeWAV,
		Forced:    forced,
	}}

	size := 0
	for _, c := range chunks {
		size += len(c.Data)
	}
	if size == 0 {
		res.Discarded = true
		return res, nil
	}

	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c.Data...)
	}
	first := chunks[0]
	wav, err := audio.PCMBytesToWavBytes(pcm, first.Channels, first.SampleRate)
	if err != nil {
		return res, fmt.Errorf("capture: encode utterance %s: %w", rec.id, err)
	}

	res.Utterance.Audio = wav
	res.Utterance.Duration = pcmDuration(chunks)
	res.Discarded = len(wav) < r.config.MinBytes
	return res, nil
}

func (r *Recorder) pushRing(chunk core.AudioChunk) {
	end := chunk.Timestamp.Add(chunk.Duration())
	if end.After(r.latest) {
		r.latest = end
	}
	r.ring = append(r.ring, chunk)

	cutoff := r.latest.Add(-r.config.PreRoll)
	drop := 0
	for drop < len(r.ring) && !r.ring[drop].Timestamp.Add(r.ring[drop].Duration()).After(cutoff) {
		drop++
	}
	if drop > 0 {
		r.ring = append(r.ring[:0:0], r.ring[drop:]...)
	}
}

func pcmDuration(chunks []core.AudioChunk) time.Duration {
	var d time.Duration
	for _, c := range chunks {
		d += c.Duration()
	}
	return d
}
