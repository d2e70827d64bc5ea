package energy

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Config holds configuration for the energy detector.
type Config struct {
	Threshold         float64       `json:"threshold"`           // Smoothed RMS above which a window counts as speech, 0.005 to 0.10.
	MinSpeechDuration time.Duration `json:"min_speech_duration"` // Speech must last this long before SpeechStarted fires.
	SilenceDuration   time.Duration `json:"silence_duration"`    // Silence must last this long before SpeechEnded fires.
	Smoothing         float64       `json:"smoothing"`           // Weight of the previous level in the moving average.
	Interval          time.Duration `json:"interval"`            // Length of one analysis window.
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Threshold:         0.02,
		MinSpeechDuration: 300 * time.Millisecond,
		SilenceDuration:   1500 * time.Millisecond,
		Smoothing:         0.3,
		Interval:          50 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Threshold < 0.005 || c.Threshold > 0.10 {
		errs = append(errs, fmt.Errorf("threshold %.4f outside [0.005, 0.10]", c.Threshold))
	}
	if c.SilenceDuration < 500*time.Millisecond || c.SilenceDuration > 4*time.Second {
		errs = append(errs, fmt.Errorf("silence duration %s outside [500ms, 4s]", c.SilenceDuration))
	}
	if c.MinSpeechDuration < 300*time.Millisecond {
		errs = append(errs, fmt.Errorf("min speech duration %s below 300ms", c.MinSpeechDuration))
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		errs = append(errs, fmt.Errorf("smoothing %.2f outside [0, 1)", c.Smoothing))
	}
	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	return errors.Join(errs...)
}

type State int32

const (
	Idle State = iota
	Speaking
	TrailingSilence
)

func (s State) String() string {
	switch s {
	case Speaking:
		return "speaking"
	case TrailingSilence:
		return "trailing_silence"
	default:
		return "idle"
	}
}

type TransitionKind int

const (
	SpeechStarted TransitionKind = iota + 1
	SpeechEnded
)

func (k TransitionKind) String() string {
	if k == SpeechStarted {
		return "speech_started"
	}
	return "speech_ended"
}

// Transition is emitted when the detector crosses into or out of speech.
// For SpeechStarted, Since is the first window above threshold; for
// SpeechEnded it is the first window of the closing silence.
type Transition struct {
	Kind  TransitionKind
	Since time.Time
	At    time.Time
}

// Detector turns a stream of RMS measurements into speech transitions.
// Observe must be called from a single goroutine; State and Level may be read
// from anywhere.
type Detector struct {
	config Config

	smoothed         float64
	speechStartTime  time.Time
	silenceStartTime time.Time

	state      atomic.Int32
	level      atomic.Int32
	pushToTalk atomic.Bool
}

func NewDetector(config Config) *Detector {
	return &Detector{config: config}
}

func (d *Detector) Config() Config {
	return d.config
}

// SetPushToTalk silences transitions while keeping the level meter running.
func (d *Detector) SetPushToTalk(on bool) {
	d.pushToTalk.Store(on)
	if on {
		d.resetSpeech()
	}
}

func (d *Detector) State() State {
	return State(d.state.Load())
}

// Level is the smoothed input level scaled to 0..100.
func (d *Detector) Level() int {
	return int(d.level.Load())
}

// Observe feeds one window's RMS taken at now and returns the transitions it
// caused, if any.
func (d *Detector) Observe(rms float64, now time.Time) []Transition {
	a := d.config.Smoothing
	d.smoothed = a*d.smoothed + (1-a)*rms
	d.level.Store(int32(math.Min(100, math.Round(d.smoothed*500))))

	if d.pushToTalk.Load() {
		return nil
	}

	above := d.smoothed > d.config.Threshold
	var out []Transition

	switch d.State() {
	case Idle:
		if !above {
			d.speechStartTime = time.Time{}
			break
		}
		if d.speechStartTime.IsZero() {
			d.speechStartTime = now
		}
		if now.Sub(d.speechStartTime) >= d.config.MinSpeechDuration {
			d.state.Store(int32(Speaking))
			out = append(out, Transition{Kind: SpeechStarted, Since: d.speechStartTime, At: now})
		}
	case Speaking:
		if !above {
			d.silenceStartTime = now
			d.state.Store(int32(TrailingSilence))
			out = append(out, d.checkSilence(now)...)
		}
	case TrailingSilence:
		if above {
			d.silenceStartTime = time.Time{}
			d.state.Store(int32(Speaking))
			break
		}
		out = append(out, d.checkSilence(now)...)
	}
	return out
}

func (d *Detector) checkSilence(now time.Time) []Transition {
	if now.Sub(d.silenceStartTime) < d.config.SilenceDuration {
		return nil
	}
	t := Transition{Kind: SpeechEnded, Since: d.silenceStartTime, At: now}
	d.resetSpeech()
	return []Transition{t}
}

func (d *Detector) resetSpeech() {
	d.speechStartTime = time.Time{}
	d.silenceStartTime = time.Time{}
	d.state.Store(int32(Idle))
}

// Reset returns the detector to Idle with a zero level.
func (d *Detector) Reset() {
	d.resetSpeech()
	d.smoothed = 0
	d.level.Store(0)
}
