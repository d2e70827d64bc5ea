package energy

import (
	"math"
	"testing"
	"time"

	"captionkit/core"
	"captionkit/utils/audio"
)

const sampleRate = 16000

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.Threshold = 0.02
	cfg.SilenceDuration = 2000 * time.Millisecond
	cfg.MinSpeechDuration = 300 * time.Millisecond
	return cfg
}

// feed pushes pcm through a windower and detector in 50ms chunks starting at
// from, returning every transition seen.
func feed(t *testing.T, d *Detector, w *Windower, pcm []byte, from time.Time) ([]Transition, time.Time) {
	t.Helper()
	const chunkBytes = sampleRate / 20 * 2
	var out []Transition
	at := from
	for off := 0; off < len(pcm); off += chunkBytes {
		end := min(off+chunkBytes, len(pcm))
		for _, f := range w.Push(core.AudioChunk{Data: pcm[off:end], SampleRate: sampleRate, Channels: 1, Timestamp: at}) {
			out = append(out, d.Observe(f.RMS, f.At)...)
		}
		at = at.Add(50 * time.Millisecond)
	}
	return out, at
}

func TestSpeechBurstThenSilence(t *testing.T) {
	d := NewDetector(scenarioConfig())
	w := NewWindower(50 * time.Millisecond)

	speech, at := feed(t, d, w, audio.Tone(0.1, 440, sampleRate, 1200*time.Millisecond), epoch)
	silence, _ := feed(t, d, w, audio.Silence(sampleRate, 2500*time.Millisecond), at)
	transitions := append(speech, silence...)

	if len(transitions) != 2 {
		t.Fatalf("got %d transitions, want 2: %+v", len(transitions), transitions)
	}
	start, end := transitions[0], transitions[1]
	if start.Kind != SpeechStarted || end.Kind != SpeechEnded {
		t.Fatalf("got kinds %s, %s", start.Kind, end.Kind)
	}
	if !start.Since.Equal(epoch) {
		t.Errorf("speech start = %s, want %s", start.Since.Sub(epoch), time.Duration(0))
	}
	if got := start.At.Sub(start.Since); got < 300*time.Millisecond {
		t.Errorf("SpeechStarted after %s, want >= 300ms", got)
	}

	spoken := end.Since.Sub(start.Since)
	if math.Abs(float64(spoken-1200*time.Millisecond)) > float64(100*time.Millisecond) {
		t.Errorf("speech span = %s, want ~1.2s", spoken)
	}
	if got := end.At.Sub(end.Since); got < 2*time.Second {
		t.Errorf("SpeechEnded after %s of silence, want >= 2s", got)
	}
	if d.State() != Idle {
		t.Errorf("state = %s, want idle", d.State())
	}
}

func TestShortBlipDoesNotStartSpeech(t *testing.T) {
	d := NewDetector(scenarioConfig())
	w := NewWindower(50 * time.Millisecond)

	pcm := append(audio.Tone(0.1, 440, sampleRate, 150*time.Millisecond), audio.Silence(sampleRate, time.Second)...)
	if got, _ := feed(t, d, w, pcm, epoch); len(got) != 0 {
		t.Errorf("got transitions %+v, want none", got)
	}
}

func TestSpeechResumingCancelsPendingEnd(t *testing.T) {
	d := NewDetector(scenarioConfig())
	w := NewWindower(50 * time.Millisecond)

	var pcm []byte
	pcm = append(pcm, audio.Tone(0.1, 440, sampleRate, time.Second)...)
	pcm = append(pcm, audio.Silence(sampleRate, time.Second)...)
	pcm = append(pcm, audio.Tone(0.1, 440, sampleRate, time.Second)...)
	pcm = append(pcm, audio.Silence(sampleRate, 2500*time.Millisecond)...)

	got, _ := feed(t, d, w, pcm, epoch)
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want one start and one end: %+v", len(got), got)
	}
	if span := got[1].Since.Sub(got[0].Since); span < 2900*time.Millisecond {
		t.Errorf("utterance span %s, want about 3s", span)
	}
}

func TestPushToTalkSuppressesTransitions(t *testing.T) {
	d := NewDetector(scenarioConfig())
	d.SetPushToTalk(true)
	w := NewWindower(50 * time.Millisecond)

	got, _ := feed(t, d, w, audio.Tone(0.1, 440, sampleRate, 2*time.Second), epoch)
	if len(got) != 0 {
		t.Errorf("got transitions %+v in push-to-talk mode", got)
	}
	if d.Level() == 0 {
		t.Error("level meter should keep running in push-to-talk mode")
	}
}

func TestLevel(t *testing.T) {
	d := NewDetector(scenarioConfig())
	for i := 0; i < 40; i++ {
		d.Observe(0.5, epoch.Add(time.Duration(i)*50*time.Millisecond))
	}
	if d.Level() != 100 {
		t.Errorf("level = %d, want clamped 100", d.Level())
	}
	for i := 0; i < 40; i++ {
		d.Observe(0.01, epoch.Add(time.Duration(40+i)*50*time.Millisecond))
	}
	if d.Level() != 5 {
		t.Errorf("level = %d, want 5", d.Level())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"threshold too low", func(c *Config) { c.Threshold = 0.001 }, true},
		{"threshold too high", func(c *Config) { c.Threshold = 0.2 }, true},
		{"silence too short", func(c *Config) { c.SilenceDuration = 100 * time.Millisecond }, true},
		{"silence too long", func(c *Config) { c.SilenceDuration = 5 * time.Second }, true},
		{"min speech too short", func(c *Config) { c.MinSpeechDuration = 50 * time.Millisecond }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWindowerSplitsUnevenChunks(t *testing.T) {
	w := NewWindower(50 * time.Millisecond)
	pcm := audio.Tone(0.1, 440, sampleRate, 200*time.Millisecond)

	var frames []Frame
	for off := 0; off < len(pcm); off += 500 {
		end := min(off+500, len(pcm))
		ts := epoch.Add(time.Duration(off/2) * time.Second / sampleRate)
		frames = append(frames, w.Push(core.AudioChunk{Data: pcm[off:end], SampleRate: sampleRate, Channels: 1, Timestamp: ts})...)
	}
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	for i, f := range frames {
		if want := epoch.Add(time.Duration(i) * 50 * time.Millisecond); !f.At.Equal(want) {
			t.Errorf("frame %d at %s, want %s", i, f.At.Sub(epoch), want.Sub(epoch))
		}
	}
}
