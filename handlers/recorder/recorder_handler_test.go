package recorder

import (
	"context"
	"testing"
	"time"

	"captionkit/core"
	capevents "captionkit/events/capture"
	"captionkit/events/control"
	"captionkit/events/vad"
	"captionkit/utils/audio"
)

const rate = 16000

var t0 = time.Unix(1000, 0)

func startHandler(t *testing.T, h *RecorderHandler) (chan<- *core.EventPacket, <-chan *core.EventPacket) {
	t.Helper()
	in := make(chan *core.EventPacket, 64)
	next := make(chan *core.EventPacket, 64)
	top := make(chan *core.EventPacket, 64)
	ctx, cancel := context.WithCancel(core.ContextWithSessionLogger(context.Background(), core.NewDiscardLogger()))
	t.Cleanup(cancel)
	if err := h.Initialize(in, next, top, ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return in, next
}

func packet(ev core.IEvent) *core.EventPacket {
	return core.NewEventPacket(ev, core.EventRelayDestinationNextService, "test")
}

// speech sends n chunks of 100ms tone starting at from and returns the end time.
func speech(in chan<- *core.EventPacket, from time.Time, n int) time.Time {
	at := from
	for i := 0; i < n; i++ {
		in <- packet(&vad.VADAudioChunkEvent{AudioChunk: core.AudioChunk{
			Data:       audio.Tone(0.3, 440, rate, 100*time.Millisecond),
			SampleRate: rate,
			Channels:   1,
			Timestamp:  at,
		}})
		at = at.Add(100 * time.Millisecond)
	}
	return at
}

type outcome struct {
	sealed    []core.Utterance
	discarded int
	forwarded []string
}

func drain(out <-chan *core.EventPacket, quiet time.Duration) outcome {
	var o outcome
	for {
		select {
		case p := <-out:
			switch ev := p.Event.(type) {
			case *capevents.UtteranceSealedEvent:
				o.sealed = append(o.sealed, ev.Utterance)
			case *capevents.UtteranceDiscardedEvent:
				o.discarded++
			default:
				o.forwarded = append(o.forwarded, ev.GetId())
			}
		case <-time.After(quiet):
			return o
		}
	}
}

func testConfig(mode core.Mode) RecorderConfig {
	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.Capture.MinBytes = 1000
	return cfg
}

func TestAutoModeSealsOnSpeechEnd(t *testing.T) {
	h := NewRecorderHandler(testConfig(core.ModeAuto), nil)
	in, out := startHandler(t, h)

	in <- packet(&vad.VadUserSpeechStartedEvent{SpeechStartedAt: t0, DetectedAt: t0.Add(300 * time.Millisecond)})
	end := speech(in, t0, 12)
	// Trailing silence from 1s on is trimmed.
	in <- packet(&vad.VadUserSpeechEndedEvent{SilenceStartedAt: t0.Add(time.Second), DetectedAt: end})

	o := drain(out, 150*time.Millisecond)
	if len(o.sealed) != 1 {
		t.Fatalf("got %d utterances, want 1", len(o.sealed))
	}
	if d := o.sealed[0].Duration; d != time.Second {
		t.Errorf("duration = %v, want 1s", d)
	}
	if len(o.forwarded) != 2 {
		t.Errorf("forwarded %v, want both VAD transitions", o.forwarded)
	}
}

func TestModeGating(t *testing.T) {
	tests := []struct {
		name  string
		mode  core.Mode
		start core.IEvent
		stop  core.IEvent
	}{
		{
			name:  "auto ignores keys",
			mode:  core.ModeAuto,
			start: &control.PushToTalkDownEvent{At: t0},
			stop:  &control.PushToTalkUpEvent{At: t0.Add(time.Second)},
		},
		{
			name:  "push to talk ignores vad",
			mode:  core.ModePushToTalk,
			start: &vad.VadUserSpeechStartedEvent{SpeechStartedAt: t0},
			stop:  &vad.VadUserSpeechEndedEvent{SilenceStartedAt: t0.Add(time.Second)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRecorderHandler(testConfig(tt.mode), nil)
			in, out := startHandler(t, h)

			in <- packet(tt.start)
			speech(in, t0, 10)
			in <- packet(tt.stop)

			if o := drain(out, 150*time.Millisecond); len(o.sealed) != 0 {
				t.Errorf("got %d utterances, want none", len(o.sealed))
			}
			if h.IsRecording() {
				t.Error("recording opened by the wrong signal")
			}
		})
	}
}

func TestPushToTalkRecordsWhileHeld(t *testing.T) {
	h := NewRecorderHandler(testConfig(core.ModePushToTalk), nil)
	in, out := startHandler(t, h)

	in <- packet(&control.PushToTalkDownEvent{At: t0})
	end := speech(in, t0, 8)
	in <- packet(&control.PushToTalkUpEvent{At: end})

	o := drain(out, 150*time.Millisecond)
	if len(o.sealed) != 1 {
		t.Fatalf("got %d utterances, want 1", len(o.sealed))
	}
	if d := o.sealed[0].Duration; d != 800*time.Millisecond {
		t.Errorf("duration = %v, want 800ms", d)
	}
	if len(o.forwarded) != 0 {
		t.Errorf("key events leaked downstream: %v", o.forwarded)
	}
}

func TestForcedSealContinues(t *testing.T) {
	cfg := testConfig(core.ModePushToTalk)
	cfg.Capture.MaxDuration = 500 * time.Millisecond
	h := NewRecorderHandler(cfg, nil)
	in, out := startHandler(t, h)

	in <- packet(&control.PushToTalkDownEvent{At: t0})
	end := speech(in, t0, 12)
	in <- packet(&control.PushToTalkUpEvent{At: end})

	o := drain(out, 150*time.Millisecond)
	if len(o.sealed) != 3 {
		t.Fatalf("got %d utterances, want 3", len(o.sealed))
	}
	wantDur := []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 200 * time.Millisecond}
	wantForced := []bool{true, true, false}
	for i, u := range o.sealed {
		if u.Duration != wantDur[i] || u.Forced != wantForced[i] {
			t.Errorf("utterance %d: duration %v forced %v, want %v %v", i, u.Duration, u.Forced, wantDur[i], wantForced[i])
		}
	}
	if !o.sealed[1].StartedAt.Equal(t0.Add(500 * time.Millisecond)) {
		t.Errorf("continuation started at %v, want the end of the sealed audio", o.sealed[1].StartedAt)
	}
	if o.sealed[0].ID == o.sealed[1].ID {
		t.Error("continuation reused the utterance id")
	}
}

func TestUndersizedClipIsDiscarded(t *testing.T) {
	cfg := testConfig(core.ModePushToTalk)
	cfg.Capture.MinBytes = 64 * 1024
	h := NewRecorderHandler(cfg, nil)
	in, out := startHandler(t, h)

	in <- packet(&control.PushToTalkDownEvent{At: t0})
	end := speech(in, t0, 2)
	in <- packet(&control.PushToTalkUpEvent{At: end})

	o := drain(out, 150*time.Millisecond)
	if len(o.sealed) != 0 || o.discarded != 1 {
		t.Errorf("sealed %d discarded %d, want 0 and 1", len(o.sealed), o.discarded)
	}
}

func TestCleanupDiscardsOpenRecording(t *testing.T) {
	h := NewRecorderHandler(testConfig(core.ModePushToTalk), nil)
	in, out := startHandler(t, h)

	in <- packet(&control.PushToTalkDownEvent{At: t0})
	speech(in, t0, 5)
	drain(out, 100*time.Millisecond)
	if !h.IsRecording() {
		t.Fatal("recording should be open while the key is held")
	}

	if err := h.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if h.IsRecording() {
		t.Error("recording still open after cleanup")
	}
	if o := drain(out, 100*time.Millisecond); len(o.sealed) != 0 {
		t.Errorf("cleanup produced %d utterances", len(o.sealed))
	}
}
