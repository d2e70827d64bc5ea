package translate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"captionkit/cache"
	"captionkit/core"
	captionevents "captionkit/events/caption"
	"captionkit/events/stt"
)

type fakeTranslator struct {
	result core.TranslationResult
	err    error
	delay  time.Duration
	calls  atomic.Int32

	mu   sync.Mutex
	last core.TranslationRequest
}

func (f *fakeTranslator) ID() string { return "fake" }

func (f *fakeTranslator) CorrectAndTranslate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return core.TranslationResult{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func startHandler(t *testing.T, h *TranslateHandler) (chan<- *core.EventPacket, <-chan *core.EventPacket) {
	t.Helper()
	in := make(chan *core.EventPacket, 16)
	next := make(chan *core.EventPacket, 16)
	top := make(chan *core.EventPacket, 16)
	ctx, cancel := context.WithCancel(core.ContextWithSessionLogger(context.Background(), core.NewDiscardLogger()))
	t.Cleanup(func() {
		cancel()
		h.Cleanup()
	})
	if err := h.Initialize(in, next, top, ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return in, next
}

func transcript(text, fingerprint string) *core.EventPacket {
	return core.NewEventPacket(&stt.STTFinalOutputEvent{
		UtteranceID: "u1",
		Fingerprint: fingerprint,
		StartedAt:   time.Unix(100, 0),
		Result:      core.TranscriptionResult{OriginalText: text, ProviderID: "p"},
	}, core.EventRelayDestinationNextService, "test")
}

func nextCaption(t *testing.T, out <-chan *core.EventPacket) core.Caption {
	t.Helper()
	select {
	case p := <-out:
		ev, ok := p.Event.(*captionevents.CaptionEvent)
		if !ok {
			t.Fatalf("got %s, want caption", p.Event.GetId())
		}
		if ev.Remote {
			t.Error("local caption marked remote")
		}
		return ev.Caption
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for caption")
		return core.Caption{}
	}
}

func testConfig() TranslateConfig {
	cfg := DefaultConfig()
	cfg.TargetLang = "es"
	cfg.SourceLang = "en"
	cfg.SpeakerID = "alice-id"
	cfg.SpeakerName = "Alice"
	cfg.Timeout = 50 * time.Millisecond
	return cfg
}

func TestTranslateSuccessPopulatesCache(t *testing.T) {
	svc := &fakeTranslator{result: core.TranslationResult{CorrectedText: "Hello, world.", TranslatedText: "Hola, mundo."}}
	c := cache.New(cache.DefaultConfig())
	in, out := startHandler(t, NewTranslateHandler(svc, c, testConfig(), nil))

	in <- transcript("  um hello   world ", "fp1")
	got := nextCaption(t, out)

	if got.OriginalText != "Hello, world." || got.TranslatedText != "Hola, mundo." {
		t.Errorf("got %+v", got)
	}
	if got.SpeakerID != "alice-id" || got.SpeakerName != "Alice" || got.TargetLang != "es" {
		t.Errorf("caption not stamped with speaker: %+v", got)
	}
	if !got.Timestamp.Equal(time.Unix(100, 0)) {
		t.Errorf("timestamp %v, want utterance start", got.Timestamp)
	}
	if got.ID == "" {
		t.Error("caption has no id")
	}

	svc.mu.Lock()
	req := svc.last
	svc.mu.Unlock()
	if req.TargetLang != "es" || req.SourceLang != "en" {
		t.Errorf("request %+v", req)
	}

	entry, ok := c.Get("fp1")
	if !ok || entry.TranslatedText != "Hola, mundo." {
		t.Errorf("cache entry = %+v, %v", entry, ok)
	}
}

func TestTranslateDegradesToRawText(t *testing.T) {
	tests := []struct {
		name       string
		svc        ITranslateService
		wantCached bool
	}{
		{"no provider", nil, true},
		{"provider error", &fakeTranslator{err: errors.New("quota")}, false},
		{"provider timeout", &fakeTranslator{delay: time.Second, result: core.TranslationResult{TranslatedText: "late"}}, false},
		{"blank answer", &fakeTranslator{result: core.TranslationResult{CorrectedText: " ", TranslatedText: ""}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cache.New(cache.DefaultConfig())
			in, out := startHandler(t, NewTranslateHandler(tt.svc, c, testConfig(), nil))

			in <- transcript("see you   tomorrow", "fp2")
			got := nextCaption(t, out)
			if got.OriginalText != "See you tomorrow" || got.TranslatedText != "See you tomorrow" {
				t.Errorf("got %+v, want normalized raw text in both fields", got)
			}
			entry, cached := c.Get("fp2")
			if cached != tt.wantCached {
				t.Fatalf("cached = %v, want %v", cached, tt.wantCached)
			}
			if cached && entry.TranslatedText != "See you tomorrow" {
				t.Errorf("cache entry = %+v", entry)
			}
		})
	}
}

func TestFillerOnlyTranscriptIsDropped(t *testing.T) {
	svc := &fakeTranslator{result: core.TranslationResult{CorrectedText: "x", TranslatedText: "y"}}
	in, out := startHandler(t, NewTranslateHandler(svc, nil, testConfig(), nil))

	in <- transcript("uh, um [music]", "fp3")
	select {
	case p := <-out:
		t.Fatalf("unexpected %s", p.Event.GetId())
	case <-time.After(100 * time.Millisecond):
	}
	if svc.calls.Load() != 0 {
		t.Error("provider called for filler-only transcript")
	}
}

func TestCachedResultSkipsProvider(t *testing.T) {
	svc := &fakeTranslator{}
	in, out := startHandler(t, NewTranslateHandler(svc, nil, testConfig(), nil))

	in <- core.NewEventPacket(&stt.STTCachedOutputEvent{
		UtteranceID: "u9",
		Result:      core.TranslationResult{CorrectedText: "Good night", TranslatedText: "Buenas noches"},
	}, core.EventRelayDestinationNextService, "test")

	got := nextCaption(t, out)
	if got.TranslatedText != "Buenas noches" {
		t.Errorf("got %+v", got)
	}
	if svc.calls.Load() != 0 {
		t.Error("provider called for a cached result")
	}
}
