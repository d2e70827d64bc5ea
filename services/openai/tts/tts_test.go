package tts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"captionkit/core"

	"github.com/bytedance/sonic"
)

func TestSynthesize(t *testing.T) {
	pcm := make([]byte, 480)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if req["voice"] != "nova" || req["response_format"] != "pcm" || req["input"] != "Bonjour" {
			t.Errorf("unexpected request %v", req)
		}
		w.Header().Set("Content-Type", "audio/pcm")
		w.Write(pcm)
	}))
	defer srv.Close()

	svc, err := NewOpenAITTSService(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Speed: 1})
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := svc.Synthesize(context.Background(), "Bonjour", "nova")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(chunk.Data) != len(pcm) || chunk.SampleRate != 24000 || chunk.Channels != 1 || chunk.Format != core.PCM {
		t.Errorf("got %d bytes at %d Hz, %d ch, %s", len(chunk.Data), chunk.SampleRate, chunk.Channels, chunk.Format)
	}
}

func TestSynthesizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	svc, err := NewOpenAITTSService(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Synthesize(context.Background(), "hi", ""); err == nil {
		t.Error("expected error")
	}
}
