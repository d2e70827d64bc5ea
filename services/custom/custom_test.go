package custom

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"captionkit/core"
	stthandler "captionkit/handlers/stt"
	"captionkit/utils/audio"

	"github.com/bytedance/sonic"
)

func TestTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth = %s", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "audio" {
			t.Errorf("body = %q", body)
		}
		w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	tr, err := NewTranscriber(EndpointConfig{URL: srv.URL, APIKey: "secret", Name: "backup"})
	if err != nil {
		t.Fatal(err)
	}
	if tr.ID() != "backup" {
		t.Errorf("ID = %s", tr.ID())
	}
	got, err := tr.Transcribe(context.Background(), stthandler.Request{Audio: []byte("audio")})
	if err != nil || got != "hello" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestTranscriberStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, _ := NewTranscriber(EndpointConfig{URL: srv.URL})
	if _, err := tr.Transcribe(context.Background(), stthandler.Request{Audio: []byte("a")}); err == nil {
		t.Error("expected error")
	}
}

func TestTranslator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req core.TranslationRequest
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if req.OriginalText != "hola" || req.TargetLang != "en" || req.SourceLang != "" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"corrected":"Hola.","translated":"Hello."}`))
	}))
	defer srv.Close()

	tr, err := NewTranslator(EndpointConfig{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := tr.CorrectAndTranslate(context.Background(), core.TranslationRequest{OriginalText: "hola", TargetLang: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if got.CorrectedText != "Hola." || got.TranslatedText != "Hello." {
		t.Errorf("got %+v", got)
	}
}

func TestSynthesizerFormats(t *testing.T) {
	pcm := audio.Tone(0.2, 440, 16000, 20*time.Millisecond)
	wav, err := audio.PCMBytesToWavBytes(pcm, 1, 16000)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantRate    int
		wantLen     int
	}{
		{"wav", "audio/wav", wav, 16000, len(pcm)},
		{"raw pcm", "application/octet-stream", pcm, 24000, len(pcm)},
		{"base64 json", "application/json", []byte(`{"audio":"` + base64.StdEncoding.EncodeToString(wav) + `"}`), 16000, len(pcm)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				var req synthesisRequest
				sonic.Unmarshal(body, &req)
				if req.Text != "hi" || req.VoiceID != "v1" {
					t.Errorf("request = %+v", req)
				}
				w.Header().Set("Content-Type", tt.contentType)
				w.Write(tt.body)
			}))
			defer srv.Close()

			s, err := NewSynthesizer(EndpointConfig{URL: srv.URL})
			if err != nil {
				t.Fatal(err)
			}
			chunk, err := s.Synthesize(context.Background(), "hi", "v1")
			if err != nil {
				t.Fatal(err)
			}
			if chunk.SampleRate != tt.wantRate || len(chunk.Data) != tt.wantLen {
				t.Errorf("got %d Hz, %d bytes", chunk.SampleRate, len(chunk.Data))
			}
		})
	}
}

func TestMissingURL(t *testing.T) {
	if _, err := NewTranscriber(EndpointConfig{}); err == nil {
		t.Error("missing url accepted")
	}
}
