package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	stthandler "captionkit/handlers/stt"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("language = %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("no audio file: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"guten Tag"}`))
	}))
	defer srv.Close()

	svc, err := NewOpenAISTTService(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "whisper-large-v3", Name: "groq", Language: "de"})
	if err != nil {
		t.Fatal(err)
	}
	if svc.ID() != "groq" {
		t.Errorf("ID = %q", svc.ID())
	}
	got, err := svc.Transcribe(context.Background(), stthandler.Request{Audio: []byte("RIFF"), MimeType: "audio/wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "guten Tag" {
		t.Errorf("got %q", got)
	}
}

func TestRequiresKey(t *testing.T) {
	if _, err := NewOpenAISTTService(DefaultConfig()); err == nil {
		t.Error("missing key accepted")
	}
}
