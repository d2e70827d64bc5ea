package protocol

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"captionkit/core"
)

func sampleCaption() core.Caption {
	return core.Caption{
		ID:             "c-1",
		SpeakerID:      "alice",
		SpeakerName:    "Alice",
		OriginalText:   "Good morning everyone",
		TranslatedText: "Доброе утро всем",
		TargetLang:     "ru",
		Timestamp:      time.Date(2024, 5, 1, 9, 30, 0, 123000000, time.UTC),
	}
}

func TestCaptionRoundTrip(t *testing.T) {
	want := sampleCaption()
	payload, err := EncodeCaption(want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(payload, "alice", "bob")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Caption == nil || got.Audio != nil {
		t.Fatalf("got %+v, want caption only", got)
	}
	c := *got.Caption
	if !c.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp = %s, want %s", c.Timestamp, want.Timestamp)
	}
	c.Timestamp = want.Timestamp
	if c != want {
		t.Errorf("got %+v, want %+v", c, want)
	}
	if got.SenderID != "alice" {
		t.Errorf("sender = %q", got.SenderID)
	}
}

func TestOwnMessagesIgnored(t *testing.T) {
	payload, _ := EncodeCaption(sampleCaption())

	if _, err := Decode(payload, "alice", "alice"); !errors.Is(err, ErrOwnMessage) {
		t.Errorf("own sender: got %v, want ErrOwnMessage", err)
	}
	// a loopback transport may not report the sender
	if _, err := Decode(payload, "", "alice"); !errors.Is(err, ErrOwnMessage) {
		t.Errorf("own speaker id: got %v, want ErrOwnMessage", err)
	}
}

func TestTranslationAudioRoundTrip(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt data")
	payload, err := EncodeTranslationAudio(audio, "Hola", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(payload, "alice", "bob")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Audio == nil || !bytes.Equal(got.Audio.Audio, audio) {
		t.Fatalf("audio mismatch: %+v", got.Audio)
	}
	if got.Audio.Text != "Hola" || got.Audio.SenderName != "Alice" {
		t.Errorf("got %+v", got.Audio)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `{{{`, core.ErrMalformedMessage},
		{"missing type", `{"text":"x"}`, core.ErrMalformedMessage},
		{"caption without body", `{"type":"caption"}`, core.ErrMalformedMessage},
		{"bad base64", `{"type":"translation_audio","audioBase64":"%%%"}`, core.ErrMalformedMessage},
		{"timer", `{"type":"timer","seconds":30}`, core.ErrUnknownMessage},
		{"reaction", `{"type":"reaction","emoji":"👍"}`, core.ErrUnknownMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), "carol", "bob")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := Marshal(MsgPushToTalk, PushToTalkPayload{Down: true})
	if err != nil {
		t.Fatal(err)
	}
	msgType, raw, err := Unmarshal(data)
	if err != nil || msgType != MsgPushToTalk {
		t.Fatalf("type=%q err=%v", msgType, err)
	}
	p, err := UnmarshalPayload[PushToTalkPayload](raw)
	if err != nil || !p.Down {
		t.Errorf("payload=%+v err=%v", p, err)
	}

	if _, _, err := Unmarshal([]byte(`{"payload":{}}`)); err == nil {
		t.Error("envelope without type should fail")
	}
}
