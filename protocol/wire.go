package protocol

import (
	"encoding/base64"
	"errors"
	"fmt"

	"captionkit/core"

	"github.com/bytedance/sonic"
)

// DataTopic is the data-channel topic carrying caption traffic.
const DataTopic = "captions"

// WireType is the "type" field of a data-channel message.
type WireType string

const (
	WireCaption          WireType = "caption"
	WireTranslationAudio WireType = "translation_audio"
)

// ErrOwnMessage is returned for payloads sent by the local participant.
var ErrOwnMessage = errors.New("protocol: message from local participant")

// WireMessage is the flat JSON shape shared by every peer. Fields not used by
// a given type are omitted.
type WireMessage struct {
	Type        WireType      `json:"type"`
	Caption     *core.Caption `json:"caption,omitempty"`
	AudioBase64 string        `json:"audioBase64,omitempty"`
	Text        string        `json:"text,omitempty"`
	SenderName  string        `json:"senderName,omitempty"`
}

// Received is one decoded peer message. Exactly one of Caption and Audio is set.
type Received struct {
	SenderID string
	Caption  *core.Caption
	Audio    *TranslationAudio
}

type TranslationAudio struct {
	Audio      []byte // WAV
	Text       string
	SenderName string
}

func EncodeCaption(c core.Caption) ([]byte, error) {
	b, err := sonic.Marshal(WireMessage{Type: WireCaption, Caption: &c})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode caption %s: %w", c.ID, err)
	}
	return b, nil
}

func EncodeTranslationAudio(audio []byte, text, senderName string) ([]byte, error) {
	b, err := sonic.Marshal(WireMessage{
		Type:        WireTranslationAudio,
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		Text:        text,
		SenderName:  senderName,
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode translation audio: %w", err)
	}
	return b, nil
}

// Decode parses a data-channel payload from senderID. It returns
// ErrOwnMessage for the local participant's own traffic,
// core.ErrUnknownMessage for types this package does not handle and
// core.ErrMalformedMessage for anything it cannot parse. Callers drop the
// payload in every error case.
func Decode(payload []byte, senderID, localID string) (Received, error) {
	if localID != "" && senderID == localID {
		return Received{}, ErrOwnMessage
	}

	var msg WireMessage
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		return Received{}, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}

	out := Received{SenderID: senderID}
	switch msg.Type {
	case WireCaption:
		if msg.Caption == nil {
			return Received{}, fmt.Errorf("%w: caption message without caption", core.ErrMalformedMessage)
		}
		if localID != "" && msg.Caption.SpeakerID == localID {
			return Received{}, ErrOwnMessage
		}
		c := *msg.Caption
		out.Caption = &c
	case WireTranslationAudio:
		audio, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
		if err != nil || len(audio) == 0 {
			return Received{}, fmt.Errorf("%w: bad audioBase64", core.ErrMalformedMessage)
		}
		out.Audio = &TranslationAudio{Audio: audio, Text: msg.Text, SenderName: msg.SenderName}
	case "":
		return Received{}, fmt.Errorf("%w: missing type", core.ErrMalformedMessage)
	default:
		return Received{}, fmt.Errorf("%w: %q", core.ErrUnknownMessage, msg.Type)
	}
	return out, nil
}
