package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// A control-plane frame is one JSON object: {"type": "...", "payload": {...}}.

var (
	ErrMissingType = errors.New("protocol: frame has no type")
	ErrUnknownType = errors.New("protocol: unknown frame type")
)

var frameTypes = map[MessageType]bool{
	MsgRegister:        true,
	MsgHeartbeat:       true,
	MsgLog:             true,
	MsgLogEnd:          true,
	MsgStatus:          true,
	MsgCaption:         true,
	MsgLevel:           true,
	MsgConfigUpdate:    true,
	MsgSetMode:         true,
	MsgPushToTalk:      true,
	MsgRestartPipeline: true,
	MsgShutdown:        true,
	MsgAck:             true,
}

// Known reports whether t is a frame type the agent sends or handles.
func (t MessageType) Known() bool {
	return frameTypes[t]
}

// Marshal frames payload under msgType. A nil payload leaves the payload
// field out and a json.RawMessage is embedded as is.
func Marshal(msgType MessageType, payload any) ([]byte, error) {
	if !msgType.Known() {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, msgType)
	}
	env := Envelope{Type: msgType}
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		env.Payload = p
	default:
		b, err := sonic.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s payload: %w", msgType, err)
		}
		env.Payload = b
	}
	return sonic.Marshal(env)
}

// Unmarshal splits a frame into its type and raw payload. Unknown types are
// returned to the caller, which decides whether to ignore them.
func Unmarshal(data []byte) (MessageType, json.RawMessage, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if env.Type == "" {
		return "", nil, ErrMissingType
	}
	return env.Type, env.Payload, nil
}

// UnmarshalPayload decodes a frame payload. An absent or null payload
// yields the zero T.
func UnmarshalPayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("protocol: decode %T payload: %w", v, err)
	}
	return v, nil
}
