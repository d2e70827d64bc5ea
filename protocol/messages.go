package protocol

import (
	"encoding/json"
	"time"

	"captionkit/core"
)

// MessageType enumerates all control-plane message types.
type MessageType string

const (
	// Agent -> UI
	MsgRegister  MessageType = "register"
	MsgHeartbeat MessageType = "heartbeat"
	MsgLog       MessageType = "log"
	MsgLogEnd    MessageType = "log_end"
	MsgStatus    MessageType = "status"
	MsgCaption   MessageType = "caption"
	MsgLevel     MessageType = "level"

	// UI -> Agent
	MsgConfigUpdate    MessageType = "config_update"
	MsgSetMode         MessageType = "set_mode"
	MsgPushToTalk      MessageType = "ptt"
	MsgRestartPipeline MessageType = "restart_pipeline"
	MsgShutdown        MessageType = "shutdown"
	MsgAck             MessageType = "ack"
)

// Envelope is the outer JSON wrapper for all control-plane WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Agent -> UI payloads ---

// RegisterPayload is sent once by the agent immediately after connecting.
type RegisterPayload struct {
	AgentID   string            `json:"agent_id"`
	Version   string            `json:"version,omitempty"`
	Identity  string            `json:"identity,omitempty"`
	RoomName  string            `json:"room_name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// HeartbeatPayload is sent periodically to keep the connection alive.
type HeartbeatPayload struct {
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"` // "idle", "running"
}

// LogPayload carries a single log entry from a session.
type LogPayload struct {
	AgentID   string   `json:"agent_id"`
	SessionID string   `json:"session_id"`
	Entry     LogEntry `json:"entry"`
}

// LogEntry is a structured log line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

type LogEndPayload struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}

// StatusPayload describes the pipeline after every start, stop or mode change.
type StatusPayload struct {
	AgentID    string `json:"agent_id"`
	SessionID  string `json:"session_id,omitempty"`
	Status     string `json:"status"` // "idle", "running", "error"
	Mode       string `json:"mode"`
	Feature    string `json:"feature"`
	QueueDepth int    `json:"queue_depth"`
	Error      string `json:"error,omitempty"`
}

// CaptionPayload carries a caption for display, local or from a peer.
type CaptionPayload struct {
	Caption core.Caption `json:"caption"`
	Remote  bool         `json:"remote"`
}

// LevelPayload carries the input level meter, 0 to 100.
type LevelPayload struct {
	Level int `json:"level"`
}

// --- UI -> Agent payloads ---

// ConfigUpdatePayload pushes new pipeline settings. They apply on the next
// pipeline start.
type ConfigUpdatePayload struct {
	Settings json.RawMessage   `json:"settings,omitempty"`
	Keys     map[string]string `json:"keys,omitempty"`
}

type SetModePayload struct {
	Mode string `json:"mode"`
}

type PushToTalkPayload struct {
	Down bool `json:"down"`
}

type RestartPipelinePayload struct {
	Reason string `json:"reason,omitempty"`
}

type ShutdownPayload struct {
	Reason       string `json:"reason,omitempty"`
	GraceSeconds int    `json:"grace_seconds,omitempty"`
}

// AckPayload acknowledges a received message.
type AckPayload struct {
	AckedType MessageType `json:"acked_type"`
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
}
