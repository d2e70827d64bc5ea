package controlplane

import (
	"sync/atomic"
	"time"

	"captionkit/protocol"
)

// LogStream is a core.LogWriter that forwards one session's log lines to
// the UI. Lines written after Close are dropped.
type LogStream struct {
	client    *Client
	sessionID string
	closed    atomic.Bool
}

func NewLogStream(client *Client, sessionID string) *LogStream {
	return &LogStream{client: client, sessionID: sessionID}
}

func (s *LogStream) Write(level, msg string, attrs map[string]interface{}) {
	if s.closed.Load() {
		return
	}
	// The frame already names the session.
	if _, ok := attrs["session_id"]; ok {
		rest := make(map[string]interface{}, len(attrs)-1)
		for k, v := range attrs {
			if k != "session_id" {
				rest[k] = v
			}
		}
		attrs = rest
	}
	s.client.SendLog(s.sessionID, protocol.LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     attrs,
	})
}

// Close sends log_end once.
func (s *LogStream) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.client.SendLogEnd(s.sessionID)
}
