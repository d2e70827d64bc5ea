// Package controlplane connects a running agent to the local caption UI over
// a WebSocket. The agent dials out, streams captions, levels, status and
// logs, and takes settings, mode and push-to-talk commands in return.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"captionkit/core"
	"captionkit/protocol"

	"github.com/gorilla/websocket"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSendBufferSize    = 256
	writeTimeout             = 10 * time.Second
)

// ClientConfig configures the control plane WebSocket client.
type ClientConfig struct {
	ConnectURL        string
	AgentID           string
	Version           string
	Identity          string
	RoomName          string
	Metadata          map[string]string
	HeartbeatInterval time.Duration
	Logger            *core.Logger
}

// Client is the agent-side WebSocket client. Sends never block: when the
// buffer is full the oldest queued message is dropped.
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *core.Logger

	// Callbacks set by the agent before Connect. A returned error is sent
	// back to the UI in the ack.
	OnConfigUpdate    func(settings json.RawMessage, keys map[string]string) error
	OnSetMode         func(mode core.Mode) error
	OnPushToTalk      func(down bool) error
	OnRestartPipeline func() error
	OnShutdown        func(reason string)
	// Status reports "idle" or "running" for heartbeats.
	Status func() string

	sendCh    chan []byte
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

// NewClient creates a new control plane client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With(map[string]interface{}{"component": "controlplane"}),
		sendCh: make(chan []byte, defaultSendBufferSize),
		done:   make(chan struct{}),
	}
}

// Connect dials the UI server, registers, and starts the read, write and
// heartbeat loops. Cancelling ctx closes the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.Info("connecting to control plane", "url", c.config.ConnectURL)

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.ConnectURL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("controlplane: dial %q: %w", c.config.ConnectURL, err)
	}
	c.conn = conn

	reg := protocol.RegisterPayload{
		AgentID:   c.config.AgentID,
		Version:   c.config.Version,
		Identity:  c.config.Identity,
		RoomName:  c.config.RoomName,
		Metadata:  c.config.Metadata,
		Timestamp: time.Now().UTC(),
	}
	if err := c.send(protocol.MsgRegister, reg); err != nil {
		conn.Close()
		c.cancel()
		return fmt.Errorf("controlplane: send register: %w", err)
	}

	c.logger.Info("registered with control plane", "agent_id", c.config.AgentID)

	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()
	go func() {
		<-c.ctx.Done()
		c.Close()
	}()

	return nil
}

// SendLog sends a log entry for a session to the UI.
func (c *Client) SendLog(sessionID string, entry protocol.LogEntry) {
	c.enqueue(protocol.MsgLog, protocol.LogPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
		Entry:     entry,
	})
}

// SendLogEnd signals that a session's log stream has ended.
func (c *Client) SendLogEnd(sessionID string) {
	c.enqueue(protocol.MsgLogEnd, protocol.LogEndPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
	})
}

// SendStatus reports the pipeline state.
func (c *Client) SendStatus(status protocol.StatusPayload) {
	status.AgentID = c.config.AgentID
	c.enqueue(protocol.MsgStatus, status)
}

// SendCaption forwards a caption for display.
func (c *Client) SendCaption(caption core.Caption, remote bool) {
	c.enqueue(protocol.MsgCaption, protocol.CaptionPayload{Caption: caption, Remote: remote})
}

// SendLevel forwards the input level meter.
func (c *Client) SendLevel(level int) {
	c.enqueue(protocol.MsgLevel, protocol.LevelPayload{Level: level})
}

// Wait blocks until the connection drops or the context is cancelled.
func (c *Client) Wait() error {
	<-c.done
	return nil
}

// Close shuts down the client.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) send(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) enqueue(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.Warn("failed to marshal message, dropping", "error", err, "type", string(msgType))
		return
	}
	select {
	case c.sendCh <- data:
	default:
		// Buffer full: drop oldest and push new.
		select {
		case <-c.sendCh:
		default:
		}
		select {
		case c.sendCh <- data:
		default:
		}
	}
}

func (c *Client) ack(msgType protocol.MessageType, err error) {
	p := protocol.AckPayload{AckedType: msgType, OK: err == nil}
	if err != nil {
		p.Error = err.Error()
	}
	c.enqueue(protocol.MsgAck, p)
}

func (c *Client) readLoop() {
	defer func() {
		c.doneOnce.Do(func() { close(c.done) })
		c.cancel()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("control plane connection lost", "error", err)
			}
			return
		}

		msgType, payload, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.Warn("invalid message from control plane", "error", err)
			continue
		}
		if stop := c.dispatch(msgType, payload); stop {
			return
		}
	}
}

// dispatch handles one command and reports whether the client should stop.
func (c *Client) dispatch(msgType protocol.MessageType, payload json.RawMessage) bool {
	switch msgType {
	case protocol.MsgConfigUpdate:
		p, err := protocol.UnmarshalPayload[protocol.ConfigUpdatePayload](payload)
		if err == nil && c.OnConfigUpdate != nil {
			err = c.OnConfigUpdate(p.Settings, p.Keys)
		}
		c.ack(msgType, err)

	case protocol.MsgSetMode:
		p, err := protocol.UnmarshalPayload[protocol.SetModePayload](payload)
		var mode core.Mode
		if err == nil {
			mode, err = core.ParseMode(p.Mode)
		}
		if err == nil && c.OnSetMode != nil {
			err = c.OnSetMode(mode)
		}
		c.ack(msgType, err)

	case protocol.MsgPushToTalk:
		p, err := protocol.UnmarshalPayload[protocol.PushToTalkPayload](payload)
		if err != nil {
			c.logger.Warn("invalid ptt payload", "error", err)
			return false
		}
		if c.OnPushToTalk != nil {
			if err := c.OnPushToTalk(p.Down); err != nil {
				c.logger.Debug("push-to-talk ignored", "error", err)
			}
		}

	case protocol.MsgRestartPipeline:
		var err error
		if c.OnRestartPipeline != nil {
			err = c.OnRestartPipeline()
		}
		c.ack(msgType, err)

	case protocol.MsgShutdown:
		p, _ := protocol.UnmarshalPayload[protocol.ShutdownPayload](payload)
		reason := p.Reason
		if reason == "" {
			reason = "shutdown requested by control plane"
		}
		c.logger.Info("shutdown requested", "reason", reason)
		if c.OnShutdown != nil {
			c.OnShutdown(reason)
		}
		return true

	default:
		c.logger.Warn("unknown message type from control plane", "type", string(msgType))
	}
	return false
}

func (c *Client) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("write to control plane failed", "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := "idle"
			if c.Status != nil {
				status = c.Status()
			}
			c.enqueue(protocol.MsgHeartbeat, protocol.HeartbeatPayload{
				AgentID:   c.config.AgentID,
				Timestamp: time.Now().UTC(),
				Status:    status,
			})
		case <-c.ctx.Done():
			return
		}
	}
}
