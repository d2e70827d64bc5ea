package session

import (
	"context"
	"encoding/json"
	"fmt"

	"captionkit/controlplane"
	"captionkit/core"
	"captionkit/protocol"

	"github.com/bytedance/sonic"
)

// BindControlPlane streams session output to client and lets the UI drive
// the session. Settings and mode changes restart a running pipeline so they
// take effect immediately. ctx is the parent of every restarted pipeline.
func (s *Session) BindControlPlane(ctx context.Context, client *controlplane.Client) {
	s.SetListener(Listener{
		OnCaption: client.SendCaption,
		OnLevel:   client.SendLevel,
		OnWarning: func(stage, message string) {
			st := s.status("running")
			st.Error = stage + ": " + message
			client.SendStatus(st)
		},
	})

	client.Status = func() string {
		if s.Running() {
			return "running"
		}
		return "idle"
	}
	client.OnPushToTalk = s.PushToTalk
	client.OnSetMode = func(mode core.Mode) error {
		return s.restartWith(ctx, client, func() error { return s.SetMode(mode) })
	}
	client.OnConfigUpdate = func(raw json.RawMessage, keys map[string]string) error {
		if len(keys) > 0 {
			s.logger.Warn("provider keys from the control plane apply on the next agent start", "count", len(keys))
		}
		if len(raw) == 0 {
			return nil
		}
		var settings Settings
		if err := sonic.Unmarshal(raw, &settings); err != nil {
			return fmt.Errorf("session: settings: %w", err)
		}
		return s.restartWith(ctx, client, func() error { return s.UpdateSettings(settings) })
	}
	client.OnRestartPipeline = func() error {
		return s.restartWith(ctx, client, func() error { return nil })
	}
}

// restartWith stops a running session, applies change and starts it again.
// A stopped session only has change applied.
func (s *Session) restartWith(ctx context.Context, client *controlplane.Client, change func() error) error {
	wasRunning := s.Running()
	if wasRunning {
		if err := s.Stop(); err != nil {
			s.logger.Warn("stop before restart", "error", err)
		}
	}
	changeErr := change()
	if !wasRunning {
		client.SendStatus(s.status("idle"))
		return changeErr
	}
	if err := s.Start(ctx); err != nil {
		st := s.status("error")
		st.Error = err.Error()
		client.SendStatus(st)
		return err
	}
	client.SendStatus(s.status("running"))
	return changeErr
}

func (s *Session) status(state string) protocol.StatusPayload {
	cfg := s.Config()
	return protocol.StatusPayload{
		Status:     state,
		Mode:       cfg.Mode.String(),
		Feature:    cfg.Feature.String(),
		QueueDepth: s.QueueDepth(),
	}
}
