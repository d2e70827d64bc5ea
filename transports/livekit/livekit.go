// Package livekit carries caption traffic over a LiveKit room's reliable
// data channel.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"captionkit/core"
	"captionkit/handlers/transport"
	"captionkit/metrics"

	"github.com/livekit/protocol/auth"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
)

const DefaultTopic = "captions"

var ErrClosed = errors.New("livekit: data channel closed")

// Config selects the room to join. Token wins over APIKey/APISecret; without
// a token one is minted for Identity.
type Config struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	RoomName  string `json:"room_name"`
	Identity  string `json:"identity"`
	Name      string `json:"name"`
	Topic     string `json:"topic"`
}

func DefaultConfig() Config {
	return Config{Topic: DefaultTopic}
}

// DataChannel implements transport.DataChannel on a LiveKit room.
type DataChannel struct {
	room     *lksdk.Room
	identity string
	topic    string
	logger   *core.Logger
	metrics  *metrics.Metrics

	mu           sync.Mutex
	inbox        chan transport.DataMessage
	closed       bool
	participants map[string]string
}

func newDataChannel(identity, topic string, logger *core.Logger, m *metrics.Metrics) *DataChannel {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DataChannel{
		identity:     identity,
		topic:        topic,
		logger:       logger.With(map[string]any{"transport": "livekit"}),
		metrics:      m,
		inbox:        make(chan transport.DataMessage, 256),
		participants: make(map[string]string),
	}
}

// Connect joins the room and returns once the local participant is live.
// Packets dropped because the inbox is full are counted on m, which may be nil.
func Connect(ctx context.Context, cfg Config, logger *core.Logger, m *metrics.Metrics) (*DataChannel, error) {
	if cfg.URL == "" {
		return nil, errors.New("livekit: url is required")
	}
	token := cfg.Token
	if token == "" {
		if cfg.RoomName == "" || cfg.Identity == "" {
			return nil, errors.New("livekit: room name and identity are required without a token")
		}
		var err error
		token, err = MintToken(cfg.APIKey, cfg.APISecret, cfg.RoomName, cfg.Identity, cfg.Name, 24*time.Hour)
		if err != nil {
			return nil, err
		}
	}

	d := newDataChannel(cfg.Identity, cfg.Topic, logger, m)
	type result struct {
		room *lksdk.Room
		err  error
	}
	done := make(chan result, 1)
	go func() {
		room, err := lksdk.ConnectToRoomWithToken(cfg.URL, token, d.callbacks(), lksdk.WithAutoSubscribe(false))
		done <- result{room, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("livekit: connect to room: %w", r.err)
		}
		d.room = r.room
		d.identity = r.room.LocalParticipant.Identity()
		d.logger.Info("joined room", "room", r.room.Name(), "identity", d.identity)
		return d, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.room != nil {
				r.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// MintToken creates a join token that allows publishing data.
func MintToken(apiKey, apiSecret, room, identity, name string, validFor time.Duration) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", errors.New("livekit: API key and secret are required")
	}
	grant := &auth.VideoGrant{RoomJoin: true, Room: room}
	grant.SetCanPublishData(true)
	grant.SetCanSubscribe(true)
	token, err := auth.NewAccessToken(apiKey, apiSecret).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(validFor).
		SetVideoGrant(grant).
		ToJWT()
	if err != nil {
		return "", fmt.Errorf("livekit: create token: %w", err)
	}
	return token, nil
}

func (d *DataChannel) callbacks() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				user := data.ToProto().GetUser()
				d.receive(params.SenderIdentity, user.GetTopic(), user.GetPayload())
			},
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				d.logger.Debug("ignoring media track", "participant", rp.Identity(), "kind", track.Kind().String(), "codec", track.Codec().MimeType)
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			d.join(rp.Identity(), rp.Name())
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			d.leave(rp.Identity())
		},
		OnReconnecting: func() {
			d.logger.Info("reconnecting to room")
		},
		OnReconnected: func() {
			d.logger.Info("reconnected to room")
		},
		OnDisconnected: func() {
			d.logger.Info("disconnected from room")
		},
	}
}

func (d *DataChannel) receive(sender, topic string, payload []byte) {
	if topic != d.topic || len(payload) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	msg := transport.DataMessage{Payload: append([]byte(nil), payload...), SenderID: sender}
	select {
	case d.inbox <- msg:
	default:
		d.metrics.MessageIgnored("inbox_full")
		d.logger.Warn("inbox full, dropping data packet", "sender", sender, "bytes", len(payload))
	}
}

func (d *DataChannel) join(identity, name string) {
	d.mu.Lock()
	d.participants[identity] = name
	d.mu.Unlock()
	d.logger.Info("participant joined", "participant", identity, "name", name)
}

func (d *DataChannel) leave(identity string) {
	d.mu.Lock()
	delete(d.participants, identity)
	d.mu.Unlock()
	d.logger.Info("participant left", "participant", identity)
}

// Participants maps remote identities to display names.
func (d *DataChannel) Participants() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.participants))
	for k, v := range d.participants {
		out[k] = v
	}
	return out
}

// Send publishes payload reliably to every participant on the caption topic.
func (d *DataChannel) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed || d.room == nil {
		return ErrClosed
	}
	return d.room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishReliable(true),
		lksdk.WithDataPublishTopic(d.topic),
	)
}

func (d *DataChannel) Messages() <-chan transport.DataMessage {
	return d.inbox
}

func (d *DataChannel) LocalIdentity() string {
	return d.identity
}

// Close leaves the room. It is safe to call more than once.
func (d *DataChannel) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.inbox)
	d.mu.Unlock()

	if d.room != nil {
		d.room.Disconnect()
	}
}
