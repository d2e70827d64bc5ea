// Package memory provides in-process transports: a broadcast hub standing in
// for a call's data channel, a scripted microphone and a recording speaker.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"captionkit/core"
	"captionkit/handlers/transport"
)

var ErrClosed = errors.New("memory: transport closed")

// Hub delivers every payload to all joined peers, including the sender, in
// send order. Peers filter their own traffic, as they must on a real call.
type Hub struct {
	mu    sync.Mutex
	peers []*Peer
}

func NewHub() *Hub {
	return &Hub{}
}

// Join adds a participant with the given identity.
func (h *Hub) Join(identity string) *Peer {
	p := &Peer{hub: h, identity: identity, inbox: make(chan transport.DataMessage, 256)}
	h.mu.Lock()
	h.peers = append(h.peers, p)
	h.mu.Unlock()
	return p
}

func (h *Hub) broadcast(msg transport.DataMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.peers {
		p.deliver(msg)
	}
}

type Peer struct {
	hub      *Hub
	identity string

	mu     sync.Mutex
	inbox  chan transport.DataMessage
	closed bool
}

func (p *Peer) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data := append([]byte(nil), payload...)
	p.hub.broadcast(transport.DataMessage{Payload: data, SenderID: p.identity})
	return nil
}

// Inject delivers a raw payload to every peer as if sent by senderID.
func (h *Hub) Inject(senderID string, payload []byte) {
	h.broadcast(transport.DataMessage{Payload: payload, SenderID: senderID})
}

func (p *Peer) Messages() <-chan transport.DataMessage {
	return p.inbox
}

func (p *Peer) LocalIdentity() string {
	return p.identity
}

func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

func (p *Peer) deliver(msg transport.DataMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.inbox <- msg
}

// Microphone replays chunks written with Feed. Open fails with a
// DeviceError when Fail was set.
type Microphone struct {
	Fail error

	mu     sync.Mutex
	out    chan core.AudioChunk
	opened chan struct{}
}

func NewMicrophone() *Microphone {
	return &Microphone{opened: make(chan struct{})}
}

func (m *Microphone) Open(ctx context.Context) (<-chan core.AudioChunk, error) {
	if m.Fail != nil {
		return nil, core.NewDeviceError("memory microphone", m.Fail)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = make(chan core.AudioChunk, 1024)
	select {
	case <-m.opened:
	default:
		close(m.opened)
	}
	return m.out, nil
}

// Opened is closed after the first successful Open.
func (m *Microphone) Opened() <-chan struct{} {
	return m.opened
}

// Feed queues a chunk for the open stream. It blocks while the buffer is full
// and returns ErrClosed if the microphone is not open.
func (m *Microphone) Feed(chunk core.AudioChunk) error {
	m.mu.Lock()
	out := m.out
	m.mu.Unlock()
	if out == nil {
		return ErrClosed
	}
	out <- chunk
	return nil
}

func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out != nil {
		close(m.out)
		m.out = nil
	}
	return nil
}

// Played is a clip as seen by Speaker.
type Played struct {
	Clip          core.AudioClip
	Start, Finish time.Time
}

// Speaker records every clip it plays. Each play takes Delay.
type Speaker struct {
	Delay time.Duration

	mu     sync.Mutex
	played []Played
	notify chan Played
}

func NewSpeaker(delay time.Duration) *Speaker {
	return &Speaker{Delay: delay, notify: make(chan Played, 256)}
}

func (s *Speaker) Play(ctx context.Context, clip core.AudioClip) error {
	start := time.Now()
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p := Played{Clip: clip, Start: start, Finish: time.Now()}
	s.mu.Lock()
	s.played = append(s.played, p)
	s.mu.Unlock()
	select {
	case s.notify <- p:
	default:
	}
	return nil
}

// Done delivers each clip once it has finished playing.
func (s *Speaker) Done() <-chan Played {
	return s.notify
}

func (s *Speaker) Played() []Played {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Played(nil), s.played...)
}
