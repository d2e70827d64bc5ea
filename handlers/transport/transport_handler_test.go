package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"captionkit/core"
	captionevents "captionkit/events/caption"
	"captionkit/events/tts"
	"captionkit/protocol"
	"captionkit/utils/audio"

	"github.com/bytedance/sonic"
)

func start(t *testing.T, h core.IHandler) (chan<- *core.EventPacket, <-chan *core.EventPacket) {
	t.Helper()
	in := make(chan *core.EventPacket, 512)
	next := make(chan *core.EventPacket, 512)
	top := make(chan *core.EventPacket, 16)
	ctx, cancel := context.WithCancel(core.ContextWithSessionLogger(context.Background(), core.NewDiscardLogger()))
	t.Cleanup(func() {
		cancel()
		h.Cleanup()
	})
	if err := h.Initialize(in, next, top, ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return in, next
}

func collect(out <-chan *core.EventPacket, quiet time.Duration) []core.IEvent {
	var events []core.IEvent
	for {
		select {
		case p := <-out:
			events = append(events, p.Event)
		case <-time.After(quiet):
			return events
		}
	}
}

// fakeChannel records payloads in send order. Tests write incoming messages
// to inbox. A non-nil block holds every Send until it is closed.
type fakeChannel struct {
	identity string
	inbox    chan DataMessage
	block    chan struct{}

	mu   sync.Mutex
	sent [][]byte
}

func newFakeChannel(identity string) *fakeChannel {
	return &fakeChannel{identity: identity, inbox: make(chan DataMessage, 16)}
}

func (f *fakeChannel) Send(ctx context.Context, payload []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.sent = append(f.sent, payload)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Messages() <-chan DataMessage { return f.inbox }
func (f *fakeChannel) LocalIdentity() string        { return f.identity }

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type idleMic struct {
	frames chan core.AudioChunk
}

func (m *idleMic) Open(ctx context.Context) (<-chan core.AudioChunk, error) {
	m.frames = make(chan core.AudioChunk)
	return m.frames, nil
}

func (m *idleMic) Close() error { return nil }

func localCaption(id string) *core.EventPacket {
	return core.NewEventPacket(&captionevents.CaptionEvent{Caption: core.Caption{ID: id, SpeakerID: "me", TranslatedText: "hola " + id}},
		core.EventRelayDestinationNextService, "test")
}

func TestBroadcastKeepsEmissionOrder(t *testing.T) {
	ch := newFakeChannel("me")
	cfg := DefaultConfig()
	cfg.SendBuffer = 512
	h := NewTransportHandlerWrapper(nil, ch, cfg, nil).GetOutputHandler()
	in, out := start(t, h)

	const n = 300
	for i := 0; i < n; i++ {
		in <- localCaption(fmt.Sprintf("c%d", i))
	}
	collect(out, 100*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for ch.sentCount() < n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.sent) != n {
		t.Fatalf("sent %d messages, want %d", len(ch.sent), n)
	}
	for i, payload := range ch.sent {
		var msg protocol.WireMessage
		if err := sonic.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if want := fmt.Sprintf("c%d", i); msg.Caption == nil || msg.Caption.ID != want {
			t.Fatalf("message %d is %+v, want caption %s", i, msg.Caption, want)
		}
	}
}

func TestBroadcastNeverBlocksPipeline(t *testing.T) {
	ch := newFakeChannel("me")
	ch.block = make(chan struct{})
	cfg := DefaultConfig()
	cfg.SendBuffer = 1
	h := NewTransportHandlerWrapper(nil, ch, cfg, nil).GetOutputHandler()
	in, out := start(t, h)

	for i := 0; i < 10; i++ {
		in <- localCaption(fmt.Sprintf("c%d", i))
	}
	if events := collect(out, 150*time.Millisecond); len(events) != 10 {
		t.Errorf("forwarded %d captions while the channel was stuck, want 10", len(events))
	}
	if n := ch.sentCount(); n != 0 {
		t.Errorf("sent %d, want 0 while blocked", n)
	}
}

func TestRemoteTrafficIsNotRebroadcast(t *testing.T) {
	ch := newFakeChannel("me")
	h := NewTransportHandlerWrapper(nil, ch, DefaultConfig(), nil).GetOutputHandler()
	in, out := start(t, h)

	in <- core.NewEventPacket(&captionevents.CaptionEvent{Caption: core.Caption{ID: "r1"}, Remote: true}, core.EventRelayDestinationNextService, "test")
	in <- core.NewEventPacket(&tts.TranslationAudioEvent{Clip: core.AudioClip{ID: "a1", Data: make([]byte, 320), SampleRate: 16000, Channels: 1, Remote: true}},
		core.EventRelayDestinationNextService, "test")
	if events := collect(out, 100*time.Millisecond); len(events) != 2 {
		t.Errorf("forwarded %d events, want 2", len(events))
	}
	if n := ch.sentCount(); n != 0 {
		t.Errorf("re-broadcast %d remote messages", n)
	}
}

func TestReceiveFiltersPeerMessages(t *testing.T) {
	ch := newFakeChannel("me")
	h := NewTransportHandlerWrapper(&idleMic{}, ch, DefaultConfig(), nil).GetInputHandler()
	_, out := start(t, h)

	own, _ := protocol.EncodeCaption(core.Caption{ID: "mine", SpeakerID: "me"})
	remote, _ := protocol.EncodeCaption(core.Caption{ID: "theirs", SpeakerID: "bob", TranslatedText: "hi"})
	wav, err := audio.PCMBytesToWavBytes(make([]byte, 3200), 1, 24000)
	if err != nil {
		t.Fatal(err)
	}
	clip, _ := protocol.EncodeTranslationAudio(wav, "hi", "Bob")

	ch.inbox <- DataMessage{Payload: own, SenderID: "me"}
	ch.inbox <- DataMessage{Payload: []byte(`{"type":"reaction","emoji":"+1"}`), SenderID: "bob"}
	ch.inbox <- DataMessage{Payload: []byte(`{"type":`), SenderID: "bob"}
	ch.inbox <- DataMessage{Payload: remote, SenderID: "bob"}
	ch.inbox <- DataMessage{Payload: clip, SenderID: "bob"}

	events := collect(out, 150*time.Millisecond)
	if len(events) != 2 {
		t.Fatalf("got %d events, want the remote caption and clip", len(events))
	}
	c, ok := events[0].(*captionevents.CaptionEvent)
	if !ok || !c.Remote || c.Caption.ID != "theirs" {
		t.Errorf("first event = %+v", events[0])
	}
	a, ok := events[1].(*tts.TranslationAudioEvent)
	if !ok {
		t.Fatalf("second event = %s", events[1].GetId())
	}
	if !a.Clip.Remote || a.Clip.SampleRate != 24000 || len(a.Clip.Data) != 3200 || a.Clip.SenderName != "Bob" {
		t.Errorf("clip = %+v", a.Clip)
	}
}

func TestMissingMicrophoneIsDeviceError(t *testing.T) {
	h := NewTransportHandlerWrapper(nil, nil, DefaultConfig(), nil).GetInputHandler()
	ctx, cancel := context.WithCancel(core.ContextWithSessionLogger(context.Background(), core.NewDiscardLogger()))
	defer cancel()

	err := h.Initialize(make(chan *core.EventPacket), make(chan *core.EventPacket), make(chan *core.EventPacket), ctx)
	var de *core.DeviceError
	if !errors.As(err, &de) {
		t.Errorf("Initialize() = %v, want DeviceError", err)
	}
}
