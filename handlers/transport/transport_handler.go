package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"captionkit/core"
	captionevents "captionkit/events/caption"
	"captionkit/events/transport"
	"captionkit/events/tts"
	"captionkit/metrics"
	"captionkit/protocol"
	"captionkit/utils/audio"

	"github.com/google/uuid"
)

const sendTimeout = 5 * time.Second

var errOutboxFull = errors.New("transport: outbox full")

// TransportHandlerWrapper holds the devices shared by the input and output
// ends of the pipeline.
type TransportHandlerWrapper struct {
	mic     Microphone
	channel DataChannel
	config  TransportConfig
	metrics *metrics.Metrics
}

func NewTransportHandlerWrapper(mic Microphone, channel DataChannel, config TransportConfig, m *metrics.Metrics) *TransportHandlerWrapper {
	return &TransportHandlerWrapper{
		mic:     mic,
		channel: channel,
		config:  config,
		metrics: m,
	}
}

func (w *TransportHandlerWrapper) GetInputHandler() *TransportInputHandler {
	return &TransportInputHandler{
		BaseHandler: core.NewBaseHandler("TransportInputHandler", nil),
		wrapper:     w,
	}
}

func (w *TransportHandlerWrapper) GetOutputHandler() *TransportOutputHandler {
	size := w.config.SendBuffer
	if size <= 0 {
		size = DefaultConfig().SendBuffer
	}
	return &TransportOutputHandler{
		BaseHandler: core.NewBaseHandler("TransportOutputHandler", nil),
		wrapper:     w,
		outbox:      make(chan outgoing, size),
	}
}

// TransportInputHandler feeds microphone audio and peer messages into the
// pipeline.
type TransportInputHandler struct {
	*core.BaseHandler
	wrapper *TransportHandlerWrapper
	frames  <-chan core.AudioChunk
}

// Initialize opens the microphone. A device failure is returned as is so the
// caller sees the DeviceError.
func (h *TransportInputHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	if err := h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx); err != nil {
		return err
	}
	if h.wrapper.mic == nil {
		return core.NewDeviceError("microphone", errors.New("no microphone configured"))
	}
	frames, err := h.wrapper.mic.Open(ctx)
	if err != nil {
		var de *core.DeviceError
		if errors.As(err, &de) {
			return err
		}
		return core.NewDeviceError("microphone", err)
	}
	h.frames = frames
	return nil
}

func (h *TransportInputHandler) Start() error {
	h.StartLoop(h.HandleEvent)
	h.Go(h.readMicrophone)
	if h.wrapper.channel != nil {
		h.Go(h.readDataChannel)
	}
	return nil
}

func (h *TransportInputHandler) HandleEvent(eventPacket *core.EventPacket) error {
	h.SendPacket(eventPacket)
	return nil
}

func (h *TransportInputHandler) Cleanup() error {
	if h.wrapper.mic == nil {
		return nil
	}
	return h.wrapper.mic.Close()
}

func (h *TransportInputHandler) readMicrophone() {
	cfg := h.wrapper.config
	for {
		select {
		case chunk, ok := <-h.frames:
			if !ok {
				if h.Active() {
					h.Logger.Error("microphone stream ended unexpectedly")
					h.Warn(core.NewDeviceError("microphone", errors.New("stream closed")))
				}
				return
			}
			pcm, err := audio.ToPCM(chunk, cfg.Channels, cfg.SampleRate)
			if err != nil {
				h.Logger.Warn("dropping microphone chunk", "error", err)
				continue
			}
			h.Emit(&transport.TransportAudioInputEvent{AudioChunk: pcm})
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *TransportInputHandler) readDataChannel() {
	ch := h.wrapper.channel
	for {
		select {
		case msg, ok := <-ch.Messages():
			if !ok {
				return
			}
			h.handleDataMessage(msg)
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *TransportInputHandler) handleDataMessage(msg DataMessage) {
	received, err := protocol.Decode(msg.Payload, msg.SenderID, h.wrapper.channel.LocalIdentity())
	if err != nil {
		reason := "malformed"
		switch {
		case errors.Is(err, protocol.ErrOwnMessage):
			reason = "own"
		case errors.Is(err, core.ErrUnknownMessage):
			reason = "unknown_type"
		}
		h.wrapper.metrics.MessageIgnored(reason)
		h.Logger.Debug("ignoring data message", "sender", msg.SenderID, "reason", reason, "error", err)
		return
	}

	switch {
	case received.Caption != nil:
		h.Emit(&captionevents.CaptionEvent{Caption: *received.Caption, Remote: true})
	case received.Audio != nil:
		clip, err := clipFromWAV(received.Audio)
		if err != nil {
			h.wrapper.metrics.MessageIgnored("malformed")
			h.Logger.Debug("ignoring translation audio", "sender", msg.SenderID, "error", err)
			return
		}
		h.Emit(&tts.TranslationAudioEvent{Clip: clip})
	}
}

func clipFromWAV(a *protocol.TranslationAudio) (core.AudioClip, error) {
	channels, rate, err := audio.WAVFormat(a.Audio)
	if err != nil {
		return core.AudioClip{}, err
	}
	pcm, err := audio.StripWAVHeaderIfPresent(a.Audio)
	if err != nil {
		return core.AudioClip{}, err
	}
	return core.AudioClip{
		ID:         uuid.New().String(),
		Data:       pcm,
		SampleRate: rate,
		Channels:   channels,
		Text:       a.Text,
		SenderName: a.SenderName,
		Remote:     true,
	}, nil
}

type outgoing struct {
	msgType string
	payload []byte
}

// TransportOutputHandler broadcasts local captions and translation audio to
// peers. A single sender drains the outbox so peers receive messages in the
// order they were produced. Sends are fire-and-forget: a full outbox drops the
// message and failures are logged, never retried.
type TransportOutputHandler struct {
	*core.BaseHandler
	wrapper *TransportHandlerWrapper
	outbox  chan outgoing
}

func (h *TransportOutputHandler) Start() error {
	if h.wrapper.channel != nil {
		h.Go(h.sendLoop)
	}
	h.StartLoop(h.HandleEvent)
	return nil
}

// Cleanup waits for the sender to exit. Queued messages are dropped.
func (h *TransportOutputHandler) Cleanup() error {
	h.Wait()
	return nil
}

func (h *TransportOutputHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *captionevents.CaptionEvent:
		if !event.Remote {
			payload, err := protocol.EncodeCaption(event.Caption)
			if err != nil {
				h.Logger.Warn("cannot encode caption", "error", err)
				break
			}
			h.broadcast(string(protocol.WireCaption), payload)
		}
	case *tts.TranslationAudioEvent:
		if !event.Clip.Remote {
			payload, err := h.encodeAudio(event.Clip)
			if err != nil {
				h.Logger.Warn("cannot encode translation audio", "error", err)
				break
			}
			h.broadcast(string(protocol.WireTranslationAudio), payload)
		}
	}
	h.SendPacket(eventPacket)
	return nil
}

func (h *TransportOutputHandler) encodeAudio(clip core.AudioClip) ([]byte, error) {
	pcm, err := audio.StripWAVHeaderIfPresent(clip.Data)
	if err != nil {
		return nil, err
	}
	wav, err := audio.PCMBytesToWavBytes(pcm, clip.Channels, clip.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("wrap clip %s: %w", clip.ID, err)
	}
	sender := clip.SenderName
	if sender == "" {
		sender = h.wrapper.config.LocalName
	}
	return protocol.EncodeTranslationAudio(wav, clip.Text, sender)
}

func (h *TransportOutputHandler) broadcast(msgType string, payload []byte) {
	if h.wrapper.channel == nil {
		return
	}
	select {
	case h.outbox <- outgoing{msgType: msgType, payload: payload}:
	default:
		h.wrapper.metrics.MessageSent(msgType, errOutboxFull)
		h.Logger.Warn("broadcast dropped", "type", msgType, "error", errOutboxFull)
	}
}

func (h *TransportOutputHandler) sendLoop() {
	ch := h.wrapper.channel
	for {
		select {
		case msg := <-h.outbox:
			ctx, cancel := context.WithTimeout(h.Ctx, sendTimeout)
			err := ch.Send(ctx, msg.payload)
			cancel()
			h.wrapper.metrics.MessageSent(msg.msgType, err)
			if err != nil && h.Active() {
				h.Logger.Warn("broadcast failed", "type", msg.msgType, "error", err)
			}
		case <-h.Ctx.Done():
			return
		}
	}
}
