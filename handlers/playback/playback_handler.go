package playback

import (
	"context"

	"captionkit/core"
	"captionkit/events/tts"
	"captionkit/metrics"
	"captionkit/playback"
)

// PlaybackHandler feeds translation audio into the session's playback queue.
// Events are forwarded unchanged so local audio still reaches the broadcaster.
type PlaybackHandler struct {
	*core.BaseHandler
	speaker playback.Player
	queue   *playback.Queue
	config  PlaybackConfig
	metrics *metrics.Metrics
}

func NewPlaybackHandler(speaker playback.Player, config PlaybackConfig, m *metrics.Metrics) *PlaybackHandler {
	return &PlaybackHandler{
		BaseHandler: core.NewBaseHandler("PlaybackHandler", nil),
		speaker:     speaker,
		config:      config,
		metrics:     m,
	}
}

func (h *PlaybackHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	if err := h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx); err != nil {
		return err
	}
	if h.speaker != nil {
		h.queue = playback.NewQueue(h.speaker, h.Logger)
		h.queue.OnDepth(h.metrics.QueueDepth)
	}
	return nil
}

func (h *PlaybackHandler) Start() error {
	if h.queue != nil {
		h.Go(func() { h.queue.Run(h.Ctx) })
	}
	h.StartLoop(h.HandleEvent)
	return nil
}

// QueueLen reports how many clips are waiting to play.
func (h *PlaybackHandler) QueueLen() int {
	if h.queue == nil {
		return 0
	}
	return h.queue.Len()
}

func (h *PlaybackHandler) HandleEvent(eventPacket *core.EventPacket) error {
	if event, ok := eventPacket.Event.(*tts.TranslationAudioEvent); ok && h.queue != nil {
		if event.Clip.Remote || h.config.PlayOwnAudio {
			h.queue.Enqueue(event.Clip)
		}
	}
	h.SendPacket(eventPacket)
	return nil
}

// Cleanup drops pending clips and waits for the drain loop to exit.
func (h *PlaybackHandler) Cleanup() error {
	if h.queue != nil {
		if n := h.queue.Clear(); n > 0 {
			h.Logger.Info("dropped pending clips on stop", "count", n)
		}
	}
	h.Wait()
	return nil
}
