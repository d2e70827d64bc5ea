package stt

import (
	"context"
	"errors"

	"captionkit/cache"
	"captionkit/core"
	"captionkit/events/capture"
	"captionkit/events/stt"
	"captionkit/metrics"
)

// STTHandler transcribes sealed utterances. Audio already seen is answered
// from the cache without calling any provider.
type STTHandler struct {
	*core.BaseHandler
	chain   *Chain
	cache   *cache.Cache
	config  STTConfig
	metrics *metrics.Metrics
}

func NewSTTHandler(providers []ISTTService, c *cache.Cache, config STTConfig, m *metrics.Metrics) *STTHandler {
	return &STTHandler{
		BaseHandler: core.NewBaseHandler("STTHandler", nil),
		chain:       NewChain(providers, config, m, nil),
		cache:       c,
		config:      config,
		metrics:     m,
	}
}

func (h *STTHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	if err := h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx); err != nil {
		return err
	}
	h.chain.logger = h.Logger
	if h.chain.Len() == 0 {
		h.Logger.Warn("no transcription providers configured; every utterance will be dropped")
	}
	return nil
}

func (h *STTHandler) Start() error {
	h.StartLoop(h.HandleEvent)
	return nil
}

func (h *STTHandler) HandleEvent(eventPacket *core.EventPacket) error {
	event, ok := eventPacket.Event.(*capture.UtteranceSealedEvent)
	if !ok {
		h.SendPacket(eventPacket)
		return nil
	}
	utt := event.Utterance
	h.Go(func() { h.process(utt) })
	return nil
}

func (h *STTHandler) process(utt core.Utterance) {
	fingerprint := cache.Fingerprint(utt.Audio)
	logger := h.Logger.With(map[string]any{"utterance_id": utt.ID})

	if h.cache != nil {
		entry, hit := h.cache.Get(fingerprint)
		h.metrics.CacheLookup(hit)
		if hit {
			logger.Debug("transcript cache hit", "fingerprint", fingerprint)
			h.Emit(&stt.STTCachedOutputEvent{
				UtteranceID: utt.ID,
				Fingerprint: fingerprint,
				StartedAt:   utt.StartedAt,
				Result:      core.TranslationResult{CorrectedText: entry.CorrectedText, TranslatedText: entry.TranslatedText},
			})
			return
		}
	}

	result, err := h.chain.Transcribe(h.Ctx, utt)
	if err != nil {
		if errors.Is(err, core.ErrNotAvailable) {
			h.metrics.TranscriptUnavailable()
			logger.Warn("transcription not available, utterance dropped", "error", err)
		}
		return
	}
	if !h.Active() {
		return
	}
	logger.Info("transcribed utterance", "provider", result.ProviderID, "chars", len(result.OriginalText))
	h.Emit(&stt.STTFinalOutputEvent{
		UtteranceID: utt.ID,
		Fingerprint: fingerprint,
		StartedAt:   utt.StartedAt,
		Result:      result,
	})
}

// Cleanup waits for in-flight transcriptions; their results are dropped
// because the pipeline context is already cancelled.
func (h *STTHandler) Cleanup() error {
	h.Wait()
	return nil
}
