package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"captionkit/cache"
	"captionkit/core"
	captionevents "captionkit/events/caption"
	"captionkit/events/stt"
	"captionkit/metrics"
	"captionkit/utils/text"

	"github.com/google/uuid"
)

// TranslateHandler turns transcripts into captions. A failed or missing
// provider degrades to the normalized transcript instead of dropping it.
type TranslateHandler struct {
	*core.BaseHandler
	service    ITranslateService
	cache      *cache.Cache
	normalizer *text.Normalizer
	config     TranslateConfig
	metrics    *metrics.Metrics
}

func NewTranslateHandler(service ITranslateService, c *cache.Cache, config TranslateConfig, m *metrics.Metrics) *TranslateHandler {
	return &TranslateHandler{
		BaseHandler: core.NewBaseHandler("TranslateHandler", nil),
		service:     service,
		cache:       c,
		normalizer:  text.NewNormalizer(text.Language(config.SourceLang)),
		config:      config,
		metrics:     m,
	}
}

func (h *TranslateHandler) Start() error {
	h.StartLoop(h.HandleEvent)
	return nil
}

func (h *TranslateHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *stt.STTFinalOutputEvent:
		ev := *event
		h.Go(func() { h.process(ev) })
	case *stt.STTCachedOutputEvent:
		h.Emit(h.caption(event.StartedAt, event.Result))
	default:
		h.SendPacket(eventPacket)
	}
	return nil
}

func (h *TranslateHandler) process(event stt.STTFinalOutputEvent) {
	logger := h.Logger.With(map[string]any{"utterance_id": event.UtteranceID})

	normalized := h.normalizer.Normalize(event.Result.OriginalText)
	if normalized == "" {
		logger.Debug("transcript was filler only, dropped", "text", event.Result.OriginalText)
		return
	}

	result, err := h.correctAndTranslate(normalized)
	switch {
	case err == nil:
		h.remember(event.Fingerprint, result)
	case errors.Is(err, errNoProvider):
		// Nothing failed, the normalized transcript is the final text.
		result = core.TranslationResult{CorrectedText: normalized, TranslatedText: normalized}
		h.remember(event.Fingerprint, result)
	default:
		logger.Warn("correction failed, showing raw transcript", "timeout", core.IsProviderTimeout(err), "error", err)
		result = core.TranslationResult{CorrectedText: normalized, TranslatedText: normalized}
	}

	if !h.Active() {
		return
	}
	h.Emit(h.caption(event.StartedAt, result))
}

func (h *TranslateHandler) remember(fingerprint string, result core.TranslationResult) {
	if h.cache == nil || fingerprint == "" {
		return
	}
	h.cache.Add(fingerprint, cache.Entry{
		CorrectedText:  result.CorrectedText,
		TranslatedText: result.TranslatedText,
	})
}

var errNoProvider = errors.New("no translation provider configured")

func (h *TranslateHandler) correctAndTranslate(original string) (result core.TranslationResult, err error) {
	if h.service == nil {
		return result, errNoProvider
	}
	id := h.service.ID()

	ctx, cancel := context.WithTimeout(h.Ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = core.NewProviderError(id, "translate", fmt.Errorf("panic: %v", r))
		}
		h.metrics.ProviderCall("translate", id, time.Since(start).Seconds(), metrics.FailureCause(err))
	}()

	result, err = h.service.CorrectAndTranslate(ctx, core.TranslationRequest{
		OriginalText: original,
		TargetLang:   h.config.TargetLang,
		SourceLang:   h.config.SourceLang,
	})
	if err != nil {
		return result, core.NewProviderError(id, "translate", err)
	}
	result.CorrectedText = strings.TrimSpace(result.CorrectedText)
	result.TranslatedText = strings.TrimSpace(result.TranslatedText)
	if result.CorrectedText == "" && result.TranslatedText == "" {
		return result, core.NewProviderError(id, "translate", core.ErrEmptyResult)
	}
	if result.CorrectedText == "" {
		result.CorrectedText = original
	}
	if result.TranslatedText == "" {
		result.TranslatedText = result.CorrectedText
	}
	return result, nil
}

func (h *TranslateHandler) caption(startedAt time.Time, result core.TranslationResult) *captionevents.CaptionEvent {
	ts := startedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &captionevents.CaptionEvent{Caption: core.Caption{
		ID:             uuid.New().String(),
		SpeakerID:      h.config.SpeakerID,
		SpeakerName:    h.config.SpeakerName,
		OriginalText:   result.CorrectedText,
		TranslatedText: result.TranslatedText,
		TargetLang:     h.config.TargetLang,
		Timestamp:      ts,
	}}
}

func (h *TranslateHandler) Cleanup() error {
	h.Wait()
	return nil
}
