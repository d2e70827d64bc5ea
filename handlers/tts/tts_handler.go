package tts

import (
	"context"
	"fmt"
	"time"

	"captionkit/core"
	captionevents "captionkit/events/caption"
	"captionkit/events/tts"
	"captionkit/metrics"
	"captionkit/utils/audio"

	"github.com/google/uuid"
)

// TTSHandler speaks local translated captions when the translation feature
// is on. A failed synthesis only loses the audio; the caption still flows on.
type TTSHandler struct {
	*core.BaseHandler
	Service ITTSService
	config  TTSConfig
	metrics *metrics.Metrics
}

func NewTTSHandler(service ITTSService, config TTSConfig, m *metrics.Metrics) *TTSHandler {
	return &TTSHandler{
		BaseHandler: core.NewBaseHandler("TTSHandler", nil),
		Service:     service,
		config:      config,
		metrics:     m,
	}
}

func (h *TTSHandler) Start() error {
	h.StartLoop(h.HandleEvent)
	return nil
}

func (h *TTSHandler) HandleEvent(eventPacket *core.EventPacket) error {
	if event, ok := eventPacket.Event.(*captionevents.CaptionEvent); ok && h.speaks(event) {
		caption := event.Caption
		h.Go(func() { h.synthesize(caption) })
	}
	h.SendPacket(eventPacket)
	return nil
}

func (h *TTSHandler) speaks(event *captionevents.CaptionEvent) bool {
	return !event.Remote && h.Service != nil && h.config.Feature == core.FeatureTranslation
}

func (h *TTSHandler) synthesize(caption core.Caption) {
	text := normalizeTextForTTS(caption.TranslatedText)
	if text == "" {
		return
	}
	logger := h.Logger.With(map[string]any{"caption_id": caption.ID})

	chunk, err := h.call(text)
	if err != nil {
		logger.Warn("synthesis failed, caption shown without audio", "timeout", core.IsProviderTimeout(err), "error", err)
		return
	}
	pcm, err := audio.ToPCM(chunk, 0, 0)
	if err != nil {
		logger.Warn("cannot decode synthesized audio", "error", err)
		return
	}
	if !h.Active() {
		return
	}
	sender := h.config.SenderName
	if sender == "" {
		sender = caption.SpeakerName
	}
	h.Emit(&tts.TranslationAudioEvent{Clip: core.AudioClip{
		ID:         uuid.New().String(),
		Data:       pcm.Data,
		SampleRate: pcm.SampleRate,
		Channels:   pcm.Channels,
		Text:       text,
		SenderName: sender,
	}})
}

func (h *TTSHandler) call(text string) (chunk core.AudioChunk, err error) {
	id := h.Service.ID()
	ctx, cancel := context.WithTimeout(h.Ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = core.NewProviderError(id, "synthesize", fmt.Errorf("panic: %v", r))
		}
		h.metrics.ProviderCall("tts", id, time.Since(start).Seconds(), metrics.FailureCause(err))
	}()

	chunk, err = h.Service.Synthesize(ctx, text, h.config.VoiceID)
	if err != nil {
		return chunk, core.NewProviderError(id, "synthesize", err)
	}
	if len(chunk.Data) == 0 {
		return chunk, core.NewProviderError(id, "synthesize", core.ErrEmptyResult)
	}
	return chunk, nil
}

func (h *TTSHandler) Cleanup() error {
	h.Wait()
	return nil
}
