package recorder

import (
	"time"

	"captionkit/capture"
	"captionkit/core"
	capevents "captionkit/events/capture"
	"captionkit/events/control"
	"captionkit/events/vad"
	"captionkit/metrics"
)

// RecorderHandler turns speech boundaries into sealed utterances. Audio
// chunks are consumed here; everything else is forwarded.
type RecorderHandler struct {
	*core.BaseHandler
	recorder *capture.Recorder
	config   RecorderConfig
	metrics  *metrics.Metrics

	speaking bool
	keyHeld  bool
}

func NewRecorderHandler(config RecorderConfig, m *metrics.Metrics) *RecorderHandler {
	return &RecorderHandler{
		BaseHandler: core.NewBaseHandler("RecorderHandler", nil),
		recorder:    capture.NewRecorder(config.Capture),
		config:      config,
		metrics:     m,
	}
}

func (h *RecorderHandler) Start() error {
	h.StartLoop(h.HandleEvent)
	return nil
}

// IsRecording reports whether an utterance is open.
func (h *RecorderHandler) IsRecording() bool {
	return h.recorder.IsRecording()
}

func (h *RecorderHandler) HandleEvent(eventPacket *core.EventPacket) error {
	auto := h.config.Mode != core.ModePushToTalk

	switch event := eventPacket.Event.(type) {
	case *vad.VADAudioChunkEvent:
		h.appendChunk(event.AudioChunk)
		return nil
	case *vad.VadUserSpeechStartedEvent:
		if auto {
			h.speaking = true
			if !h.recorder.Start(event.SpeechStartedAt) {
				h.Logger.Debug("speech start while recording, ignored")
			}
		}
	case *vad.VadUserSpeechEndedEvent:
		if auto {
			h.speaking = false
			h.stop(event.SilenceStartedAt)
		}
	case *control.PushToTalkDownEvent:
		if !auto {
			h.keyHeld = true
			h.recorder.Start(event.At)
		}
		return nil
	case *control.PushToTalkUpEvent:
		if !auto {
			h.keyHeld = false
			h.stop(time.Time{})
		}
		return nil
	}
	h.SendPacket(eventPacket)
	return nil
}

func (h *RecorderHandler) appendChunk(chunk core.AudioChunk) {
	res, forced, err := h.recorder.Append(chunk)
	if err != nil {
		h.Logger.Error("sealing utterance failed", "error", err)
		return
	}
	if !forced {
		return
	}
	h.Logger.Info("utterance reached max duration", "utterance_id", res.Utterance.ID)
	h.publish(res)
	if h.speaking || h.keyHeld {
		h.recorder.Start(chunk.Timestamp.Add(chunk.Duration()))
	}
}

func (h *RecorderHandler) stop(trimFrom time.Time) {
	res, ok, err := h.recorder.Stop(trimFrom)
	if err != nil {
		h.Logger.Error("sealing utterance failed", "error", err)
		return
	}
	if ok {
		h.publish(res)
	}
}

func (h *RecorderHandler) publish(res capture.Result) {
	utt := res.Utterance
	if res.Discarded {
		h.metrics.UtteranceDiscarded()
		h.Logger.Debug("utterance below minimum size, discarded", "utterance_id", utt.ID, "bytes", len(utt.Audio))
		h.Emit(&capevents.UtteranceDiscardedEvent{UtteranceID: utt.ID, Size: len(utt.Audio)})
		return
	}
	h.metrics.UtteranceSealed(utt.Forced, utt.Duration.Seconds())
	h.Logger.Info("utterance sealed", "utterance_id", utt.ID, "duration", utt.Duration, "bytes", len(utt.Audio), "forced", utt.Forced)
	h.Emit(&capevents.UtteranceSealedEvent{Utterance: utt})
}

// Cleanup drops any open recording so nothing is sealed after stop.
func (h *RecorderHandler) Cleanup() error {
	if h.recorder.Discard() {
		h.Logger.Info("open utterance discarded on stop")
	}
	return nil
}

func (h *RecorderHandler) Reset() error {
	h.recorder.Discard()
	h.speaking = false
	h.keyHeld = false
	return nil
}
