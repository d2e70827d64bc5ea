package vad

import (
	"captionkit/core"
	"captionkit/events/transport"
	"captionkit/events/vad"
	"captionkit/vad/energy"
)

// VADHandler measures microphone energy and announces where speech starts
// and ends. Transitions for a chunk are emitted ahead of the chunk itself so
// the recorder is open before the audio that triggered it arrives.
type VADHandler struct {
	*core.BaseHandler
	detector *energy.Detector
	windower *energy.Windower
	config   VADConfig

	lastLevel int
}

func NewVADHandler(config VADConfig) *VADHandler {
	h := &VADHandler{
		BaseHandler: core.NewBaseHandler("VADHandler", nil),
		detector:    energy.NewDetector(config.Detector),
		windower:    energy.NewWindower(config.Detector.Interval),
		config:      config,
		lastLevel:   -1,
	}
	h.detector.SetPushToTalk(config.Mode == core.ModePushToTalk)
	return h
}

func (h *VADHandler) Start() error {
	h.StartLoop(h.HandleEvent)
	return nil
}

// State reports the detector state.
func (h *VADHandler) State() energy.State {
	return h.detector.State()
}

// Level reports the smoothed input level, 0 to 100.
func (h *VADHandler) Level() int {
	return h.detector.Level()
}

func (h *VADHandler) HandleEvent(eventPacket *core.EventPacket) error {
	event, ok := eventPacket.Event.(*transport.TransportAudioInputEvent)
	if !ok {
		h.SendPacket(eventPacket)
		return nil
	}

	var rms float64
	for _, frame := range h.windower.Push(event.AudioChunk) {
		rms = frame.RMS
		for _, t := range h.detector.Observe(frame.RMS, frame.At) {
			h.emitTransition(t)
		}
	}
	if level := h.detector.Level(); level != h.lastLevel {
		h.lastLevel = level
		h.Emit(&vad.VadLevelEvent{Level: level})
	}
	h.Emit(&vad.VADAudioChunkEvent{AudioChunk: event.AudioChunk, RMS: rms})
	return nil
}

func (h *VADHandler) emitTransition(t energy.Transition) {
	switch t.Kind {
	case energy.SpeechStarted:
		h.Logger.Debug("speech started", "since", t.Since, "detected_at", t.At)
		h.Emit(&vad.VadUserSpeechStartedEvent{SpeechStartedAt: t.Since, DetectedAt: t.At})
	case energy.SpeechEnded:
		h.Logger.Debug("speech ended", "silence_since", t.Since, "detected_at", t.At)
		h.Emit(&vad.VadUserSpeechEndedEvent{SilenceStartedAt: t.Since, DetectedAt: t.At})
	}
}

func (h *VADHandler) Reset() error {
	h.detector.Reset()
	h.windower.Reset()
	h.lastLevel = -1
	return nil
}
