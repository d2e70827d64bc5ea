// Package session runs one participant's caption pipeline: it builds the
// stage handlers, starts and stops them as a unit and keeps the caption
// history that local and remote captions are merged into.
package session

import (
	"context"
	"sync"
	"time"

	"captionkit/cache"
	"captionkit/caption"
	"captionkit/core"
	captionevents "captionkit/events/caption"
	"captionkit/events/control"
	"captionkit/events/vad"
	playbackhandler "captionkit/handlers/playback"
	recorderhandler "captionkit/handlers/recorder"
	stthandler "captionkit/handlers/stt"
	transporthandler "captionkit/handlers/transport"
	translatehandler "captionkit/handlers/translate"
	ttshandler "captionkit/handlers/tts"
	vadhandler "captionkit/handlers/vad"
	"captionkit/metrics"
	"captionkit/runner"
)

// Dependencies are the devices and providers a session drives. Only
// Microphone is required.
type Dependencies struct {
	Microphone   transporthandler.Microphone
	DataChannel  transporthandler.DataChannel
	Speaker      transporthandler.Speaker
	Transcribers []stthandler.ISTTService
	Translator   translatehandler.ITranslateService
	Synthesizer  ttshandler.ITTSService
	Cache        *cache.Cache
	Metrics      *metrics.Metrics
	Logger       *core.Logger
}

// Listener receives session output. Any field may be nil. Callbacks run on
// the pipeline's output goroutine and must not block.
type Listener struct {
	OnCaption func(c core.Caption, remote bool)
	OnLevel   func(level int)
	OnWarning func(stage, message string)
}

type Session struct {
	deps     Dependencies
	history  *caption.History
	logger   *core.Logger
	listener Listener

	mu       sync.Mutex
	config   Config
	runner   *runner.Runner
	vad      *vadhandler.VADHandler
	playback *playbackhandler.PlaybackHandler
}

func New(config Config, deps Dependencies) *Session {
	if deps.Logger == nil {
		deps.Logger = core.GetLogger()
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.DefaultConfig())
	}
	return &Session{
		deps:    deps,
		config:  config,
		history: caption.NewHistory(config.HistorySize),
		logger:  deps.Logger.With(map[string]any{"component": "session"}),
	}
}

// SetListener replaces the output callbacks. It takes effect on the next Start.
func (s *Session) SetListener(l Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// Start builds the pipeline and begins listening. A microphone that cannot
// be opened fails Start with a core.DeviceError; no other failure does.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runner != nil {
		return core.ErrSessionRunning
	}
	if err := s.config.Validate(); err != nil {
		return err
	}

	r := s.buildPipeline()
	ctx = core.ContextWithSessionLogger(ctx, core.LoggerFromContext(ctx, s.deps.Logger))
	if err := r.Start(ctx); err != nil {
		s.vad, s.playback = nil, nil
		s.logger.Error("session failed to start", "error", err)
		return err
	}
	s.runner = r
	s.logger.Info("session started", "mode", s.config.Mode.String(), "feature", s.config.Feature.String(), "target_lang", s.config.Translate.TargetLang)
	return nil
}

func (s *Session) buildPipeline() *runner.Runner {
	cfg := s.config
	d := s.deps

	cfg.VAD.Mode = cfg.Mode
	cfg.Recorder.Mode = cfg.Mode
	cfg.TTS.Feature = cfg.Feature
	if cfg.STT.Language == "" {
		cfg.STT.Language = cfg.Translate.SourceLang
	}
	if cfg.Translate.SpeakerID == "" && d.DataChannel != nil {
		cfg.Translate.SpeakerID = d.DataChannel.LocalIdentity()
	}
	if cfg.Translate.SpeakerName == "" {
		cfg.Translate.SpeakerName = cfg.Transport.LocalName
	}
	if cfg.TTS.SenderName == "" {
		cfg.TTS.SenderName = cfg.Translate.SpeakerName
	}

	transport := transporthandler.NewTransportHandlerWrapper(d.Microphone, d.DataChannel, cfg.Transport, d.Metrics)
	s.vad = vadhandler.NewVADHandler(cfg.VAD)
	s.playback = playbackhandler.NewPlaybackHandler(d.Speaker, cfg.Playback, d.Metrics)

	r := runner.NewRunner([]core.IHandler{
		transport.GetInputHandler(),
		s.vad,
		recorderhandler.NewRecorderHandler(cfg.Recorder, d.Metrics),
		stthandler.NewSTTHandler(d.Transcribers, d.Cache, cfg.STT, d.Metrics),
		translatehandler.NewTranslateHandler(d.Translator, d.Cache, cfg.Translate, d.Metrics),
		ttshandler.NewTTSHandler(d.Synthesizer, cfg.TTS, d.Metrics),
		s.playback,
		transport.GetOutputHandler(),
	})
	listener := s.listener
	r.OnOutput = func(packet *core.EventPacket) { s.handleOutput(listener, packet) }
	r.OnWarning = func(w *core.WarningEvent) {
		if listener.OnWarning != nil {
			listener.OnWarning(w.Stage, w.Error)
		}
	}
	return r
}

func (s *Session) handleOutput(l Listener, packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *captionevents.CaptionEvent:
		if !s.history.Add(event.Caption) {
			return
		}
		s.deps.Metrics.CaptionShown(event.Remote)
		s.logger.Info("caption", "caption_id", event.Caption.ID, "speaker", event.Caption.SpeakerName, "remote", event.Remote, "text", event.Caption.TranslatedText)
		if l.OnCaption != nil {
			l.OnCaption(event.Caption, event.Remote)
		}
	case *vad.VadLevelEvent:
		if l.OnLevel != nil {
			l.OnLevel(event.Level)
		}
	}
}

// Stop halts the pipeline. The open recording is discarded, late provider
// results are dropped and pending playback is cleared. Stopping a stopped
// session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runner == nil {
		return nil
	}
	err := s.runner.Stop()
	s.runner = nil
	s.vad, s.playback = nil, nil
	s.logger.Info("session stopped")
	return err
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner != nil
}

// Config returns a copy of the current configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetMode switches between automatic and push-to-talk capture. The session
// must be stopped.
func (s *Session) SetMode(mode core.Mode) error {
	return s.UpdateSettings(Settings{Mode: &mode})
}

// UpdateSettings applies settings to a stopped session. Invalid settings
// leave the configuration unchanged.
func (s *Session) UpdateSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runner != nil {
		return core.ErrSessionRunning
	}
	next := settings.Apply(s.config)
	if err := next.Validate(); err != nil {
		return err
	}
	// Cached entries hold text in the old languages.
	if next.Translate.TargetLang != s.config.Translate.TargetLang || next.Translate.SourceLang != s.config.Translate.SourceLang {
		s.deps.Cache.Purge()
		s.logger.Info("language changed, transcript cache cleared", "target_lang", next.Translate.TargetLang, "source_lang", next.Translate.SourceLang)
	}
	s.config = next
	return nil
}

// PushToTalk reports a key press or release. It is ignored unless the
// session runs in push-to-talk mode.
func (s *Session) PushToTalk(down bool) error {
	s.mu.Lock()
	r, mode := s.runner, s.config.Mode
	s.mu.Unlock()
	if r == nil {
		return runner.ErrNotRunning
	}
	if mode != core.ModePushToTalk {
		return nil
	}
	now := time.Now()
	if down {
		return r.Inject(&control.PushToTalkDownEvent{At: now})
	}
	return r.Inject(&control.PushToTalkUpEvent{At: now})
}

// History returns the most recent captions, oldest first.
func (s *Session) History() []core.Caption {
	return s.history.Snapshot()
}

// ClearHistory forgets every caption shown so far.
func (s *Session) ClearHistory() {
	s.history.Clear()
}

// Level reports the smoothed microphone level, 0 to 100.
func (s *Session) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vad == nil {
		return 0
	}
	return s.vad.Level()
}

// QueueDepth reports how many clips wait to be played.
func (s *Session) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback == nil {
		return 0
	}
	return s.playback.QueueLen()
}
