package session

import (
	"errors"
	"fmt"
	"time"

	"captionkit/caption"
	"captionkit/core"
	playbackhandler "captionkit/handlers/playback"
	recorderhandler "captionkit/handlers/recorder"
	stthandler "captionkit/handlers/stt"
	transporthandler "captionkit/handlers/transport"
	translatehandler "captionkit/handlers/translate"
	ttshandler "captionkit/handlers/tts"
	vadhandler "captionkit/handlers/vad"
)

// Config is everything a session needs besides its devices and providers.
// Mode and Feature are copied into the stage configs when the pipeline is
// built, so they only need to be set here.
type Config struct {
	Mode        core.Mode    `json:"mode"`
	Feature     core.Feature `json:"feature"`
	HistorySize int          `json:"history_size"`

	Transport transporthandler.TransportConfig `json:"transport"`
	VAD       vadhandler.VADConfig             `json:"vad"`
	Recorder  recorderhandler.RecorderConfig   `json:"recorder"`
	STT       stthandler.STTConfig             `json:"stt"`
	Translate translatehandler.TranslateConfig `json:"translate"`
	TTS       ttshandler.TTSConfig             `json:"tts"`
	Playback  playbackhandler.PlaybackConfig   `json:"playback"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Mode:        core.ModeAuto,
		Feature:     core.FeatureCaptions,
		HistorySize: caption.DefaultHistorySize,
		Transport:   transporthandler.DefaultConfig(),
		VAD:         vadhandler.DefaultConfig(),
		Recorder:    recorderhandler.DefaultConfig(),
		STT:         stthandler.DefaultConfig(),
		Translate:   translatehandler.DefaultConfig(),
		TTS:         ttshandler.DefaultConfig(),
		Playback:    playbackhandler.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if err := c.VAD.Detector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad: %w", err))
	}
	if c.Recorder.Capture.MaxDuration <= 0 {
		errs = append(errs, errors.New("recorder: max duration must be positive"))
	}
	if c.STT.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("stt: provider timeout must be positive"))
	}
	if c.Translate.Timeout <= 0 {
		errs = append(errs, errors.New("translate: timeout must be positive"))
	}
	if c.Translate.TargetLang == "" {
		errs = append(errs, errors.New("translate: target language is required"))
	}
	if c.Feature == core.FeatureTranslation && c.TTS.Timeout <= 0 {
		errs = append(errs, errors.New("tts: timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Settings are the knobs a user may change between runs. Nil fields are
// left as they are.
type Settings struct {
	Threshold         *float64      `json:"threshold,omitempty"`
	SilenceDurationMS *int          `json:"silence_duration_ms,omitempty"`
	MinSpeechMS       *int          `json:"min_speech_ms,omitempty"`
	TargetLang        *string       `json:"target_lang,omitempty"`
	SourceLang        *string       `json:"source_lang,omitempty"`
	VoiceID           *string       `json:"voice_id,omitempty"`
	Mode              *core.Mode    `json:"mode,omitempty"`
	Feature           *core.Feature `json:"feature,omitempty"`
	PlayOwnAudio      *bool         `json:"play_own_audio,omitempty"`
}

// Apply returns a copy of c with s applied.
func (s Settings) Apply(c Config) Config {
	if s.Threshold != nil {
		c.VAD.Detector.Threshold = *s.Threshold
	}
	if s.SilenceDurationMS != nil {
		c.VAD.Detector.SilenceDuration = msDuration(*s.SilenceDurationMS)
	}
	if s.MinSpeechMS != nil {
		c.VAD.Detector.MinSpeechDuration = msDuration(*s.MinSpeechMS)
	}
	if s.TargetLang != nil {
		c.Translate.TargetLang = *s.TargetLang
	}
	if s.SourceLang != nil {
		c.Translate.SourceLang = *s.SourceLang
		c.STT.Language = *s.SourceLang
	}
	if s.VoiceID != nil {
		c.TTS.VoiceID = *s.VoiceID
	}
	if s.Mode != nil {
		c.Mode = *s.Mode
	}
	if s.Feature != nil {
		c.Feature = *s.Feature
	}
	if s.PlayOwnAudio != nil {
		c.Playback.PlayOwnAudio = *s.PlayOwnAudio
	}
	return c
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
