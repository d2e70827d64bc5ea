package factories

import (
	"fmt"
	"time"

	"captionkit/cache"
	"captionkit/core"
	stthandler "captionkit/handlers/stt"
	translatehandler "captionkit/handlers/translate"
	ttshandler "captionkit/handlers/tts"
	"captionkit/metrics"
	"captionkit/session"
)

// APIKeys holds API credentials for all supported service providers.
// Pass to SettingsConfig.InjectAPIKeys after loading from JSON so that
// secrets are never stored in config files.
type APIKeys struct {
	Deepgram   string
	OpenAI     string
	Groq       string
	ElevenLabs string
}

// InjectAPIKeys applies credentials only where the config left them empty,
// so keys already set in the config file are preserved.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	for _, s := range c.STT {
		if s.DeepgramConfig != nil {
			s.DeepgramConfig.APIKey = orDefault(s.DeepgramConfig.APIKey, keys.Deepgram)
		}
		if s.OpenAIConfig != nil {
			s.OpenAIConfig.APIKey = orDefault(s.OpenAIConfig.APIKey, keys.OpenAI)
		}
		if s.GroqConfig != nil {
			s.GroqConfig.APIKey = orDefault(s.GroqConfig.APIKey, keys.Groq)
		}
	}
	if t := c.Translate.OpenAIConfig; t != nil {
		t.APIKey = orDefault(t.APIKey, keys.OpenAI)
	}
	if t := c.Translate.GroqConfig; t != nil {
		t.APIKey = orDefault(t.APIKey, keys.Groq)
	}
	if t := c.TTS.OpenAIConfig; t != nil {
		t.APIKey = orDefault(t.APIKey, keys.OpenAI)
	}
	if t := c.TTS.ElevenLabsConfig; t != nil {
		t.APIKey = orDefault(t.APIKey, keys.ElevenLabs)
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// SessionConfig applies the user settings to the session defaults and
// validates the result.
func (c SettingsConfig) SessionConfig() (session.Config, error) {
	cfg := c.Session.Apply(session.DefaultConfig())
	cfg.Transport.LocalName = c.SpeakerName
	if c.Transport.Audio.SampleRate > 0 {
		cfg.Transport.SampleRate = c.Transport.Audio.SampleRate
	}
	if c.Transport.Audio.Channels > 0 {
		cfg.Transport.Channels = c.Transport.Audio.Channels
	}
	if c.HistorySize > 0 {
		cfg.HistorySize = c.HistorySize
	}
	if err := cfg.Validate(); err != nil {
		return session.Config{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// Providers are the external services a session calls.
type Providers struct {
	Transcribers []stthandler.ISTTService
	Translator   translatehandler.ITranslateService
	Synthesizer  ttshandler.ITTSService
}

func (c SettingsConfig) BuildProviders(logger *core.Logger) (Providers, error) {
	transcribers, err := BuildTranscribers(c.STT, logger)
	if err != nil {
		return Providers{}, err
	}
	p := Providers{Transcribers: transcribers}

	translator, err := BuildTranslateService(c.Translate, logger)
	if err != nil {
		return Providers{}, fmt.Errorf("translate: %w", err)
	}
	if translator != nil {
		p.Translator = translator
	}

	synthesizer, err := BuildTTSService(c.TTS, logger)
	if err != nil {
		logger.Warn("speech synthesis unavailable; spoken translations disabled", "error", err)
	} else if synthesizer != nil {
		p.Synthesizer = synthesizer
	}
	return p, nil
}

// Dependencies assembles session.Dependencies from the built parts.
func (c SettingsConfig) Dependencies(devices Devices, providers Providers, m *metrics.Metrics, logger *core.Logger) session.Dependencies {
	return session.Dependencies{
		Microphone:   devices.Microphone,
		DataChannel:  devices.DataChannel,
		Speaker:      devices.Speaker,
		Transcribers: providers.Transcribers,
		Translator:   providers.Translator,
		Synthesizer:  providers.Synthesizer,
		Cache: cache.New(cache.Config{
			Size: c.Cache.Size,
			TTL:  time.Duration(c.Cache.TTLMinutes) * time.Minute,
		}),
		Metrics: m,
		Logger:  logger,
	}
}
