package factories

import (
	"errors"
	"fmt"

	"captionkit/core"
	stthandler "captionkit/handlers/stt"
	"captionkit/services/custom"
	deepgramstt "captionkit/services/deepgram/stt"
	openaistt "captionkit/services/openai/stt"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "whisper-large-v3"
)

// STTFactoryConfig holds provider-specific configs for STT service construction.
// Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	DeepgramConfig *deepgramstt.DeepgramConfig `json:"deepgram,omitempty"`
	OpenAIConfig   *openaistt.Config           `json:"openai,omitempty"`
	GroqConfig     *openaistt.Config           `json:"groq,omitempty"`
	CustomConfig   *custom.EndpointConfig      `json:"custom,omitempty"`
}

// DefaultGroqConfig points the OpenAI transcription client at Groq.
func DefaultGroqConfig() *openaistt.Config {
	return &openaistt.Config{BaseURL: groqBaseURL, Model: groqModel, Name: "groq"}
}

// BuildSTTService constructs an ISTTService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (stthandler.ISTTService, error) {
	if config.DeepgramConfig != nil {
		if config.DeepgramConfig.APIKey == "" {
			return nil, errors.New("deepgram: API key is required")
		}
		return deepgramstt.NewDeepgramSTTService(config.DeepgramConfig, logger), nil
	}
	if config.GroqConfig != nil {
		cfg := *config.GroqConfig
		if cfg.BaseURL == "" {
			cfg.BaseURL = groqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = groqModel
		}
		if cfg.Name == "" {
			cfg.Name = "groq"
		}
		return openaistt.NewOpenAISTTService(cfg)
	}
	if config.OpenAIConfig != nil {
		return openaistt.NewOpenAISTTService(*config.OpenAIConfig)
	}
	if config.CustomConfig != nil {
		return custom.NewTranscriber(*config.CustomConfig)
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}

// BuildTranscribers builds the fallback chain in priority order. Providers
// that cannot be built are skipped with a warning; an empty chain is an error.
func BuildTranscribers(configs []STTFactoryConfig, logger *core.Logger) ([]stthandler.ISTTService, error) {
	var chain []stthandler.ISTTService
	var errs []error
	for i, cfg := range configs {
		svc, err := BuildSTTService(cfg, logger)
		if err != nil {
			logger.Warn("skipping transcription provider", "position", i, "error", err)
			errs = append(errs, fmt.Errorf("stt[%d]: %w", i, err))
			continue
		}
		chain = append(chain, svc)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable transcription provider: %w", errors.Join(errs...))
	}
	if len(chain) == 1 {
		logger.Warn("only one transcription provider configured; an outage will drop captions", "provider", chain[0].ID())
	}
	return chain, nil
}
