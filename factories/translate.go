package factories

import (
	"captionkit/core"
	translatehandler "captionkit/handlers/translate"
	"captionkit/services/custom"
	openaitranslate "captionkit/services/openai/translate"
)

// TranslateFactoryConfig selects the correction and translation provider.
type TranslateFactoryConfig struct {
	OpenAIConfig *openaitranslate.Config `json:"openai,omitempty"`
	GroqConfig   *openaitranslate.Config `json:"groq,omitempty"`
	CustomConfig *custom.EndpointConfig  `json:"custom,omitempty"`
}

// BuildTranslateService returns nil when no provider is configured; captions
// then carry the normalized transcript unchanged.
func BuildTranslateService(config TranslateFactoryConfig, logger *core.Logger) (translatehandler.ITranslateService, error) {
	switch {
	case config.OpenAIConfig != nil:
		return openaitranslate.NewOpenAITranslateService(*config.OpenAIConfig)
	case config.GroqConfig != nil:
		cfg := *config.GroqConfig
		if cfg.BaseURL == "" {
			cfg.BaseURL = groqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = "llama-3.1-8b-instant"
		}
		return openaitranslate.NewOpenAITranslateService(cfg)
	case config.CustomConfig != nil:
		return custom.NewTranslator(*config.CustomConfig)
	}
	logger.Warn("no translation provider configured; captions will not be corrected or translated")
	return nil, nil
}
