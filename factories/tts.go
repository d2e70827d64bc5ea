package factories

import (
	"captionkit/core"
	ttshandler "captionkit/handlers/tts"
	"captionkit/services/custom"
	elevenlabs "captionkit/services/elevenlabs/tts"
	openaitts "captionkit/services/openai/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set at most one provider config.
type TTSFactoryConfig struct {
	OpenAIConfig     *openaitts.Config                `json:"openai,omitempty"`
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
	CustomConfig     *custom.EndpointConfig          `json:"custom,omitempty"`
}

// BuildTTSService returns nil when no provider is configured, which turns
// the translation feature into captions only.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.ITTSService, error) {
	switch {
	case config.OpenAIConfig != nil:
		return openaitts.NewOpenAITTSService(*config.OpenAIConfig)
	case config.ElevenLabsConfig != nil:
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	case config.CustomConfig != nil:
		return custom.NewSynthesizer(*config.CustomConfig)
	}
	return nil, nil
}
