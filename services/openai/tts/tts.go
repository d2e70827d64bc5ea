// Package tts synthesizes translated captions with OpenAI's speech API.
package tts

import (
	"context"
	"fmt"
	"io"

	"captionkit/core"

	"github.com/sashabaranov/go-openai"
)

// The pcm response format is 24kHz mono 16-bit little endian.
const pcmSampleRate = 24000

type Config struct {
	APIKey  string  `json:"api_key"`
	BaseURL string  `json:"base_url"`
	Model   string  `json:"model"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed"`
}

func DefaultConfig() Config {
	return Config{
		Model: string(openai.TTSModel1),
		Voice: string(openai.VoiceAlloy),
		Speed: 1.0,
	}
}

type OpenAITTSService struct {
	client *openai.Client
	config Config
}

func NewOpenAITTSService(config Config) (*OpenAITTSService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Voice == "" {
		config.Voice = defaults.Voice
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAITTSService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

func (s *OpenAITTSService) ID() string {
	return "openai"
}

// Synthesize uses voiceID when set, falling back to the configured voice.
func (s *OpenAITTSService) Synthesize(ctx context.Context, text, voiceID string) (core.AudioChunk, error) {
	voice := s.config.Voice
	if voiceID != "" {
		voice = voiceID
	}
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          s.config.Speed,
	})
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("read speech: %w", err)
	}
	return core.AudioChunk{
		Data:       data,
		SampleRate: pcmSampleRate,
		Channels:   1,
		Format:     core.PCM,
	}, nil
}
