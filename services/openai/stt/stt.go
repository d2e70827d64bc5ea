// Package stt transcribes utterances with OpenAI's audio API. Any
// OpenAI-compatible endpoint works through BaseURL, e.g. Groq's
// https://api.groq.com/openai/v1 with whisper-large-v3.
package stt

import (
	"bytes"
	"context"
	"fmt"

	stthandler "captionkit/handlers/stt"

	"github.com/sashabaranov/go-openai"
)

type Config struct {
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
	Name     string `json:"name"`     // Provider ID in logs and metrics. Defaults to "openai".
	Language string `json:"language"` // Used when the request carries no language.
	Prompt   string `json:"prompt"`   // Vocabulary hint.
}

func DefaultConfig() Config {
	return Config{
		Model: openai.Whisper1,
		Name:  "openai",
	}
}

type OpenAISTTService struct {
	client *openai.Client
	config Config
}

func NewOpenAISTTService(config Config) (*OpenAISTTService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai stt: API key is required")
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	if config.Name == "" {
		config.Name = "openai"
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAISTTService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

func (s *OpenAISTTService) ID() string {
	return s.config.Name
}

func (s *OpenAISTTService) Transcribe(ctx context.Context, req stthandler.Request) (string, error) {
	language := req.Language
	if language == "" {
		language = s.config.Language
	}
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.Model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(req.Audio),
		Prompt:   s.config.Prompt,
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("%s: transcription: %w", s.config.Name, err)
	}
	return resp.Text, nil
}
