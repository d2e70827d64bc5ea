// Package translate corrects and translates transcripts with an
// OpenAI-compatible chat completion model in JSON mode.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"captionkit/core"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You clean up live speech transcripts and translate them.
Fix obvious recognition mistakes, punctuation and casing without changing the meaning.
Then translate the corrected text into the target language.
Reply with a JSON object {"corrected": "...", "translated": "..."} and nothing else.
If the text is already in the target language, "translated" equals "corrected".`

type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		Temperature: 0.2,
		MaxTokens:   512,
	}
}

type OpenAITranslateService struct {
	client *openai.Client
	config Config
}

func NewOpenAITranslateService(config Config) (*OpenAITranslateService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAITranslateService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

func (s *OpenAITranslateService) ID() string {
	return "openai"
}

func (s *OpenAITranslateService) CorrectAndTranslate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	})
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.TranslationResult{}, errors.New("chat completion returned no choices")
	}
	return parseResult(resp.Choices[0].Message.Content)
}

func userPrompt(req core.TranslationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n", req.TargetLang)
	if req.SourceLang != "" {
		fmt.Fprintf(&b, "Source language: %s\n", req.SourceLang)
	} else {
		b.WriteString("Source language: detect\n")
	}
	fmt.Fprintf(&b, "Transcript: %s", req.OriginalText)
	return b.String()
}

// parseResult tolerates a fenced code block around the JSON object.
func parseResult(content string) (core.TranslationResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result core.TranslationResult
	if err := sonic.UnmarshalString(strings.TrimSpace(content), &result); err != nil {
		return core.TranslationResult{}, fmt.Errorf("decode model reply: %w", err)
	}
	result.CorrectedText = strings.TrimSpace(result.CorrectedText)
	result.TranslatedText = strings.TrimSpace(result.TranslatedText)
	return result, nil
}
