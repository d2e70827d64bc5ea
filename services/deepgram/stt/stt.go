package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"captionkit/core"
	stthandler "captionkit/handlers/stt"

	"github.com/bytedance/sonic"
)

// DeepgramSTTService transcribes sealed utterances with Deepgram's
// pre-recorded /v1/listen endpoint.
type DeepgramSTTService struct {
	config *DeepgramConfig
	client *http.Client
	logger *core.Logger
}

// DeepgramConfig holds configuration options for Deepgram STT
type DeepgramConfig struct {
	APIKey          string            `json:"api_key"`
	BaseURL         string            `json:"base_url"`
	Model           string            `json:"model"`
	Language        string            `json:"language"`
	DetectLanguage  bool              `json:"detect_language"`
	Punctuate       bool              `json:"punctuate"`
	SmartFormat     bool              `json:"smart_format"`
	ProfanityFilter bool              `json:"profanity_filter"`
	Numerals        bool              `json:"numerals"`
	Keyterms        []string          `json:"keyterms"`
	Extra           map[string]string `json:"extra"`
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:     "https://api.deepgram.com",
		Model:       "nova-2",
		Punctuate:   true,
		SmartFormat: true,
	}
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepgram.com"
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramSTTService{
		config: config,
		client: &http.Client{},
		logger: logger.With(map[string]any{"provider": "deepgram"}),
	}
}

func (d *DeepgramSTTService) ID() string {
	return "deepgram"
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *DeepgramSTTService) Transcribe(ctx context.Context, req stthandler.Request) (string, error) {
	if d.config.APIKey == "" {
		return "", fmt.Errorf("deepgram: API key is required")
	}
	endpoint, err := d.buildURL(req.Language)
	if err != nil {
		return "", fmt.Errorf("deepgram: build url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return "", fmt.Errorf("deepgram: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+d.config.APIKey)
	mime := req.MimeType
	if mime == "" {
		mime = "audio/wav"
	}
	httpReq.Header.Set("Content-Type", mime)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("deepgram: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("deepgram: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed listenResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	alt := parsed.Results.Channels[0].Alternatives[0]
	d.logger.Debug("deepgram transcript", "confidence", alt.Confidence, "chars", len(alt.Transcript))
	return alt.Transcript, nil
}

// buildURL constructs the listen URL with query parameters. language
// overrides the configured language when set.
func (d *DeepgramSTTService) buildURL(language string) (string, error) {
	base, err := url.Parse(strings.TrimRight(d.config.BaseURL, "/") + "/v1/listen")
	if err != nil {
		return "", err
	}
	q := base.Query()
	if d.config.Model != "" {
		q.Set("model", d.config.Model)
	}
	if language == "" {
		language = d.config.Language
	}
	switch {
	case language != "":
		q.Set("language", language)
	case d.config.DetectLanguage:
		q.Set("detect_language", "true")
	}
	q.Set("punctuate", strconv.FormatBool(d.config.Punctuate))
	q.Set("smart_format", strconv.FormatBool(d.config.SmartFormat))
	q.Set("profanity_filter", strconv.FormatBool(d.config.ProfanityFilter))
	q.Set("numerals", strconv.FormatBool(d.config.Numerals))
	for _, keyterm := range d.config.Keyterms {
		q.Add("keyterm", keyterm)
	}
	for k, v := range d.config.Extra {
		q.Set(k, v)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}
