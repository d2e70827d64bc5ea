// Package custom talks to self-hosted providers that expose the plain HTTP
// contracts of the pipeline:
//
//	transcription: POST audio/octet-stream -> {"text": "..."}
//	translation:   POST {"originalText", "targetLang", "sourceLang"?} -> {"corrected", "translated"}
//	synthesis:     POST {"text", "voiceId"} -> audio bytes, or {"audio": "<base64>"}
package custom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"captionkit/core"
	stthandler "captionkit/handlers/stt"
	"captionkit/utils/audio"

	"github.com/bytedance/sonic"
)

// EndpointConfig describes one HTTP endpoint.
type EndpointConfig struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	APIKey  string            `json:"api_key"` // Sent as a bearer token when set.
	Headers map[string]string `json:"headers"`

	// Synthesis only: format of raw PCM replies without a WAV header.
	SampleRate int `json:"sample_rate"`
}

type client struct {
	config EndpointConfig
	http   *http.Client
}

func newClient(config EndpointConfig, defaultName string) (client, error) {
	if config.URL == "" {
		return client{}, fmt.Errorf("custom %s: url is required", defaultName)
	}
	if config.Name == "" {
		config.Name = defaultName
	}
	return client{config: config, http: &http.Client{}}, nil
}

func (c client) post(ctx context.Context, contentType string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: create request: %w", c.config.Name, err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: request: %w", c.config.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read response: %w", c.config.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%s: status %d: %s", c.config.Name, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, data, nil
}

type Transcriber struct {
	client
}

func NewTranscriber(config EndpointConfig) (*Transcriber, error) {
	c, err := newClient(config, "custom-stt")
	if err != nil {
		return nil, err
	}
	return &Transcriber{client: c}, nil
}

func (t *Transcriber) ID() string {
	return t.config.Name
}

func (t *Transcriber) Transcribe(ctx context.Context, req stthandler.Request) (string, error) {
	_, data, err := t.post(ctx, "application/octet-stream", req.Audio)
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", t.config.Name, err)
	}
	return out.Text, nil
}

type Translator struct {
	client
}

func NewTranslator(config EndpointConfig) (*Translator, error) {
	c, err := newClient(config, "custom-translate")
	if err != nil {
		return nil, err
	}
	return &Translator{client: c}, nil
}

func (t *Translator) ID() string {
	return t.config.Name
}

func (t *Translator) CorrectAndTranslate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return core.TranslationResult{}, err
	}
	_, data, err := t.post(ctx, "application/json", body)
	if err != nil {
		return core.TranslationResult{}, err
	}
	var out core.TranslationResult
	if err := sonic.Unmarshal(data, &out); err != nil {
		return core.TranslationResult{}, fmt.Errorf("%s: decode response: %w", t.config.Name, err)
	}
	return out, nil
}

type Synthesizer struct {
	client
}

func NewSynthesizer(config EndpointConfig) (*Synthesizer, error) {
	if config.SampleRate == 0 {
		config.SampleRate = 24000
	}
	c, err := newClient(config, "custom-tts")
	if err != nil {
		return nil, err
	}
	return &Synthesizer{client: c}, nil
}

func (s *Synthesizer) ID() string {
	return s.config.Name
}

type synthesisRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

// Synthesize accepts WAV, raw PCM at the configured rate, or a JSON body
// carrying base64 audio in "audio".
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID string) (core.AudioChunk, error) {
	body, err := sonic.Marshal(synthesisRequest{Text: text, VoiceID: voiceID})
	if err != nil {
		return core.AudioChunk{}, err
	}
	resp, data, err := s.post(ctx, "application/json", body)
	if err != nil {
		return core.AudioChunk{}, err
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var out struct {
			Audio []byte `json:"audio"`
		}
		if err := sonic.Unmarshal(data, &out); err != nil {
			return core.AudioChunk{}, fmt.Errorf("%s: decode response: %w", s.config.Name, err)
		}
		data = out.Audio
	}

	chunk := core.AudioChunk{Data: data, SampleRate: s.config.SampleRate, Channels: 1, Format: core.PCM}
	if channels, rate, err := audio.WAVFormat(data); err == nil {
		pcm, err := audio.StripWAVHeaderIfPresent(data)
		if err != nil {
			return core.AudioChunk{}, fmt.Errorf("%s: %w", s.config.Name, err)
		}
		chunk.Data, chunk.SampleRate, chunk.Channels = pcm, rate, channels
	}
	return chunk, nil
}
