// Package elevenlabs synthesizes captions over ElevenLabs' stream-input
// websocket. Each call opens a connection, sends the whole line and
// collects audio until the final frame.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"captionkit/core"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	VoiceID    string `json:"voice_id"`
	ModelID    string `json:"model_id"`
	SampleRate int    `json:"sample_rate"`

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer
}

// Client messages
type (
	// BOS (Beginning of Stream) - sent once on connect
	elBOSMessage struct {
		Text             string          `json:"text"`
		VoiceSettings    elVoiceSettings `json:"voice_settings"`
		GenerationConfig elGenConfig     `json:"generation_config"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elGenConfig struct {
		ChunkLengthSchedule []int `json:"chunk_length_schedule"`
	}

	elTextMessage struct {
		Text  string `json:"text"`
		Flush bool   `json:"flush,omitempty"`
	}
)

// Server messages
type (
	elAudioMessage struct {
		Audio   string `json:"audio"`
		IsFinal bool   `json:"isFinal"`
	}

	elErrorMessage struct {
		Error   string `json:"error"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	}
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Default: Rachel
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_turbo_v2_5"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 24000
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.75
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		logger: logger.With(map[string]any{"provider": "elevenlabs"}),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (e *ElevenLabsTTS) ID() string {
	return "elevenlabs"
}

// outputFormatString maps a PCM sample rate to ElevenLabs' output_format param
func outputFormatString(sampleRate int) (string, int) {
	switch sampleRate {
	case 16000:
		return "pcm_16000", 16000
	case 22050:
		return "pcm_22050", 22050
	case 44100:
		return "pcm_44100", 44100
	default:
		return "pcm_24000", 24000
	}
}

// Synthesize speaks text with voiceID, or the configured voice when empty.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text, voiceID string) (core.AudioChunk, error) {
	if e.config.APIKey == "" {
		return core.AudioChunk{}, errors.New("ElevenLabs API key is required")
	}
	if voiceID == "" {
		voiceID = e.config.VoiceID
	}
	format, rate := outputFormatString(e.config.SampleRate)

	conn, err := e.dial(ctx, voiceID, format)
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("elevenlabs: connect: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	if err := e.sendText(conn, text); err != nil {
		return core.AudioChunk{}, fmt.Errorf("elevenlabs: send: %w", err)
	}

	var pcm []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return core.AudioChunk{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return core.AudioChunk{}, fmt.Errorf("elevenlabs: read: %w", err)
		}

		var errMsg elErrorMessage
		if sonic.Unmarshal(data, &errMsg) == nil && (errMsg.Error != "" || errMsg.Message != "") {
			return core.AudioChunk{}, fmt.Errorf("elevenlabs: %s %s", errMsg.Error, errMsg.Message)
		}
		var msg elAudioMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("unparseable frame", "error", err)
			continue
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return core.AudioChunk{}, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if msg.IsFinal {
			break
		}
	}

	e.logger.Debug("synthesized", "voice", voiceID, "bytes", len(pcm))
	return core.AudioChunk{Data: pcm, SampleRate: rate, Channels: 1, Format: core.PCM}, nil
}

func (e *ElevenLabsTTS) dial(ctx context.Context, voiceID, format string) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("model_id", e.config.ModelID)
	q.Set("output_format", format)
	endpoint := fmt.Sprintf("%s/%s/stream-input?%s", strings.TrimRight(e.config.BaseURL, "/"), url.PathEscape(voiceID), q.Encode())

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)
	conn, _, err := e.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	return conn, nil
}

// sendText sends BOS, the line itself and the empty end-of-stream message.
func (e *ElevenLabsTTS) sendText(conn *websocket.Conn, text string) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	bos := elBOSMessage{
		Text: " ",
		VoiceSettings: elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
		GenerationConfig: elGenConfig{
			ChunkLengthSchedule: []int{120, 160, 250, 290},
		},
	}
	for _, msg := range []any{bos, elTextMessage{Text: text + " ", Flush: true}, elTextMessage{Text: ""}} {
		data, err := sonic.Marshal(msg)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}
