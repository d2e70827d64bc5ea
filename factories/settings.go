package factories

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"captionkit/cache"
	"captionkit/core"
	"captionkit/hotkey"
	"captionkit/session"
	openaistt "captionkit/services/openai/stt"
	openaitranslate "captionkit/services/openai/translate"
	openaitts "captionkit/services/openai/tts"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// CacheConfig bounds the transcription cache.
type CacheConfig struct {
	Size       int `json:"size"`
	TTLMinutes int `json:"ttl_minutes"`
}

// HotkeyConfig binds push-to-talk to a global key combo. An empty Combo
// disables the hotkey.
type HotkeyConfig struct {
	Combo string `json:"combo"`
	Mode  string `json:"mode"` // "hold" or "toggle"
}

// SettingsConfig is the top-level config loaded from settings.json or
// settings.yaml. Secrets are injected from the environment afterwards.
type SettingsConfig struct {
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"` // "console" or "json"
	LogDir      string `json:"log_dir"`    // Per-session .jsonl logs when set.
	MetricsAddr string `json:"metrics_addr"`

	// SpeakerName is shown next to this participant's captions.
	SpeakerName string           `json:"speaker_name"`
	HistorySize int              `json:"history_size"`
	Session     session.Settings `json:"session"`
	Cache       CacheConfig      `json:"cache"`
	Hotkey      HotkeyConfig     `json:"hotkey"`

	// STT lists transcription providers in priority order.
	STT       []STTFactoryConfig     `json:"stt"`
	Translate TranslateFactoryConfig `json:"translate"`
	TTS       TTSFactoryConfig       `json:"tts"`
	Transport TransportFactoryConfig `json:"transport"`
}

// DefaultSettingsConfig returns Groq then OpenAI for transcription, OpenAI
// for translation and synthesis, and no call.
func DefaultSettingsConfig() SettingsConfig {
	cacheDefaults := cache.DefaultConfig()
	sttOpenAI := openaistt.DefaultConfig()
	translateOpenAI := openaitranslate.DefaultConfig()
	ttsOpenAI := openaitts.DefaultConfig()
	return SettingsConfig{
		LogLevel:    "info",
		LogFormat:   "console",
		SpeakerName: "Me",
		Cache: CacheConfig{
			Size:       cacheDefaults.Size,
			TTLMinutes: int(cacheDefaults.TTL.Minutes()),
		},
		Hotkey: HotkeyConfig{Mode: hotkey.ModeHold},
		STT: []STTFactoryConfig{
			{GroqConfig: DefaultGroqConfig()},
			{OpenAIConfig: &sttOpenAI},
		},
		Translate: TranslateFactoryConfig{OpenAIConfig: &translateOpenAI},
		TTS:       TTSFactoryConfig{OpenAIConfig: &ttsOpenAI},
		Transport: DefaultTransportFactoryConfig(),
	}
}

// SettingsConfigFromJSON parses a JSON blob, starting from
// DefaultSettingsConfig so that absent fields keep their defaults. A present
// "stt" list replaces the default chain.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	if _, ok := raw["stt"]; ok {
		cfg.STT = nil
	}
	if _, ok := raw["translate"]; ok {
		cfg.Translate = TranslateFactoryConfig{}
	}
	if _, ok := raw["tts"]; ok {
		cfg.TTS = TTSFactoryConfig{}
	}
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromYAML accepts the same document as SettingsConfigFromJSON
// written in YAML.
func SettingsConfigFromYAML(data []byte) (SettingsConfig, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	if doc == nil {
		return DefaultSettingsConfig(), nil
	}
	asJSON, err := sonic.Marshal(doc)
	if err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return SettingsConfigFromJSON(asJSON)
}

// SettingsConfigFromFile picks the parser from the file extension.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SettingsConfigFromYAML(data)
	default:
		return SettingsConfigFromJSON(data)
	}
}

// SettingsConfigFromBase64 decodes SETTINGS_JSON_B64-style payloads.
func SettingsConfigFromBase64(b64 string) (SettingsConfig, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: decode base64: %w", err)
	}
	return SettingsConfigFromJSON(data)
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c SettingsConfig) Logger() (*core.Logger, error) {
	var logger *core.Logger
	switch c.LogFormat {
	case "json":
		logger = core.NewJSONLogger(os.Stderr)
	case "", "console":
		logger = core.NewDevelopmentLogger()
	default:
		return nil, fmt.Errorf("settings: log_format must be \"console\" or \"json\", got %q", c.LogFormat)
	}
	level, err := core.ParseLogLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	logger.SetLevel(level)
	return logger, nil
}
