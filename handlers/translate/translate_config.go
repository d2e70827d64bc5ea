package translate

import "time"

type TranslateConfig struct {
	TargetLang  string        `json:"target_lang"` // Listener's language, e.g. "es".
	SourceLang  string        `json:"source_lang"` // Speaker's language. Empty means auto-detect.
	Timeout     time.Duration `json:"timeout"`
	SpeakerID   string        `json:"speaker_id"` // Stamped on every local caption; peers use it to drop their own echoes.
	SpeakerName string        `json:"speaker_name"`
}

// DefaultConfig returns a TranslateConfig with sensible defaults
func DefaultConfig() TranslateConfig {
	return TranslateConfig{
		TargetLang: "en",
		Timeout:    8 * time.Second,
	}
}
