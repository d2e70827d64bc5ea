package core

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects what opens and closes an utterance.
type Mode int

const (
	ModeAuto       Mode = iota // Voice activity detection drives recording.
	ModePushToTalk             // An explicit key hold drives recording.
)

func (m Mode) String() string {
	if m == ModePushToTalk {
		return "push_to_talk"
	}
	return "auto"
}

// ParseMode accepts "auto" and "push_to_talk" (or "ptt").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return ModeAuto, nil
	case "push_to_talk", "ptt", "push-to-talk":
		return ModePushToTalk, nil
	default:
		return ModeAuto, fmt.Errorf("mode must be \"auto\" or \"push_to_talk\", got %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Feature selects how far down the pipeline an utterance travels.
type Feature int

const (
	FeatureCaptions    Feature = iota // Transcribe, correct and translate; broadcast captions.
	FeatureTranslation                // Additionally synthesize and broadcast spoken translations.
)

func (f Feature) String() string {
	if f == FeatureTranslation {
		return "translation"
	}
	return "captions"
}

func ParseFeature(s string) (Feature, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "captions", "":
		return FeatureCaptions, nil
	case "translation":
		return FeatureTranslation, nil
	default:
		return FeatureCaptions, fmt.Errorf("feature must be \"captions\" or \"translation\", got %q", s)
	}
}

func (f Feature) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Feature) UnmarshalText(text []byte) error {
	parsed, err := ParseFeature(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Utterance is one sealed clip of speech. Audio is owned by the utterance
// once sealed and must not be modified.
type Utterance struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Audio     []byte
	MimeType  string
	Forced    bool // Sealed by the max-duration ceiling rather than an end signal.
}

// TranscriptionResult is the text produced by the first provider that succeeded.
type TranscriptionResult struct {
	OriginalText string
	ProviderID   string
}

// TranslationRequest is the input of the correction and translation stage.
// An empty SourceLang asks the provider to detect the language.
type TranslationRequest struct {
	OriginalText string `json:"originalText"`
	TargetLang   string `json:"targetLang"`
	SourceLang   string `json:"sourceLang,omitempty"`
}

type TranslationResult struct {
	CorrectedText  string `json:"corrected"`
	TranslatedText string `json:"translated"`
}

// Caption is one finished line of speech as shown to every participant.
type Caption struct {
	ID             string    `json:"id"`
	SpeakerID      string    `json:"speakerId"`
	SpeakerName    string    `json:"speakerName,omitempty"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	TargetLang     string    `json:"targetLang"`
	Timestamp      time.Time `json:"timestamp"`
}
