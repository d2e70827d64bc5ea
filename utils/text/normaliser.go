package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type INormalizer interface {
	Normalize(text string) string
}

// Normalizer cleans raw transcripts before they are corrected and shown.
type Normalizer struct {
	fillerMap map[string]struct{}
}

type Language string

const (
	ENGLISH    Language = "en"
	SPANISH    Language = "es"
	FRENCH     Language = "fr"
	GERMAN     Language = "de"
	RUSSIAN    Language = "ru"
	PORTUGUESE Language = "pt"
	HINDI      Language = "hi"
)

// Fillers are tokens that carry no content on their own. A transcript made
// only of these is dropped.
var Fillers = map[Language][]string{
	ENGLISH: {
		"uh", "um", "ah", "er", "oh", "hm", "hmm", "hmmm", "huh", "eh", "mhm", "uh-huh", "mm", "mmm",
	},
	SPANISH: {
		"eh", "em", "este", "pues", "mmm", "ah", "oh",
	},
	FRENCH: {
		"euh", "heu", "bah", "ben", "hum", "ah", "oh",
	},
	GERMAN: {
		"äh", "ähm", "öh", "hm", "hmm", "na", "ah", "oh",
	},
	RUSSIAN: {
		"э", "эм", "ээ", "ну", "хм", "ах", "ох", "мм",
	},
	PORTUGUESE: {
		"é", "hã", "hum", "ah", "oh", "tipo",
	},
	HINDI: {
		"अं", "हम्म", "अच्छा", "आ",
	},
}

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	tokenTrim  = regexp.MustCompile(`^[\p{P}\p{S}]+|[\p{P}\p{S}]+$`)
	bracketTag = regexp.MustCompile(`[\[(](?i:music|noise|silence|inaudible|laughter|applause|blank_audio)[\])]`)
)

// NewNormalizer builds a normalizer for language. Unknown or empty languages
// fall back to the union of every filler list, since the source language is
// often auto-detected.
func NewNormalizer(language Language) *Normalizer {
	n := &Normalizer{
		fillerMap: make(map[string]struct{}),
	}

	if words, exists := Fillers[language]; exists {
		for _, w := range words {
			n.fillerMap[w] = struct{}{}
		}
		return n
	}
	for _, words := range Fillers {
		for _, w := range words {
			n.fillerMap[w] = struct{}{}
		}
	}
	return n
}

// Normalize trims the transcript, collapses whitespace, removes bracketed
// non-speech tags and capitalizes the first letter. A transcript holding only
// fillers normalizes to "".
func (n *Normalizer) Normalize(input string) string {
	input = bracketTag.ReplaceAllString(input, " ")
	input = strings.TrimSpace(spaceRun.ReplaceAllString(input, " "))
	if input == "" || n.FillerOnly(input) {
		return ""
	}

	r, size := utf8.DecodeRuneInString(input)
	if unicode.IsLower(r) {
		input = string(unicode.ToUpper(r)) + input[size:]
	}
	return input
}

// FillerOnly reports whether every token of input is a filler or punctuation.
func (n *Normalizer) FillerOnly(input string) bool {
	for _, w := range strings.Fields(strings.ToLower(input)) {
		w = tokenTrim.ReplaceAllString(w, "")
		if w == "" {
			continue
		}
		if _, isFiller := n.fillerMap[w]; !isFiller {
			return false
		}
	}
	return true
}
