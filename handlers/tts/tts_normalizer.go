package tts

import (
	"regexp"
	"strings"
)

var (
	markdownMarks    = strings.NewReplacer("**", "", "__", "", "~~", "", "`", "", "*", "")
	removeEmojiRegex = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\p{M}]`)
	multipleSpaces   = regexp.MustCompile(`\s+`)
)

// normalizeTextForTTS strips characters a voice would read out literally.
func normalizeTextForTTS(text string) string {
	text = markdownMarks.Replace(text)
	text = removeEmojiRegex.ReplaceAllString(text, " ")
	text = multipleSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
