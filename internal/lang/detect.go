// Package lang identifies the language of inbound messages and translates
// between the detected language and the English pivot.
package lang

import (
	"strings"
	"unicode"
)

// DefaultLanguage is returned whenever detection cannot decide.
const DefaultLanguage = "en"

// latinCodes fixes the scoring order so detection is deterministic.
var latinCodes = []string{"es", "fr", "pt", "de", "it"}

// stopwords score Latin-script languages that a script scan cannot separate.
var stopwords = map[string][]string{
	"es": {"el", "la", "los", "las", "es", "está", "que", "de", "en", "mi", "una", "por", "con", "cuál", "qué", "política"},
	"fr": {"le", "la", "les", "est", "que", "de", "dans", "je", "une", "pour", "avec", "quelle", "quoi", "mon", "ne", "pas"},
	"pt": {"o", "os", "as", "é", "está", "em", "uma", "para", "com", "não", "meu", "minha", "qual", "você"},
	"de": {"der", "die", "das", "ist", "und", "ich", "nicht", "ein", "eine", "für", "mit", "was", "mein", "wie"},
	"it": {"il", "lo", "gli", "è", "che", "di", "una", "per", "con", "non", "mio", "qual", "cosa", "sono"},
}

// Detect returns an ISO-639-1-like code for the text's language. Detection
// is advisory: degenerate input (empty, emoji-only, numeric) and anything
// undecidable comes back as the English default, never an error.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultLanguage
	}

	// Non-Latin scripts identify the language directly.
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hangul, r):
			return "ko"
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			return "ja"
		case unicode.Is(unicode.Han, r):
			return "zh"
		case unicode.Is(unicode.Devanagari, r):
			return "hi"
		case unicode.Is(unicode.Cyrillic, r):
			return "ru"
		case unicode.Is(unicode.Arabic, r):
			return "ar"
		case unicode.Is(unicode.Thai, r):
			return "th"
		case unicode.Is(unicode.Hebrew, r):
			return "he"
		}
	}

	return detectLatin(text)
}

// detectLatin scores stopword hits per language; ties and no-hits fall
// back to the default.
func detectLatin(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return DefaultLanguage
	}

	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[strings.Trim(w, ".,;:!?¿¡\"'()")] = true
	}

	best := DefaultLanguage
	bestScore := 0
	tied := false
	for _, code := range latinCodes {
		score := 0
		for _, m := range stopwords[code] {
			if present[m] {
				score++
			}
		}
		switch {
		case score > bestScore:
			bestScore = score
			best = code
			tied = false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	// A single stopword hit is too weak a signal for short messages,
	// and a tie means the markers could not separate two languages.
	if bestScore < 2 || tied {
		return DefaultLanguage
	}
	return best
}
