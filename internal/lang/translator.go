package lang

import (
	"context"
	"fmt"
	"log/slog"

	"leasebot/internal/domain"
)

// Pivot is the common intermediate language all translation passes through.
const Pivot = "en"

// languageNames maps supported codes to the names used in translation
// instructions. A code outside this map is unsupported: translation
// passes the text through unchanged.
var languageNames = map[string]string{
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
	"pt": "Portuguese",
	"de": "German",
	"it": "Italian",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ar": "Arabic",
	"th": "Thai",
	"he": "Hebrew",
}

const (
	toPivotInstruction   = "You translate the user message accurately from %s to English. Maintain the professional tone and terminology. Reply with the translation only."
	fromPivotInstruction = "You translate the user message accurately to %s. Maintain the professional tone and terminology. Reply with the translation only."
)

// Translator converts text between a tenant language and the pivot via the
// text-generation oracle. Translation is best effort: unsupported languages
// and oracle failures return the original text unchanged.
type Translator struct {
	oracle domain.Oracle
	logger *slog.Logger
}

func NewTranslator(oracle domain.Oracle, logger *slog.Logger) *Translator {
	return &Translator{oracle: oracle, logger: logger}
}

// ToPivot translates text from the source language to English.
// Identity when the source already is the pivot.
func (t *Translator) ToPivot(ctx context.Context, text, sourceLang string) string {
	return t.translate(ctx, text, sourceLang, toPivotInstruction)
}

// FromPivot translates text from English to the target language.
// Identity when the target is the pivot.
func (t *Translator) FromPivot(ctx context.Context, text, targetLang string) string {
	return t.translate(ctx, text, targetLang, fromPivotInstruction)
}

func (t *Translator) translate(ctx context.Context, text, lang, instructionFmt string) string {
	if lang == Pivot || text == "" {
		return text
	}
	name, ok := languageNames[lang]
	if !ok {
		t.logger.Warn("unsupported translation language, passing through", "lang", lang)
		return text
	}

	out, err := t.oracle.Complete(ctx, fmt.Sprintf(instructionFmt, name), text)
	if err != nil {
		t.logger.Warn("translation failed, passing through", "lang", lang, "err", err)
		return text
	}
	return out
}
