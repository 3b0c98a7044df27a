package agent

import (
	"context"
	"log/slog"
	"strings"

	"leasebot/internal/domain"
)

const polishInstruction = `You are a helpful rental assistant replying over WhatsApp.
Rewrite the draft answer so it is friendly, concise and easy to read on a phone.
Keep every fact and every cited section exactly as given. Do not add new claims.
Return only the rewritten answer.`

// Synthesizer turns a raw document-engine answer into a conversational
// reply. It is best-effort: any oracle failure returns the draft as-is.
type Synthesizer struct {
	oracle domain.Oracle
	logger *slog.Logger
}

func NewSynthesizer(oracle domain.Oracle, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{oracle: oracle, logger: logger}
}

func (s *Synthesizer) Polish(ctx context.Context, draft string) string {
	if s.oracle == nil || strings.TrimSpace(draft) == "" {
		return draft
	}
	out, err := s.oracle.Complete(ctx, polishInstruction, draft)
	if err != nil {
		s.logger.Warn("polish failed, sending draft", "err", err)
		return draft
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return draft
	}
	return out
}
