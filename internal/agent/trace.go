package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Digest returns a short content fingerprint so message bodies can be
// correlated in logs without recording tenant text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:6])
}

// StageRecord is one completed pipeline stage.
type StageRecord struct {
	Stage   string
	Detail  string
	Elapsed time.Duration
}

// Trace follows a single message through the pipeline. Each stage is
// timestamped relative to the previous one.
type Trace struct {
	ID     string
	Sender string
	Stages []StageRecord

	start time.Time
	last  time.Time
}

func NewTrace(senderID string) *Trace {
	now := time.Now()
	return &Trace{
		ID:     uuid.NewString(),
		Sender: senderID,
		start:  now,
		last:   now,
	}
}

// Record closes the current stage with an optional detail string and
// returns the completed record.
func (t *Trace) Record(stage, detail string) StageRecord {
	now := time.Now()
	rec := StageRecord{
		Stage:   stage,
		Detail:  detail,
		Elapsed: now.Sub(t.last),
	}
	t.Stages = append(t.Stages, rec)
	t.last = now
	return rec
}

// Total is the elapsed time since the trace began.
func (t *Trace) Total() time.Duration {
	return t.last.Sub(t.start)
}

// Attrs renders the trace for structured logging.
func (t *Trace) Attrs() []any {
	attrs := []any{
		slog.String("trace", t.ID),
		slog.Duration("total", t.Total()),
	}
	for _, s := range t.Stages {
		attrs = append(attrs, slog.Group(s.Stage,
			slog.String("detail", s.Detail),
			slog.Duration("elapsed", s.Elapsed),
		))
	}
	return attrs
}
