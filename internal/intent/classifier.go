// Package intent classifies inbound tenant messages into the pipeline's
// routing intents and extracts structured maintenance data.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"leasebot/internal/domain"
)

const classifyInstruction = `You are an intent classifier for a rental-assistant service.
Classify the tenant message and return a single JSON object, nothing else:
{
  "intent": one of "question" (a question about the rental agreement),
            "maintenance" (something is broken or needs repair),
            "status_check" (asking about an existing maintenance ticket),
            "other",
  "confidence": a number between 0 and 1,
  "ticket_data": only when intent is "maintenance", an object with
    "description", "location", "symptoms",
    "category" (plumbing|electrical|hvac|appliance|structural|pest|locksmith|cleaning|other),
    "priority" (low|normal|high|emergency),
    "apartment_number", "access_instructions"
}
The message may be in any language. Respond with the JSON object only.`

// jsonRe extracts the outermost JSON object from a completion that may be
// wrapped in prose or code fences.
var jsonRe = regexp.MustCompile(`(?s)\{.*\}`)

// fallbackResult is the fail-closed classification: treat the message as a
// lease question with middling confidence so the router always has a branch.
func fallbackResult() domain.IntentResult {
	return domain.IntentResult{Intent: domain.IntentQuestion, Confidence: 0.5}
}

// Classifier delegates to the text-generation oracle and never fails:
// malformed oracle output degrades to the question intent.
type Classifier struct {
	oracle domain.Oracle
	logger *slog.Logger
}

func NewClassifier(oracle domain.Oracle, logger *slog.Logger) *Classifier {
	return &Classifier{oracle: oracle, logger: logger}
}

// rawResult mirrors the JSON shape requested from the oracle. Category and
// priority arrive as free strings and are coerced afterwards.
type rawResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	TicketData *struct {
		Description        string `json:"description"`
		Location           string `json:"location"`
		Symptoms           string `json:"symptoms"`
		Category           string `json:"category"`
		Priority           string `json:"priority"`
		ApartmentNumber    string `json:"apartment_number"`
		AccessInstructions string `json:"access_instructions"`
	} `json:"ticket_data"`
}

// Classify produces exactly one IntentResult for the message. TicketData is
// non-nil if and only if the intent is maintenance.
func (c *Classifier) Classify(ctx context.Context, text string) domain.IntentResult {
	out, err := c.oracle.Complete(ctx, classifyInstruction, text)
	if err != nil {
		c.logger.Warn("classification oracle failed, falling back to question", "err", err)
		return fallbackResult()
	}

	raw, ok := parseResponse(out)
	if !ok {
		c.logger.Warn("malformed classification output, falling back to question",
			"output_len", len(out))
		return fallbackResult()
	}

	result := domain.IntentResult{
		Intent:     normalizeIntent(raw.Intent),
		Confidence: clampConfidence(raw.Confidence),
	}

	if result.Intent == domain.IntentMaintenance {
		result.TicketData = buildTicketData(raw, text)
	}
	return result
}

// parseResponse leniently extracts and unmarshals the JSON object from the
// oracle output. Returns false when nothing usable can be recovered.
func parseResponse(out string) (rawResult, bool) {
	var raw rawResult

	cleaned := strings.TrimSpace(out)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	match := jsonRe.FindString(cleaned)
	if match == "" {
		return raw, false
	}
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return raw, false
	}
	if raw.Intent == "" {
		return raw, false
	}
	return raw, true
}

func normalizeIntent(s string) domain.Intent {
	switch domain.Intent(strings.ToLower(strings.TrimSpace(s))) {
	case domain.IntentMaintenance:
		return domain.IntentMaintenance
	case domain.IntentStatusCheck:
		return domain.IntentStatusCheck
	case domain.IntentOther:
		return domain.IntentOther
	default:
		return domain.IntentQuestion
	}
}

func clampConfidence(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// buildTicketData normalizes the extraction: enum coercion plus a
// synthesized description that is never empty.
func buildTicketData(raw rawResult, original string) *domain.TicketData {
	data := &domain.TicketData{
		Category: domain.CategoryOther,
		Priority: domain.PriorityNormal,
	}
	if raw.TicketData != nil {
		data.Location = strings.TrimSpace(raw.TicketData.Location)
		data.Symptoms = strings.TrimSpace(raw.TicketData.Symptoms)
		data.Category = domain.ParseCategory(raw.TicketData.Category)
		data.Priority = domain.ParsePriority(raw.TicketData.Priority)
		data.ApartmentNumber = strings.TrimSpace(raw.TicketData.ApartmentNumber)
		data.AccessInstructions = strings.TrimSpace(raw.TicketData.AccessInstructions)
	}

	data.Description = synthesizeDescription(data.Location, data.Symptoms, original)
	return data
}

// synthesizeDescription labels the extracted fields on separate lines; when
// both are empty the original message stands in verbatim.
func synthesizeDescription(location, symptoms, original string) string {
	var lines []string
	if location != "" {
		lines = append(lines, "Location: "+location)
	}
	if symptoms != "" {
		lines = append(lines, "Reported Issue: "+symptoms)
	}
	if len(lines) == 0 {
		return original
	}
	return strings.Join(lines, "\n")
}
