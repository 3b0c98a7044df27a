package agent

import (
	"fmt"
	"strings"
)

// DefaultSegmentLimit is the largest body a single WhatsApp message may
// carry before we split the reply.
const DefaultSegmentLimit = 1500

// SplitMessage breaks a long reply into segments no longer than limit
// runes each. Paragraphs (separated by blank lines) are packed greedily;
// a paragraph longer than the limit is hard-split at the rune boundary.
// When more than one segment results, each is prefixed "Part i/N:" so
// out-of-order delivery stays readable.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSegmentLimit
	}
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			parts = append(parts, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		runes := []rune(para)

		if len(runes) > limit {
			flush()
			for len(runes) > limit {
				parts = append(parts, string(runes[:limit]))
				runes = runes[limit:]
			}
			if len(runes) > 0 {
				current.WriteString(string(runes))
				currentLen = len(runes)
			}
			continue
		}

		// +2 accounts for the blank-line separator.
		if currentLen > 0 && currentLen+2+len(runes) > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += len(runes)
	}
	flush()

	if len(parts) <= 1 {
		return parts
	}
	for i, p := range parts {
		parts[i] = fmt.Sprintf("Part %d/%d:\n%s", i+1, len(parts), p)
	}
	return parts
}
