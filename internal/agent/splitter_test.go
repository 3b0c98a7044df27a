package agent

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessage_ShortTextUntouched(t *testing.T) {
	parts := SplitMessage("hello", 1500)
	if len(parts) != 1 || parts[0] != "hello" {
		t.Fatalf("short text must pass through verbatim, got %v", parts)
	}
	if strings.Contains(parts[0], "Part") {
		t.Fatal("single-part replies must not carry a part prefix")
	}
}

func TestSplitMessage_PacksParagraphs(t *testing.T) {
	para := strings.Repeat("a", 600)
	text := para + "\n\n" + para + "\n\n" + para

	parts := SplitMessage(text, 1500)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if !strings.HasPrefix(parts[0], "Part 1/2:\n") || !strings.HasPrefix(parts[1], "Part 2/2:\n") {
		t.Fatalf("missing part prefixes: %q %q", parts[0][:20], parts[1][:20])
	}
	// First part holds two paragraphs, second holds the third.
	if !strings.Contains(parts[0], para+"\n\n"+para) {
		t.Fatal("first part should pack two paragraphs")
	}
}

func TestSplitMessage_ReassemblesLossless(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "paragraph %d: %s\n\n", i, strings.Repeat("x", 200))
	}
	text := strings.TrimSuffix(sb.String(), "\n\n")

	parts := SplitMessage(text, 500)
	if len(parts) < 2 {
		t.Fatalf("expected multiple parts, got %d", len(parts))
	}

	var joined []string
	for i, p := range parts {
		prefix := fmt.Sprintf("Part %d/%d:\n", i+1, len(parts))
		if !strings.HasPrefix(p, prefix) {
			t.Fatalf("part %d missing prefix %q", i, prefix)
		}
		joined = append(joined, strings.TrimPrefix(p, prefix))
	}
	if got := strings.Join(joined, "\n\n"); got != text {
		t.Fatal("concatenating stripped parts must reproduce the original text")
	}
}

func TestSplitMessage_HardSplitsOversizedParagraph(t *testing.T) {
	text := strings.Repeat("é", 3200) // multibyte on purpose

	parts := SplitMessage(text, 1500)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	for i, p := range parts {
		body := strings.TrimPrefix(p, fmt.Sprintf("Part %d/%d:\n", i+1, len(parts)))
		if n := utf8.RuneCountInString(body); n > 1500 {
			t.Fatalf("part %d body has %d runes", i, n)
		}
		if !utf8.ValidString(body) {
			t.Fatalf("part %d split inside a rune", i)
		}
	}
}

func TestSplitMessage_ExactLimitBoundary(t *testing.T) {
	text := strings.Repeat("a", 1500)
	parts := SplitMessage(text, 1500)
	if len(parts) != 1 {
		t.Fatalf("text at exactly the limit must not split, got %d parts", len(parts))
	}
}
