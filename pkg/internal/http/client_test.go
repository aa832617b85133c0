package http

import (
	"strings"
	"testing"
)

func TestReadBodySnippet_TruncatesLongBody(t *testing.T) {
	t.Parallel()

	body := strings.NewReader(strings.Repeat("x", 100))
	got := ReadBodySnippet(body, 10)
	if len(got) != 10 {
		t.Fatalf("expected 10 bytes, got %d", len(got))
	}
}

func TestReadBodySnippet_ShortBodyUnaffected(t *testing.T) {
	t.Parallel()

	body := strings.NewReader("short")
	got := ReadBodySnippet(body, 100)
	if got != "short" {
		t.Fatalf("expected %q, got %q", "short", got)
	}
}
