package indexing

import (
	"io"
	"strings"
	"testing"

	"ingest_server/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelError, Output: io.Discard})
}

// newTestPreprocessor skips the test when the tokenizer's encoding
// data is unavailable in the environment.
func newTestPreprocessor(t *testing.T, maxTokens int) *Preprocessor {
	t.Helper()
	pre, err := NewPreprocessor(maxTokens, testLogger())
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}
	return pre
}

func TestBoundWithinBudgetPassesThrough(t *testing.T) {
	pre := newTestPreprocessor(t, 1000)

	text := "A short page about quarterly results. See http://example.com/report for details."
	prepared, count := pre.Bound(text)
	if prepared != text {
		t.Error("text within budget must pass through untouched, URLs included")
	}
	if count <= 0 || count > 1000 {
		t.Errorf("implausible token count %d", count)
	}
}

func TestBoundOverBudgetStripsURLs(t *testing.T) {
	pre := newTestPreprocessor(t, 10)

	text := strings.Repeat("visit http://example.com/very/long/path?q=1 and www.example.org/more ", 20)
	before := pre.CountTokens(text)

	prepared, after := pre.Bound(text)
	if strings.Contains(prepared, "http") || strings.Contains(prepared, "www.") {
		t.Error("URLs must be stripped from over-budget text")
	}
	if after > before {
		t.Errorf("stripping increased the count: %d -> %d", before, after)
	}
}

func TestBoundOverBudgetWithoutURLs(t *testing.T) {
	pre := newTestPreprocessor(t, 5)

	text := strings.Repeat("plain prose with no links at all ", 10)
	prepared, count := pre.Bound(text)
	if prepared != text {
		t.Error("text without URLs has nothing to strip and stays unchanged")
	}
	if count <= 5 {
		t.Errorf("bounding does not guarantee the budget, got %d", count)
	}
}
