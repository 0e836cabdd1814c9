// Package indexing embeds extracted page text into the per-user
// vector collection.
package indexing

import (
	"regexp"

	"ingest_server/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

// urlPattern matches bare URLs, the first thing dropped when a page
// is over the token budget.
var urlPattern = regexp.MustCompile(`http\S+|www\S+`)

// =============================================================================
// Text Preprocessor
// =============================================================================

// Preprocessor bounds page text to the embedding model's token
// budget. Counting uses the cl100k_base encoding, the same the
// embedding endpoint bills by.
type Preprocessor struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
	log       *logger.Logger
}

// NewPreprocessor creates a preprocessor with the given token budget.
func NewPreprocessor(maxTokens int, log *logger.Logger) (*Preprocessor, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Preprocessor{
		enc:       enc,
		maxTokens: maxTokens,
		log:       log.WithComponent("preprocessor"),
	}, nil
}

// CountTokens returns the cl100k_base token count of text.
func (p *Preprocessor) CountTokens(text string) int {
	return len(p.enc.Encode(text, nil, nil))
}

// MaxTokens returns the configured budget.
func (p *Preprocessor) MaxTokens() int {
	return p.maxTokens
}

// Bound returns the text to embed and its token count. Text within
// budget passes through untouched. Over-budget text has its URLs
// stripped and is recounted; stripping never increases the count, and
// both counts are logged so oversized pages stay visible. The result
// is not guaranteed to be under budget.
func (p *Preprocessor) Bound(text string) (string, int) {
	count := p.CountTokens(text)
	if count <= p.maxTokens {
		return text, count
	}

	stripped := urlPattern.ReplaceAllString(text, "")
	strippedCount := p.CountTokens(stripped)
	p.log.Info("text over budget: %d tokens, %d after stripping URLs (budget %d)",
		count, strippedCount, p.maxTokens)
	return stripped, strippedCount
}
