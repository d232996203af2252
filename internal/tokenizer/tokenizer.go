// Package tokenizer counts model tokens for budgeting and chunk sizing.
package tokenizer

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// DefaultEncoding matches the tokenizer used by the supported embedding
// and chat models.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a BPE encoding. Safe for concurrent use.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, or DefaultEncoding when empty.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}

	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.enc.Encode(text, nil, nil))
}

// NewCounter returns a Tiktoken counter for the encoding, degrading to
// Approximate with a warning when the encoding cannot be loaded (the BPE
// ranks are fetched on first use, which fails offline).
func NewCounter(encoding string, logger *zap.Logger) domain.TokenCounter {
	counter, err := NewTiktoken(encoding)
	if err != nil {
		logger.Warn("Token encoding unavailable, using approximate counts", zap.Error(err))
		return Approximate{}
	}
	return counter
}

// Approximate estimates tokens as ceil(runes/4). Used when the BPE
// encoding cannot be loaded, and keeps counting monotonic in length.
type Approximate struct{}

func (Approximate) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}

	return (n + 3) / 4
}
