package orchestrator

import "github.com/kailas-cloud/ragdex/internal/domain"

// Request carries everything a generation prompt is assembled from. History
// comes from the caller-owned conversation store and is never persisted here.
type Request struct {
	Query        string
	SelectedText string
	History      []domain.Turn
}

// Config bounds the token budget of an assembled prompt. The total is split
// across system instructions, retrieved context, conversation history, and
// the query itself; context and history each get an explicit sub-budget and
// the rest is left to the fixed segments.
type Config struct {
	TotalTokens   int
	ContextTokens int
	HistoryTokens int
	// SystemPrompt overrides the built-in instruction text when set.
	SystemPrompt string
}

const (
	// DefaultTotalTokens caps the whole assembled prompt.
	DefaultTotalTokens = 8000
	// DefaultContextTokens caps the retrieved-chunk block.
	DefaultContextTokens = 4000
	// DefaultHistoryTokens caps prior conversation turns.
	DefaultHistoryTokens = 2000
)

func (c Config) normalized() Config {
	if c.TotalTokens <= 0 {
		c.TotalTokens = DefaultTotalTokens
	}
	if c.ContextTokens <= 0 {
		c.ContextTokens = DefaultContextTokens
	}
	if c.HistoryTokens <= 0 {
		c.HistoryTokens = DefaultHistoryTokens
	}
	if c.ContextTokens+c.HistoryTokens > c.TotalTokens {
		// Leave at least a quarter of the total for instructions and query.
		c.ContextTokens = c.TotalTokens / 2
		c.HistoryTokens = c.TotalTokens / 4
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	return c
}
