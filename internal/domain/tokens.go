package domain

// TokenCounter measures text length in model tokens. Implementations must be
// safe for concurrent use; chunking and prompt budgeting both depend on one.
type TokenCounter interface {
	Count(text string) int
}
