package domain

import "errors"

var (
	// ErrParse signals a document without any recoverable title or structure.
	ErrParse = errors.New("document parse failed")
	// ErrChunking signals a chunker invariant violation on valid input (logic bug).
	ErrChunking = errors.New("chunking invariant violated")
	// ErrEmbedding signals an embedding provider failure after retry exhaustion.
	ErrEmbedding = errors.New("embedding failed")
	// ErrGeneration signals an upstream generation failure mid-stream.
	ErrGeneration = errors.New("generation failed")

	// ErrRateLimited signals a rate limit hit on a remote provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrRerankerUnavailable signals that the reranking model cannot be reached.
	ErrRerankerUnavailable = errors.New("reranker unavailable")

	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)
