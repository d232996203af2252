package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
	"github.com/kailas-cloud/ragdex/internal/domain/search/filter"
)

// VectorSearcher is the ANN branch contract.
type VectorSearcher interface {
	SearchKNN(ctx context.Context, vec []float32, filters filter.Expression, topK int) ([]candidate.Candidate, error)
}

// KeywordSearcher is the in-process BM25 branch contract.
type KeywordSearcher interface {
	Search(query string, topN int, expr *filter.Expression) []candidate.Candidate
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Request describes one hybrid retrieval.
type Request struct {
	Query string
	// SelectedText is an optional caller-highlighted passage; when present
	// it runs as an auxiliary ranking branch so related content surfaces.
	SelectedText string
	Filters      filter.Expression
	// TopK overrides the configured result count when positive, capped at
	// MaxTopK.
	TopK int
}
