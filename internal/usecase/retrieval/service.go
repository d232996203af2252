// Package retrieval fuses vector similarity, BM25 keyword search, and an
// optional selected-text branch into one ranked candidate list.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
	"github.com/kailas-cloud/ragdex/internal/domain/search/filter"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

const (
	DefaultTopK          = 8
	DefaultBranchN       = 20
	DefaultMinSimilarity = 0.25

	// MaxTopK bounds per-request result count overrides.
	MaxTopK = 50
)

// Config tunes hybrid retrieval.
type Config struct {
	TopK           int     `yaml:"top_k"`
	BranchN        int     `yaml:"branch_n"`
	MinSimilarity  float64 `yaml:"min_similarity"`
	FusionConstant int     `yaml:"fusion_constant"`
}

func (c Config) normalized() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.BranchN <= 0 {
		c.BranchN = DefaultBranchN
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = DefaultMinSimilarity
	}
	if c.FusionConstant <= 0 {
		c.FusionConstant = DefaultFusionConstant
	}
	return c
}

// Service executes hybrid retrieval over the shared chunk corpus.
type Service struct {
	cfg     Config
	vectors VectorSearcher
	keyword KeywordSearcher
	embed   Embedder
	logger  *zap.Logger
}

// New creates a retrieval service.
func New(cfg Config, vectors VectorSearcher, keyword KeywordSearcher, embed Embedder, logger *zap.Logger) *Service {
	return &Service{
		cfg:     cfg.normalized(),
		vectors: vectors,
		keyword: keyword,
		embed:   embed,
		logger:  logger,
	}
}

// Retrieve returns the fused top-K candidates for the request. Zero matches
// across all branches is a valid empty result, logged as a retrieval miss.
// A failing vector branch degrades to the remaining branches instead of
// failing the whole request.
func (s *Service) Retrieve(ctx context.Context, req Request) ([]candidate.Candidate, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}

	branches := make([][]candidate.Candidate, 0, 3)

	vectorHits := s.vectorBranch(ctx, req.Query, req.Filters, "vector")
	branches = append(branches, vectorHits)

	keywordHits := s.keyword.Search(req.Query, s.cfg.BranchN, &req.Filters)
	metrics.RetrievalBranchCandidates.WithLabelValues("keyword").Observe(float64(len(keywordHits)))
	branches = append(branches, keywordHits)

	if req.SelectedText != "" {
		selectedHits := s.vectorBranch(ctx, req.SelectedText, req.Filters, "selected")
		branches = append(branches, selectedHits)
	}

	fused := fuseRRF(branches, s.cfg.FusionConstant, s.topK(req))

	if len(fused) == 0 {
		metrics.RetrievalRequestsTotal.WithLabelValues("miss").Inc()
		s.logger.Info("Retrieval miss",
			zap.String("query", req.Query),
			zap.Bool("has_filter", !req.Filters.IsEmpty()),
		)
		return nil, nil
	}

	metrics.RetrievalRequestsTotal.WithLabelValues("hit").Inc()
	return fused, nil
}

// topK resolves the result count: a positive per-request override wins,
// capped at MaxTopK.
func (s *Service) topK(req Request) int {
	if req.TopK <= 0 {
		return s.cfg.TopK
	}
	return min(req.TopK, MaxTopK)
}

// vectorBranch embeds text and runs ANN search, dropping weak matches below
// the similarity floor. Branch failures are logged and yield an empty branch.
func (s *Service) vectorBranch(
	ctx context.Context, text string, filters filter.Expression, branch string,
) []candidate.Candidate {
	observe := func(n int) {
		metrics.RetrievalBranchCandidates.WithLabelValues(branch).Observe(float64(n))
	}

	embResult, err := s.embed.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("Vector branch degraded: query embedding failed",
			zap.String("branch", branch), zap.Error(err))
		observe(0)
		return nil
	}

	hits, err := s.vectors.SearchKNN(ctx, embResult.Embedding, filters, s.cfg.BranchN)
	if err != nil {
		s.logger.Warn("Vector branch degraded: search failed",
			zap.String("branch", branch), zap.Error(err))
		observe(0)
		return nil
	}

	kept := hits[:0]
	for _, hit := range hits {
		if hit.VectorScore() >= s.cfg.MinSimilarity {
			kept = append(kept, hit)
		}
	}

	observe(len(kept))
	return kept
}
