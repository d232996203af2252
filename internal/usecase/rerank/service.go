package rerank

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Service reorders retrieval candidates with a listwise ranking model.
// The output is always a permutation of the input: the model may change the
// order but can never add or drop candidates. Any model failure degrades to
// a pass-through that preserves the incoming order.
type Service struct {
	model  OrderModel
	logger *zap.Logger
}

func New(model OrderModel, logger *zap.Logger) *Service {
	return &Service{model: model, logger: logger}
}

// Rerank returns the candidates reordered by the model's preference.
// Lists of fewer than two candidates are returned as-is without a model call.
func (s *Service) Rerank(ctx context.Context, query string, cands []candidate.Candidate) []candidate.Candidate {
	if len(cands) < 2 || s.model == nil {
		return cands
	}

	passages := make([]string, len(cands))
	for i, c := range cands {
		passages[i] = c.Chunk().Text
	}

	order, err := s.model.RankOrder(ctx, query, passages)
	if err != nil {
		s.logger.Warn("Rerank model unavailable, passing candidates through",
			zap.Error(err),
			zap.Int("candidates", len(cands)))
		metrics.RerankTotal.WithLabelValues("passthrough").Inc()
		return cands
	}

	metrics.RerankTotal.WithLabelValues("ok").Inc()
	return applyOrder(cands, order)
}

// applyOrder repairs the model's ordering into a strict permutation:
// out-of-range and duplicate indexes are dropped, indexes the model omitted
// are appended in their original order.
func applyOrder(cands []candidate.Candidate, order []int) []candidate.Candidate {
	seen := make(map[int]bool, len(cands))
	out := make([]candidate.Candidate, 0, len(cands))

	for _, idx := range order {
		if idx < 0 || idx >= len(cands) || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, cands[idx])
	}
	for i, c := range cands {
		if !seen[i] {
			out = append(out, c)
		}
	}
	return out
}
