package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
	"github.com/kailas-cloud/ragdex/internal/domain/search/filter"
)

type mockVectorSearcher struct {
	hits  []candidate.Candidate
	err   error
	calls int
	// byVec returns hits per query vector when set; the embedder mock
	// encodes which text produced the vector in its first element.
	byVec func(vec []float32) []candidate.Candidate
}

func (m *mockVectorSearcher) SearchKNN(
	_ context.Context, vec []float32, _ filter.Expression, _ int,
) ([]candidate.Candidate, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.byVec != nil {
		return m.byVec(vec), nil
	}
	return m.hits, nil
}

type mockKeywordSearcher struct {
	hits  []candidate.Candidate
	calls int
}

func (m *mockKeywordSearcher) Search(_ string, _ int, _ *filter.Expression) []candidate.Candidate {
	m.calls++
	return m.hits
}

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
	// perText assigns a distinct vector per input text.
	perText map[string][]float32
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if v, ok := m.perText[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}
