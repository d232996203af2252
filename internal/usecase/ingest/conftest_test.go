package ingest

import (
	"context"
	"sync"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

type mockParser struct {
	failSources map[string]bool
}

func (m *mockParser) Parse(source string, content []byte) (domain.Document, error) {
	if m.failSources[source] {
		return domain.Document{}, domain.ErrParse
	}
	return domain.Document{
		Source: source,
		Title:  "Doc " + source,
		Sections: []domain.Section{{
			HeadingPath: []string{"Doc " + source},
			Anchor:      "doc",
			Body:        []domain.Block{{Kind: domain.BlockProse, Text: string(content)}},
		}},
	}, nil
}

type mockChunker struct {
	perDoc int
	err    error
}

func (m *mockChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	chunks := make([]domain.Chunk, m.perDoc)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:     doc.Source + "-" + string(rune('0'+i)),
			Source: doc.Source,
			Text:   "chunk of " + doc.Source,
		}
	}
	return chunks, nil
}

type mockBatchEmbedder struct {
	mu          sync.Mutex
	calls       int
	failSources map[string]bool
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	for source := range m.failSources {
		for _, text := range texts {
			if text == "chunk of "+source {
				return domain.BatchEmbeddingResult{}, domain.ErrEmbedding
			}
		}
	}
	embeddings := make([][]float32, len(texts))
	for i := range embeddings {
		embeddings[i] = []float32{0.1, 0.2}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts) * 10}, nil
}

type mockChunkStore struct {
	mu       sync.Mutex
	upserted map[string][]domain.Chunk // by source
	deleted  []string
}

func newMockChunkStore() *mockChunkStore {
	return &mockChunkStore{upserted: make(map[string][]domain.Chunk)}
}

func (m *mockChunkStore) UpsertChunks(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		m.upserted[chunk.Source] = append(m.upserted[chunk.Source], chunk)
	}
	return nil
}

func (m *mockChunkStore) DeleteBySource(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := len(m.upserted[source])
	delete(m.upserted, source)
	m.deleted = append(m.deleted, source)
	return removed, nil
}

type mockKeywordIndex struct {
	mu       sync.Mutex
	upserted []domain.Chunk
	deleted  []string
}

func (m *mockKeywordIndex) Upsert(chunks ...domain.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, chunks...)
}

func (m *mockKeywordIndex) DeleteBySource(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, source)
	return 0
}
