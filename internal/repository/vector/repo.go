// Package vector persists chunks with their embeddings as Redis hashes
// and serves the ANN branch of hybrid retrieval via FT.SEARCH KNN.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
	"github.com/kailas-cloud/ragdex/internal/domain/search/filter"
)

var (
	chunkKeyPrefix = domain.KeyPrefix + "chunk:"
	indexName      = domain.KeyPrefix + "chunks:idx"
)

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo stores chunks and answers KNN queries over them.
type Repo struct {
	store store
}

// New creates a chunk repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the chunk FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("probe index %s: %w", indexName, err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(indexName).
		Prefix(chunkKeyPrefix).
		Tag("source").
		Tag("heading").
		Text("text").
		Numeric("chunk_index").
		VectorHNSW("vector", dim, db.DistanceCosine, 16, 200).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", indexName, err)
	}
	return nil
}

// UpsertChunks stores chunks with their embeddings in one pipelined write.
// vectors is parallel to chunks.
func (r *Repo) UpsertChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = db.HashSetItem{
			Key:    chunkKeyPrefix + chunk.ID,
			Fields: buildHashFields(chunk, vectors[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// DeleteBySource removes every stored chunk of the given source. Used for
// wholesale replacement on re-ingestion.
func (r *Repo) DeleteBySource(ctx context.Context, source string) (int, error) {
	keys, err := r.store.Scan(ctx, chunkKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	fields, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("load chunks: %w", err)
	}

	removed := 0
	for i, m := range fields {
		if m["source"] != source {
			continue
		}
		if err := r.store.Del(ctx, keys[i]); err != nil {
			return removed, fmt.Errorf("delete %s: %w", keys[i], err)
		}
		removed++
	}
	return removed, nil
}

// ListChunks loads the full chunk corpus, used to rebuild the in-process
// keyword index at startup.
func (r *Repo) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	keys, err := r.store.Scan(ctx, chunkKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	fields, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(fields))
	for i, m := range fields {
		if len(m) == 0 {
			continue
		}
		chunks = append(chunks, parseHashFields(strings.TrimPrefix(keys[i], chunkKeyPrefix), m))
	}
	return chunks, nil
}

var knnReturnFields = []string{
	"text", "source", "heading", "url",
	"chunk_index", "token_count", "overlap_tokens",
	"__vector_score",
}

// SearchKNN runs the vector branch: ANN over stored chunk embeddings with
// filter pre-filtering. Scores are cosine similarities in [0,1].
func (r *Repo) SearchKNN(
	ctx context.Context, vec []float32, filters filter.Expression, topK int,
) ([]candidate.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    indexName,
		Filters:      filters,
		Vector:       vec,
		K:            topK,
		ReturnFields: knnReturnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, chunkKeyPrefix)
		out = append(out, candidate.New(parseHashFields(id, entry.Fields), entry.Score, 0))
	}
	return out, nil
}
