package ingest

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Parser turns one raw document into a structured section tree.
type Parser interface {
	Parse(source string, content []byte) (domain.Document, error)
}

// Chunker splits a parsed document into token-bounded chunks.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}

// ChunkStore persists chunks and their vectors for the vector branch.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// KeywordIndex mirrors stored chunks into the in-process BM25 index.
type KeywordIndex interface {
	Upsert(chunks ...domain.Chunk)
	DeleteBySource(source string) int
}

// RawDocument is one ingestion input: the source identifier plus raw bytes.
type RawDocument struct {
	Source  string
	Content []byte
}

// Report summarizes one ingestion run. Skipped documents failed parsing or
// embedding; the run itself never aborts because of them.
type Report struct {
	RunID     string
	Documents int
	Skipped   int
	Chunks    int
}
