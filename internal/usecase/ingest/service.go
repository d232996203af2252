package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// DefaultConcurrency bounds parallel document processing.
const DefaultConcurrency = 4

type Config struct {
	Concurrency int
}

func (c Config) normalized() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Service runs the ingestion pipeline: parse, chunk, embed, store. Documents
// are processed with bounded concurrency and fail independently; a document
// that cannot be parsed or embedded is logged and skipped, never aborting the
// run. Re-ingesting a source replaces its chunks wholesale.
type Service struct {
	cfg      Config
	parser   Parser
	chunker  Chunker
	embedder domain.BatchEmbedder
	store    ChunkStore
	keyword  KeywordIndex
	logger   *zap.Logger
}

func New(
	cfg Config,
	parser Parser,
	chunker Chunker,
	embedder domain.BatchEmbedder,
	store ChunkStore,
	keyword KeywordIndex,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:      cfg.normalized(),
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		keyword:  keyword,
		logger:   logger,
	}
}

// Ingest processes the documents and returns the run report. The returned
// error is non-nil only when the context is cancelled; per-document failures
// are counted in Report.Skipped.
func (s *Service) Ingest(ctx context.Context, docs []RawDocument) (Report, error) {
	var (
		mu     sync.Mutex
		report Report
		wg     sync.WaitGroup
	)
	report.RunID = uuid.NewString()
	logger := s.logger.With(zap.String("run_id", report.RunID))
	sem := make(chan struct{}, s.cfg.Concurrency)

	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(doc RawDocument) {
			defer wg.Done()
			defer func() { <-sem }()

			chunks, err := s.ingestOne(ctx, doc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Skipped++
				metrics.IngestDocumentsTotal.WithLabelValues("skipped").Inc()
				logger.Warn("Document skipped",
					zap.String("source", doc.Source),
					zap.Error(err))
				return
			}
			report.Documents++
			report.Chunks += chunks
			metrics.IngestDocumentsTotal.WithLabelValues("ok").Inc()
			metrics.IngestChunksTotal.Add(float64(chunks))
		}(doc)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	logger.Info("Ingestion run finished",
		zap.Int("documents", report.Documents),
		zap.Int("skipped", report.Skipped),
		zap.Int("chunks", report.Chunks))
	return report, nil
}

// ingestOne runs the full pipeline for a single document and returns the
// number of chunks stored.
func (s *Service) ingestOne(ctx context.Context, raw RawDocument) (int, error) {
	doc, err := s.parser.Parse(raw.Source, raw.Content)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		if errors.Is(err, domain.ErrChunking) {
			// Chunking only fails on a logic bug, not on bad input.
			s.logger.Error("Chunking invariant violated",
				zap.String("source", raw.Source),
				zap.Error(err))
		}
		return 0, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(res.Embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d vs %d", len(res.Embeddings), len(chunks))
	}

	// Replace the source wholesale so stale chunks never linger.
	if _, err := s.store.DeleteBySource(ctx, raw.Source); err != nil {
		return 0, fmt.Errorf("delete stale chunks: %w", err)
	}
	if err := s.store.UpsertChunks(ctx, chunks, res.Embeddings); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	s.keyword.DeleteBySource(raw.Source)
	s.keyword.Upsert(chunks...)

	s.logger.Debug("Document ingested",
		zap.String("source", raw.Source),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedding_tokens", res.TotalTokens))
	return len(chunks), nil
}
