// Package ragdex embeds the retrieval-augmented answering pipeline as a
// library: ingest markdown documents into Redis, retrieve over a hybrid
// vector/keyword index, and stream grounded, cited answers.
package ragdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
	"github.com/kailas-cloud/ragdex/internal/domain/search/filter"
	"github.com/kailas-cloud/ragdex/internal/index/bm25"
	"github.com/kailas-cloud/ragdex/internal/parser"
	vectorrepo "github.com/kailas-cloud/ragdex/internal/repository/vector"
	"github.com/kailas-cloud/ragdex/internal/tokenizer"
	generateuc "github.com/kailas-cloud/ragdex/internal/usecase/generate"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	orchestratoruc "github.com/kailas-cloud/ragdex/internal/usecase/orchestrator"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the ragdex SDK entry point.
type Client struct {
	store        db.Store
	ingest       *ingestuc.Service
	retrieval    *retrievaluc.Service
	orchestrator *orchestratoruc.Service
	generate     *generateuc.Service
}

// New creates a ragdex Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if len(cfg.addrs) == 0 {
		return nil, errors.New("ragdex: database address required (use WithRedis)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("ragdex: embedder required (use WithEmbedder)")
	}
	if cfg.dimensions <= 0 {
		return nil, errors.New("ragdex: embedder dimensions must be positive")
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("ragdex: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragdex: database not ready: %w", err)
	}

	client, err := wireClient(ctx, store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return client, nil
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	counter := tokenizer.NewCounter(tokenizer.DefaultEncoding, cfg.logger)

	vectorRepo := vectorrepo.New(store)
	if err := vectorRepo.EnsureIndex(ctx, cfg.dimensions); err != nil {
		return nil, fmt.Errorf("ragdex: ensure vector index: %w", err)
	}

	keywordIndex := bm25.New(bm25.Config{K1: cfg.bm25K1, B: cfg.bm25B})
	stored, err := vectorRepo.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("ragdex: load stored chunks: %w", err)
	}
	keywordIndex.Upsert(stored...)

	ingestSvc := ingestuc.New(
		ingestuc.Config{},
		parser.New(),
		chunker.New(chunker.Config{
			MaxTokens:     cfg.maxChunkTokens,
			MinTokens:     cfg.minChunkTokens,
			OverlapTokens: cfg.overlapChunkTokens,
		}, counter),
		asBatchEmbedder(cfg.embedder),
		vectorRepo,
		keywordIndex,
		cfg.logger,
	)

	retrievalSvc := retrievaluc.New(retrievaluc.Config{
		TopK:           cfg.topK,
		BranchN:        cfg.branchN,
		MinSimilarity:  cfg.minSimilarity,
		FusionConstant: cfg.fusionConstant,
	}, vectorRepo, keywordIndex, cfg.embedder, cfg.logger)

	client := &Client{
		store:        store,
		ingest:       ingestSvc,
		retrieval:    retrievalSvc,
		orchestrator: orchestratoruc.New(orchestratoruc.Config{}, counter, cfg.logger),
	}
	if cfg.generator != nil {
		client.generate = generateuc.New(cfg.generator, cfg.logger)
	}
	return client, nil
}

// Close releases the database connection.
func (c *Client) Close() {
	c.store.Close()
}

// Ingest parses, chunks, embeds, and stores the documents. Failed documents
// are skipped and reported; the run never aborts because of one.
func (c *Client) Ingest(ctx context.Context, docs []Document) (IngestReport, error) {
	raw := make([]ingestuc.RawDocument, 0, len(docs))
	for _, doc := range docs {
		raw = append(raw, ingestuc.RawDocument{Source: doc.Source, Content: doc.Content})
	}
	report, err := c.ingest.Ingest(ctx, raw)
	if err != nil {
		return IngestReport{}, fmt.Errorf("ragdex: ingest: %w", err)
	}
	return IngestReport{
		RunID:     report.RunID,
		Documents: report.Documents,
		Skipped:   report.Skipped,
		Chunks:    report.Chunks,
	}, nil
}

// Retrieve returns the top chunks for a query via hybrid search. An empty
// result is valid: it means nothing relevant is indexed.
func (c *Client) Retrieve(ctx context.Context, query string, opts ...QueryOption) ([]SearchResult, error) {
	q := buildQuery(query, opts)
	req, err := q.retrievalRequest()
	if err != nil {
		return nil, err
	}

	cands, err := c.retrieval.Retrieve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ragdex: retrieve: %w", err)
	}
	return toSearchResults(cands), nil
}

// Answer retrieves context for the query and streams a grounded answer.
// The returned channel carries token, citation, and exactly one terminal
// event; it closes when the stream ends or ctx is cancelled.
func (c *Client) Answer(ctx context.Context, query string, opts ...QueryOption) (<-chan Event, error) {
	if c.generate == nil {
		return nil, errors.New("ragdex: no generator configured (use WithGenerator)")
	}

	q := buildQuery(query, opts)
	req, err := q.retrievalRequest()
	if err != nil {
		return nil, err
	}

	cands, err := c.retrieval.Retrieve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ragdex: retrieve: %w", err)
	}

	prompt := c.orchestrator.BuildPrompt(orchestratoruc.Request{
		Query:        query,
		SelectedText: q.selectedText,
		History:      q.history,
	}, cands)

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		for ev := range c.generate.Stream(ctx, prompt) {
			select {
			case events <- toEvent(ev):
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// query collects per-call options.
type query struct {
	text         string
	selectedText string
	history      []domain.Turn
	must         []filter.Condition
	mustNot      []filter.Condition
}

// QueryOption refines one Retrieve or Answer call.
type QueryOption func(*query)

// WithSelectedText pins a caller-highlighted passage into the prompt and
// biases retrieval toward related content.
func WithSelectedText(text string) QueryOption {
	return func(q *query) { q.selectedText = text }
}

// WithHistory supplies recent conversation turns, oldest first.
func WithHistory(turns []Turn) QueryOption {
	return func(q *query) {
		for _, t := range turns {
			q.history = append(q.history, domain.Turn{Role: domain.Role(t.Role), Text: t.Text})
		}
	}
}

// WithFilter restricts retrieval to chunks whose metadata key equals value.
func WithFilter(key, value string) QueryOption {
	return func(q *query) {
		cond, err := filter.NewMatch(key, value)
		if err == nil {
			q.must = append(q.must, cond)
		}
	}
}

// WithExcludeFilter excludes chunks whose metadata key equals value.
func WithExcludeFilter(key, value string) QueryOption {
	return func(q *query) {
		cond, err := filter.NewMatch(key, value)
		if err == nil {
			q.mustNot = append(q.mustNot, cond)
		}
	}
}

func buildQuery(text string, opts []QueryOption) *query {
	q := &query{text: text}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *query) retrievalRequest() (retrievaluc.Request, error) {
	filters, err := filter.NewExpression(q.must, q.mustNot)
	if err != nil {
		return retrievaluc.Request{}, fmt.Errorf("ragdex: build filter: %w", err)
	}
	return retrievaluc.Request{
		Query:        q.text,
		SelectedText: q.selectedText,
		Filters:      filters,
	}, nil
}

func toSearchResults(cands []candidate.Candidate) []SearchResult {
	out := make([]SearchResult, 0, len(cands))
	for i := range cands {
		chunk := cands[i].Chunk()
		out = append(out, SearchResult{
			ChunkID: chunk.ID,
			Source:  chunk.Source,
			Text:    chunk.Text,
			Heading: chunk.Breadcrumb(),
			URL:     chunk.URL,
			Score:   cands[i].FusedScore(),
		})
	}
	return out
}

// asBatchEmbedder upgrades the embedder to the batch contract, falling back
// to per-text calls for providers without native batching.
func asBatchEmbedder(e domain.Embedder) domain.BatchEmbedder {
	if be, ok := e.(domain.BatchEmbedder); ok {
		return be
	}
	return fallbackBatcher{inner: e}
}

type fallbackBatcher struct {
	inner domain.Embedder
}

func (f fallbackBatcher) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, f.inner, texts)
}
