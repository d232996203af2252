package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/index/bm25"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/parser"
	budgetrepo "github.com/kailas-cloud/ragdex/internal/repository/budget"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	vectorrepo "github.com/kailas-cloud/ragdex/internal/repository/vector"
	"github.com/kailas-cloud/ragdex/internal/tokenizer"
	anthropicTransport "github.com/kailas-cloud/ragdex/internal/transport/anthropic"
	chiTransport "github.com/kailas-cloud/ragdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/ragdex/internal/usecase/embedding"
	generateuc "github.com/kailas-cloud/ragdex/internal/usecase/generate"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	orchestratoruc "github.com/kailas-cloud/ragdex/internal/usecase/orchestrator"
	rerankuc "github.com/kailas-cloud/ragdex/internal/usecase/rerank"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	counter := tokenizer.NewCounter(tokenizer.DefaultEncoding, logger)

	// Single BudgetTracker shared across both embedders.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			"openai", budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, store, budgetChecker, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, store, budgetChecker, logger)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Vector repository and FT index
	vectorRepo := vectorrepo.New(store)
	if err := vectorRepo.EnsureIndex(ctx, cfg.Embedding.Dimensions); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	// In-process keyword index, rebuilt from stored chunks at startup
	keywordIndex := bm25.New(bm25.Config{K1: cfg.Retrieval.BM25K1, B: cfg.Retrieval.BM25B})
	stored, err := vectorRepo.ListChunks(ctx)
	if err != nil {
		logger.Fatal("Failed to load stored chunks", zap.Error(err))
	}
	keywordIndex.Upsert(stored...)
	logger.Info("Keyword index rebuilt", zap.Int("chunks", keywordIndex.Len()))

	// Ingestion pipeline
	ingestSvc := ingestuc.New(
		ingestuc.Config{Concurrency: cfg.Ingest.Concurrency},
		parser.New(),
		chunker.New(chunker.Config{
			MaxTokens:     cfg.Chunking.MaxTokens,
			MinTokens:     cfg.Chunking.MinTokens,
			OverlapTokens: cfg.Chunking.OverlapTokens,
		}, counter),
		newBatchEmbedder(docEmbedder),
		vectorRepo,
		keywordIndex,
		logger,
	)

	// Query pipeline
	retrievalSvc := retrievaluc.New(retrievaluc.Config{
		TopK:           cfg.Retrieval.TopK,
		BranchN:        cfg.Retrieval.BranchN,
		MinSimilarity:  cfg.Retrieval.MinSimilarity,
		FusionConstant: cfg.Retrieval.FusionConstant,
	}, vectorRepo, keywordIndex, queryEmbedder, logger)

	var rerankSvc *rerankuc.Service
	if cfg.Rerank.Enabled {
		ranker := openaiTransport.NewRanker(&openaiTransport.GeneratorConfig{
			APIKey:  cfg.Generation.APIKey,
			BaseURL: cfg.Generation.BaseURL,
			Model:   cfg.Rerank.Model,
			Logger:  logger,
		})
		rerankSvc = rerankuc.New(ranker, logger)
	}

	orchestratorSvc := orchestratoruc.New(orchestratoruc.Config{
		TotalTokens:   cfg.Prompt.TotalTokens,
		ContextTokens: cfg.Prompt.ContextTokens,
		HistoryTokens: cfg.Prompt.HistoryTokens,
		SystemPrompt:  cfg.Prompt.SystemPrompt,
	}, counter, logger)

	generateSvc := generateuc.New(buildGenerator(cfg.Generation, logger), logger)
	logger.Info("Generation provider ready",
		zap.String("provider", cfg.Generation.Provider),
		zap.String("model", cfg.Generation.Model),
	)

	pipeline := &answerPipeline{
		retrieval:    retrievalSvc,
		rerank:       rerankSvc,
		orchestrator: orchestratorSvc,
		generate:     generateSvc,
	}

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(docEmbedder))
	server := chiTransport.NewServer(ingestSvc, pipeline, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// answerPipeline chains retrieval, optional reranking, prompt assembly, and
// streaming generation for one query.
type answerPipeline struct {
	retrieval    *retrievaluc.Service
	rerank       *rerankuc.Service
	orchestrator *orchestratoruc.Service
	generate     *generateuc.Service
}

func (p *answerPipeline) Answer(r *http.Request, req chiTransport.QueryRequest) (<-chan domain.Event, error) {
	ctx := r.Context()

	rreq, err := chiTransport.RetrievalRequest(req)
	if err != nil {
		return nil, err
	}

	cands, err := p.retrieval.Retrieve(ctx, rreq)
	if err != nil {
		return nil, err
	}
	if p.rerank != nil {
		cands = p.rerank.Rerank(ctx, req.Query, cands)
	}

	prompt := p.orchestrator.BuildPrompt(orchestratoruc.Request{
		Query:        req.Query,
		SelectedText: req.SelectedText,
		History:      chiTransport.ParseHistory(req.History),
	}, cands)

	return p.generate.Stream(ctx, prompt), nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		BatchSize:  embCfg.BatchSize,
		Provider:   "openai",
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = embcache.New(base, store, embCfg.Model, metrics.EmbeddingCacheTotal, logger)

	// Instrumented (budget + metrics)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, "openai", embCfg.Model, budget, logger)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

func buildGenerator(genCfg config.GenerationConfig, logger *zap.Logger) generateuc.Generator {
	if genCfg.Provider == "anthropic" {
		return anthropicTransport.NewGenerator(&anthropicTransport.Config{
			APIKey:    genCfg.APIKey,
			Model:     genCfg.Model,
			MaxTokens: genCfg.MaxTokens,
			Logger:    logger,
		})
	}
	return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:    genCfg.APIKey,
		BaseURL:   genCfg.BaseURL,
		Model:     genCfg.Model,
		MaxTokens: genCfg.MaxTokens,
		Logger:    logger,
	})
}

// batchEmbedder adapts a decorated domain.Embedder to the batch contract,
// using native batching when the chain supports it.
type batchEmbedder struct {
	inner domain.Embedder
}

func newBatchEmbedder(inner domain.Embedder) *batchEmbedder {
	return &batchEmbedder{inner: inner}
}

func (b *batchEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := b.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, b.inner, texts)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
