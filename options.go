package ragdex

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	generateuc "github.com/kailas-cloud/ragdex/internal/usecase/generate"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	embedder   domain.Embedder
	dimensions int

	maxChunkTokens     int
	minChunkTokens     int
	overlapChunkTokens int

	topK           int
	branchN        int
	minSimilarity  float64
	fusionConstant int
	bm25K1         float64
	bm25B          float64

	generator generateuc.Generator

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder supplies the embedding provider. Required. dimensions must
// match the vectors the provider returns.
func WithEmbedder(embedder domain.Embedder, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = embedder
		c.dimensions = dimensions
	})
}

// WithChunking overrides the chunk token bounds.
func WithChunking(maxTokens, minTokens, overlapTokens int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxChunkTokens = maxTokens
		c.minChunkTokens = minTokens
		c.overlapChunkTokens = overlapTokens
	})
}

// WithRetrieval overrides hybrid search parameters.
func WithRetrieval(topK, branchN int, minSimilarity float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = topK
		c.branchN = branchN
		c.minSimilarity = minSimilarity
	})
}

// WithFusionConstant overrides the reciprocal rank fusion constant.
func WithFusionConstant(constant int) Option {
	return optionFunc(func(c *clientConfig) {
		c.fusionConstant = constant
	})
}

// WithBM25 overrides keyword scoring parameters.
func WithBM25(k1, b float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.bm25K1 = k1
		c.bm25B = b
	})
}

// WithGenerator supplies the streaming generation provider. Without one the
// client can ingest and retrieve but Answer returns an error.
func WithGenerator(generator generateuc.Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = generator
	})
}

// WithLogger supplies a logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}
