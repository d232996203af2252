package metrics

import "github.com/prometheus/client_golang/prometheus"

// RAG pipeline Prometheus metrics.
var (
	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "ingest_documents_total",
			Help:      "Documents processed during ingestion",
		},
		[]string{"status"}, // "ok" / "skipped"
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "ingest_chunks_total",
			Help:      "Chunks produced and stored during ingestion",
		},
	)

	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "retrieval_requests_total",
			Help:      "Hybrid retrieval requests by outcome",
		},
		[]string{"outcome"}, // "hit" / "miss" / "error"
	)

	RetrievalBranchCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "retrieval_branch_candidates",
			Help:      "Candidates returned per retrieval branch",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"branch"}, // "vector" / "keyword" / "selected"
	)

	RerankTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "rerank_total",
			Help:      "Rerank attempts by outcome",
		},
		[]string{"outcome"}, // "ok" / "passthrough"
	)

	GenerationStreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "generation_streams_total",
			Help:      "Generation streams by terminal event",
		},
		[]string{"terminal"}, // "done" / "error"
	)

	GenerationTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "generation_tokens_total",
			Help:      "Streamed completion tokens",
		},
	)

	GenerationCitationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "generation_citations_total",
			Help:      "Citation events emitted",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers RAG pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalBranchCandidates)
	prometheus.MustRegister(RerankTotal)
	prometheus.MustRegister(GenerationStreamsTotal)
	prometheus.MustRegister(GenerationTokensTotal)
	prometheus.MustRegister(GenerationCitationsTotal)
	pipelineMetricsRegistered = true
}
