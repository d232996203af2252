// Package chi exposes the RAG pipeline over HTTP: ingestion, streaming
// question answering, health and metrics.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/filter"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// errorCode is the machine-readable error discriminator in responses.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeRateLimited       errorCode = "rate_limited"
	codeQuotaExceeded     errorCode = "embedding_quota_exceeded"
	codeEmbeddingProvider errorCode = "embedding_provider_error"
	codeInternal          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Answerer runs the query side of the pipeline: retrieve, rerank, assemble,
// stream. Implemented by the composition root so the HTTP layer stays thin.
type Answerer interface {
	Answer(r *http.Request, req QueryRequest) (<-chan domain.Event, error)
}

// Server routes HTTP requests into the pipeline services.
type Server struct {
	ingest        *ingestuc.Service
	answerer      Answerer
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(ingest *ingestuc.Service, answerer Answerer, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		ingest:   ingest,
		answerer: answerer,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

// Routes registers all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/ingest", s.handleIngest)
	r.Post("/v1/query", s.handleQuery)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// IngestRequest is the POST /v1/ingest payload.
type IngestRequest struct {
	Documents []IngestDocument `json:"documents"`
}

// IngestDocument is one raw document in an ingestion request.
type IngestDocument struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// IngestResponse reports the run outcome.
type IngestResponse struct {
	RunID     string `json:"run_id"`
	Documents int    `json:"documents"`
	Skipped   int    `json:"skipped"`
	Chunks    int    `json:"chunks"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "At least one document is required")
		return
	}

	docs := make([]ingestuc.RawDocument, 0, len(req.Documents))
	for _, doc := range req.Documents {
		if doc.Source == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "Document source is required")
			return
		}
		docs = append(docs, ingestuc.RawDocument{Source: doc.Source, Content: []byte(doc.Content)})
	}

	report, err := s.ingest.Ingest(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IngestResponse{
		RunID:     report.RunID,
		Documents: report.Documents,
		Skipped:   report.Skipped,
		Chunks:    report.Chunks,
	})
}

// QueryRequest is the POST /v1/query payload.
type QueryRequest struct {
	Query        string           `json:"query"`
	SelectedText string           `json:"selected_text,omitempty"`
	Filters      FilterExpression `json:"filters,omitempty"`
	History      []HistoryTurn    `json:"history,omitempty"`
	TopK         int              `json:"top_k,omitempty"`
}

// FilterExpression restricts retrieval to matching chunk metadata.
type FilterExpression struct {
	Must    []FilterCondition `json:"must,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
}

// FilterCondition is one exact-match metadata constraint.
type FilterCondition struct {
	Key   string `json:"key"`
	Match string `json:"match"`
}

// HistoryTurn is one prior conversation exchange.
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query is required")
		return
	}

	events, err := s.answerer.Answer(r, req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "Streaming is not supported")
		return
	}
	for ev := range events {
		if err := sse.WriteEvent(ev); err != nil {
			// Client went away; the context cancellation drains the stream.
			s.logger.Debug("SSE write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// ParseFilters converts the wire filter shape into the domain expression.
func ParseFilters(f FilterExpression) (filter.Expression, error) {
	must, err := parseConditions(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := parseConditions(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	return filter.NewExpression(must, mustNot)
}

func parseConditions(in []FilterCondition) ([]filter.Condition, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(in))
	for _, c := range in {
		cond, err := filter.NewMatch(c.Key, c.Match)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

// ParseHistory converts wire turns into domain turns, dropping unknown roles.
func ParseHistory(in []HistoryTurn) []domain.Turn {
	out := make([]domain.Turn, 0, len(in))
	for _, turn := range in {
		switch domain.Role(turn.Role) {
		case domain.RoleUser, domain.RoleAssistant:
			out = append(out, domain.Turn{Role: domain.Role(turn.Role), Text: turn.Text})
		}
	}
	return out
}

// RetrievalRequest builds the retrieval input from the wire request.
func RetrievalRequest(req QueryRequest) (retrievaluc.Request, error) {
	filters, err := ParseFilters(req.Filters)
	if err != nil {
		return retrievaluc.Request{}, errors.Join(domain.ErrInvalidRequest, err)
	}
	if req.TopK < 0 {
		return retrievaluc.Request{}, fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidRequest)
	}
	return retrievaluc.Request{
		Query:        req.Query,
		SelectedText: req.SelectedText,
		Filters:      filters,
		TopK:         req.TopK,
	}, nil
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, handle := range s.errorHandlers {
		if handle(w, err) {
			return
		}
	}
	s.logger.Error("Unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}
