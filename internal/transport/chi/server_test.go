package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
)

type stubAnswerer struct {
	events []domain.Event
	err    error
}

func (s *stubAnswerer) Answer(_ *http.Request, _ QueryRequest) (<-chan domain.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan domain.Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type stubParser struct{}

func (stubParser) Parse(source string, content []byte) (domain.Document, error) {
	return domain.Document{
		Source: source,
		Title:  source,
		Sections: []domain.Section{{
			HeadingPath: []string{source},
			Anchor:      "top",
			Body:        []domain.Block{{Kind: domain.BlockProse, Text: string(content)}},
		}},
	}, nil
}

type stubChunker struct{}

func (stubChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	return []domain.Chunk{{ID: doc.Source + "-0", Source: doc.Source, Text: doc.Title}}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	for i := range embeddings {
		embeddings[i] = []float32{1}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

type stubChunkStore struct{}

func (stubChunkStore) UpsertChunks(context.Context, []domain.Chunk, [][]float32) error { return nil }
func (stubChunkStore) DeleteBySource(context.Context, string) (int, error)            { return 0, nil }

type stubKeywordIndex struct{}

func (stubKeywordIndex) Upsert(...domain.Chunk)    {}
func (stubKeywordIndex) DeleteBySource(string) int { return 0 }

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func newTestServer(answerer Answerer) *Server {
	ingest := ingestuc.New(ingestuc.Config{}, stubParser{}, stubChunker{}, stubEmbedder{},
		stubChunkStore{}, stubKeywordIndex{}, zap.NewNop())
	health := healthuc.New(stubPinger{}, nil)
	return NewServer(ingest, answerer, health, zap.NewNop())
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	r := chirouter.NewRouter()
	s.Routes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIngestEndpoint(t *testing.T) {
	s := newTestServer(&stubAnswerer{})

	body := `{"documents":[{"source":"a.md","content":"# Title"}]}`
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp IngestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Documents != 1 || resp.Chunks != 1 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestIngestRejectsEmptyBody(t *testing.T) {
	s := newTestServer(&stubAnswerer{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{"documents":[]}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryStreamsServerSentEvents(t *testing.T) {
	s := newTestServer(&stubAnswerer{events: []domain.Event{
		domain.NewTokenEvent("Hello"),
		domain.NewCitationEvent("c1", []string{"Guide"}, "docs/guide.md"),
		domain.NewDoneEvent(1, 12, []string{"c1"}),
	}})

	body := `{"query":"what is a gearbox"}`
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	out := rec.Body.String()
	for _, want := range []string{
		"event: token", `"text":"Hello"`,
		"event: citation", `"chunk_id":"c1"`,
		"event: done", `"cited_chunk_ids":["c1"]`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("stream missing %q:\n%s", want, out)
		}
	}
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	s := newTestServer(&stubAnswerer{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":""}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryMapsRateLimitError(t *testing.T) {
	s := newTestServer(&stubAnswerer{err: domain.ErrRateLimited})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"q"}`)))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubAnswerer{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestParseFiltersAndHistory(t *testing.T) {
	expr, err := ParseFilters(FilterExpression{
		Must:    []FilterCondition{{Key: "source", Match: "docs/a.md"}},
		MustNot: []FilterCondition{{Key: "heading", Match: "Appendix"}},
	})
	if err != nil {
		t.Fatalf("ParseFilters() error = %v", err)
	}
	if len(expr.Must()) != 1 || len(expr.MustNot()) != 1 {
		t.Fatalf("expression = %+v", expr)
	}

	turns := ParseHistory([]HistoryTurn{
		{Role: "user", Text: "hi"},
		{Role: "assistant", Text: "hello"},
		{Role: "tool", Text: "dropped"},
	})
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2 (unknown role dropped)", len(turns))
	}
}

func TestRetrievalRequestTopK(t *testing.T) {
	rreq, err := RetrievalRequest(QueryRequest{Query: "torque limits", TopK: 3})
	if err != nil {
		t.Fatalf("RetrievalRequest() error = %v", err)
	}
	if rreq.TopK != 3 {
		t.Errorf("TopK = %d, want 3", rreq.TopK)
	}

	_, err = RetrievalRequest(QueryRequest{Query: "torque limits", TopK: -1})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("negative top_k error = %v, want ErrInvalidRequest", err)
	}
}
