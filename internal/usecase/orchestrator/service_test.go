package orchestrator

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
)

// wordCounter makes token math readable in tests: one word, one token.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = prefix
	}
	return strings.Join(parts, " ")
}

func newTestService(cfg Config) *Service {
	return New(cfg, wordCounter{}, zap.NewNop())
}

func chunkCandidates(texts ...string) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(texts))
	for i, text := range texts {
		out = append(out, candidate.New(domain.Chunk{
			ID:          string(rune('a' + i)),
			Text:        text,
			HeadingPath: []string{"Guide"},
			URL:         "docs/guide.md",
		}, 0.9, 0))
	}
	return out
}

func TestBuildPromptFillsContextGreedilyInRankOrder(t *testing.T) {
	svc := newTestService(Config{TotalTokens: 400, ContextTokens: 130, HistoryTokens: 50})

	// Each rendered chunk costs ~53 tokens (50 body + header); two fit, the
	// third does not.
	cands := chunkCandidates(words("alpha", 50), words("beta", 50), words("gamma", 50))
	prompt := svc.BuildPrompt(Request{Query: "how does it work"}, cands)

	if len(prompt.Chunks) != 2 {
		t.Fatalf("included chunks = %d, want 2", len(prompt.Chunks))
	}
	if prompt.Chunks[0].ID != "a" || prompt.Chunks[1].ID != "b" {
		t.Fatalf("chunks included out of rank order: %q, %q", prompt.Chunks[0].ID, prompt.Chunks[1].ID)
	}
	system := prompt.Segments[0].Text
	if !strings.Contains(system, "[Chunk 1]") || !strings.Contains(system, "[Chunk 2]") {
		t.Fatalf("system segment missing numbered context headers:\n%s", system)
	}
	if strings.Contains(system, "gamma") {
		t.Fatal("over-budget chunk leaked into context")
	}
}

func TestBuildPromptSelectedTextIsPinned(t *testing.T) {
	svc := newTestService(Config{TotalTokens: 400, ContextTokens: 60, HistoryTokens: 50})

	selected := words("pinned", 55)
	cands := chunkCandidates(words("alpha", 50))
	prompt := svc.BuildPrompt(Request{Query: "explain", SelectedText: selected}, cands)

	system := prompt.Segments[0].Text
	if !strings.Contains(system, "pinned") {
		t.Fatal("selected text missing from context")
	}
	// The pin consumed nearly the whole budget; the chunk must be dropped,
	// never the selected text.
	if len(prompt.Chunks) != 0 {
		t.Fatalf("included chunks = %d, want 0", len(prompt.Chunks))
	}
}

func TestBuildPromptEmptyCandidatesDegradesToContextFree(t *testing.T) {
	svc := newTestService(Config{})

	prompt := svc.BuildPrompt(Request{Query: "what is torque"}, nil)

	if len(prompt.Chunks) != 0 {
		t.Fatalf("included chunks = %d, want 0", len(prompt.Chunks))
	}
	if strings.Contains(prompt.Segments[0].Text, "# Context") {
		t.Fatal("context header present without any context")
	}
	last := prompt.Segments[len(prompt.Segments)-1]
	if last.Role != domain.RoleUser || last.Text != "what is torque" {
		t.Fatalf("final segment = %+v, want the user query", last)
	}
}

func TestBuildPromptTruncatesHistoryOldestFirst(t *testing.T) {
	svc := newTestService(Config{TotalTokens: 400, ContextTokens: 100, HistoryTokens: 25})

	history := []domain.Turn{
		{Role: domain.RoleUser, Text: words("first", 20)},
		{Role: domain.RoleAssistant, Text: words("second", 10)},
		{Role: domain.RoleUser, Text: words("third", 10)},
	}
	prompt := svc.BuildPrompt(Request{Query: "follow up", History: history}, nil)

	var kept []string
	for _, seg := range prompt.Segments[1 : len(prompt.Segments)-1] {
		kept = append(kept, strings.Fields(seg.Text)[0])
	}
	want := []string{"second", "third"}
	if len(kept) != len(want) || kept[0] != want[0] || kept[1] != want[1] {
		t.Fatalf("kept history = %v, want %v", kept, want)
	}
}

func TestBuildPromptHistoryWithinBudgetKeptWhole(t *testing.T) {
	svc := newTestService(Config{TotalTokens: 400, ContextTokens: 100, HistoryTokens: 50})

	history := []domain.Turn{
		{Role: domain.RoleUser, Text: "how do I tune gains"},
		{Role: domain.RoleAssistant, Text: "start with proportional only"},
	}
	prompt := svc.BuildPrompt(Request{Query: "and then", History: history}, nil)

	// system + 2 history turns + query
	if len(prompt.Segments) != 4 {
		t.Fatalf("segments = %d, want 4", len(prompt.Segments))
	}
	if prompt.Segments[1].Role != domain.RoleUser || prompt.Segments[2].Role != domain.RoleAssistant {
		t.Fatalf("history roles out of order: %v, %v", prompt.Segments[1].Role, prompt.Segments[2].Role)
	}
}

func TestBuildPromptOversizedTopChunkStillIncluded(t *testing.T) {
	svc := newTestService(Config{TotalTokens: 400, ContextTokens: 30, HistoryTokens: 20})

	cands := chunkCandidates(words("huge", 80))
	prompt := svc.BuildPrompt(Request{Query: "summarize"}, cands)

	if len(prompt.Chunks) != 1 {
		t.Fatalf("included chunks = %d, want 1", len(prompt.Chunks))
	}
}
