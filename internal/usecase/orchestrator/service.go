package orchestrator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
)

const defaultSystemPrompt = "You are a documentation assistant. Answer using the " +
	"provided context when it is relevant. When you use a context passage, cite it " +
	"inline as [Chunk N] using the passage's number. If the context does not cover " +
	"the question, say so and answer from general knowledge without citations."

// Service assembles role-tagged prompts under a token budget. Retrieved chunks
// fill the context block greedily in rank order; caller-selected text is pinned
// and never truncated; history drops oldest turns first when over budget.
type Service struct {
	cfg     Config
	counter domain.TokenCounter
	logger  *zap.Logger
}

func New(cfg Config, counter domain.TokenCounter, logger *zap.Logger) *Service {
	return &Service{cfg: cfg.normalized(), counter: counter, logger: logger}
}

// BuildPrompt turns the request and ranked candidates into a generation
// prompt. An empty candidate list is not an error: the prompt degrades to a
// context-free one and the model answers best-effort without citations.
func (s *Service) BuildPrompt(req Request, cands []candidate.Candidate) domain.Prompt {
	var system strings.Builder
	system.WriteString(s.cfg.SystemPrompt)

	contextBlock, included := s.buildContext(req.SelectedText, cands)
	if contextBlock != "" {
		system.WriteString("\n\n# Context\n\n")
		system.WriteString(contextBlock)
	}

	segments := make([]domain.PromptSegment, 0, len(req.History)+2)
	segments = append(segments, domain.PromptSegment{Role: domain.RoleSystem, Text: system.String()})
	segments = append(segments, s.buildHistory(req.History)...)
	segments = append(segments, domain.PromptSegment{Role: domain.RoleUser, Text: req.Query})

	if len(included) == 0 {
		s.logger.Debug("Assembled context-free prompt", zap.Int("segments", len(segments)))
	}
	return domain.Prompt{Segments: segments, Chunks: included}
}

// buildContext renders the pinned selected text plus as many ranked chunks as
// the context budget allows. The returned chunk list is in citation order:
// "[Chunk N]" in the rendered block refers to included[N-1].
func (s *Service) buildContext(selected string, cands []candidate.Candidate) (string, []domain.Chunk) {
	var (
		parts    []string
		included []domain.Chunk
		used     int
	)

	if selected != "" {
		// Pinned by the caller: counted against the budget but never dropped.
		parts = append(parts, "The user highlighted this passage:\n"+selected)
		used += s.counter.Count(selected)
	}

	for i := range cands {
		chunk := cands[i].Chunk()
		rendered := renderChunk(len(included)+1, chunk)
		cost := s.counter.Count(rendered)
		if used+cost > s.cfg.ContextTokens {
			if used == 0 {
				// An oversized top passage still goes in rather than
				// leaving the context empty while candidates exist.
				parts = append(parts, rendered)
				included = append(included, chunk)
			}
			break
		}
		parts = append(parts, rendered)
		included = append(included, chunk)
		used += cost
	}

	return strings.Join(parts, "\n\n"), included
}

// buildHistory keeps the most recent turns that fit the history budget,
// dropping from the oldest forward and preserving chronological order.
func (s *Service) buildHistory(history []domain.Turn) []domain.PromptSegment {
	used := 0
	keepFrom := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := s.counter.Count(history[i].Text)
		if used+cost > s.cfg.HistoryTokens {
			break
		}
		used += cost
		keepFrom = i
	}
	if keepFrom < len(history) && keepFrom > 0 {
		s.logger.Debug("Truncated conversation history",
			zap.Int("dropped_turns", keepFrom),
			zap.Int("kept_turns", len(history)-keepFrom))
	}

	segments := make([]domain.PromptSegment, 0, len(history)-keepFrom)
	for _, turn := range history[keepFrom:] {
		segments = append(segments, domain.PromptSegment{Role: turn.Role, Text: turn.Text})
	}
	return segments
}

func renderChunk(number int, chunk domain.Chunk) string {
	header := fmt.Sprintf("[Chunk %d]", number)
	if crumb := chunk.Breadcrumb(); crumb != "" {
		header += " " + crumb
	}
	return header + "\n" + chunk.Text
}
