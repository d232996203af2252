// Package anthropic provides a streaming generation provider backed by the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/usecase/generate"
)

// DefaultMaxTokens caps a completion when the config leaves it unset.
const DefaultMaxTokens = 4096

// Generator streams completions from the Anthropic Messages API.
type Generator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *zap.Logger
}

// Config holds the generation provider settings.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// NewGenerator creates an Anthropic streaming generation provider.
func NewGenerator(cfg *Config) *Generator {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Generator{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(maxTokens),
		logger:    cfg.Logger,
	}
}

// GenerateStream implements generate.Generator. System segments are folded
// into the request's system field; the rest become alternating messages as
// the Messages API requires.
func (g *Generator) GenerateStream(ctx context.Context, prompt domain.Prompt) (generate.TokenStream, error) {
	var (
		system   strings.Builder
		messages []anthropic.MessageParam
	)
	for _, seg := range prompt.Segments {
		switch seg.Role {
		case domain.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(seg.Text)
		case domain.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(seg.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(seg.Text)))
		}
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("prompt has no user message: %w", domain.ErrInvalidRequest)
	}

	params := anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages:  messages,
	}
	if system.Len() > 0 {
		params.System = []anthropic.TextBlockParam{{Text: system.String()}}
	}

	return &messageStream{stream: g.client.Messages.NewStreaming(ctx, params)}, nil
}

// messageStream adapts the SDK event stream to generate.TokenStream,
// surfacing only text deltas.
type messageStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (s *messageStream) Recv() (string, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			return text.Text, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", parseAPIError(err)
	}
	return "", io.EOF
}

func (s *messageStream) Close() error {
	return s.stream.Close()
}

func parseAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		wrap := domain.ErrGeneration
		if apiErr.StatusCode == http.StatusTooManyRequests {
			wrap = domain.ErrRateLimited
		}
		return fmt.Errorf("anthropic API error %d: %w", apiErr.StatusCode, wrap)
	}
	return fmt.Errorf("anthropic stream: %w", errors.Join(domain.ErrGeneration, err))
}
