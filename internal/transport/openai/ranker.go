package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const rankerSystemPrompt = "You rank passages by relevance to a query. " +
	"Reply with a JSON array of zero-based passage indexes, most relevant first, " +
	"and nothing else. Include every index exactly once."

// Ranker scores passages listwise with a chat model. Implements
// rerank.OrderModel; the rerank service repairs any malformed ordering.
type Ranker struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewRanker creates a chat-based listwise ranker.
func NewRanker(cfg *GeneratorConfig) *Ranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Ranker{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// RankOrder asks the model for the preferred passage ordering.
func (r *Ranker) RankOrder(ctx context.Context, query string, passages []string) ([]int, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Query: %s\n\n", query)
	for i, passage := range passages {
		fmt.Fprintf(&user, "Passage %d:\n%s\n\n", i, passage)
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rankerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user.String()},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("rank request: %w", domain.ErrRerankerUnavailable)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty rank response: %w", domain.ErrRerankerUnavailable)
	}

	order, err := parseOrder(resp.Choices[0].Message.Content)
	if err != nil {
		r.logger.Warn("Unparseable rank response",
			zap.String("content", resp.Choices[0].Message.Content),
			zap.Error(err))
		return nil, fmt.Errorf("parse rank response: %w", domain.ErrRerankerUnavailable)
	}
	return order, nil
}

// parseOrder extracts the JSON index array, tolerating surrounding prose.
func parseOrder(content string) ([]int, error) {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in %q", content)
	}

	var order []int
	if err := json.Unmarshal([]byte(content[start:end+1]), &order); err != nil {
		return nil, fmt.Errorf("decode index array: %w", err)
	}
	return order, nil
}
