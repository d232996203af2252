package generate

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// TokenStream yields incremental answer fragments from a generation provider.
// Recv returns io.EOF when the provider finished cleanly.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Generator opens a streaming completion for an assembled prompt.
// Cancelling the context must release the provider connection.
type Generator interface {
	GenerateStream(ctx context.Context, prompt domain.Prompt) (TokenStream, error)
}
