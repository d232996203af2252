package rerank

import "context"

// OrderModel scores a candidate list jointly against the query and returns
// the preferred ordering as indexes into the passage slice. Implementations
// live in the transport layer (LLM-backed listwise ranking).
type OrderModel interface {
	RankOrder(ctx context.Context, query string, passages []string) ([]int, error)
}
