// Package retry is the single retry/backoff wrapper shared by every remote
// call (embedding, generation). Components configure attempts and base delay;
// the policy itself is not duplicated per caller.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config parameterizes the exponential backoff policy.
type Config struct {
	MaxAttempts uint
	BaseDelay   time.Duration
}

// DefaultConfig is the policy applied when a component passes a zero Config.
var DefaultConfig = Config{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond}

func (c Config) normalized() Config {
	out := c
	if out.MaxAttempts == 0 {
		out.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = DefaultConfig.BaseDelay
	}
	return out
}

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with exponential backoff until it succeeds, returns a permanent
// error, exhausts cfg.MaxAttempts, or ctx is cancelled.
func Do[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	cfg = cfg.normalized()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseDelay

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(cfg.MaxAttempts),
	)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// IsContextError reports whether err stems from cancellation or deadline,
// as opposed to a remote failure.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
