package llm

import (
	"context"
	"math/rand"
	"time"

	"github.com/walletmind/walletmind/errors"
)

// RetryConfig configures bounded exponential backoff around a model call.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; it doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// JitterFactor is the maximum jitter as a fraction of the wait (0-1).
	JitterFactor float64

	// Retryable decides whether an error is worth retrying. Defaults to
	// errors.IsTransient: transport-class failures retry, validation and
	// client-class errors never do.
	Retryable func(error) bool
}

// DefaultRetryConfig returns the standard model-call retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    300 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0.2,
	}
}

// Retry runs fn up to cfg.MaxAttempts times with exponential backoff,
// returning the first success or the last error. Non-retryable errors return
// immediately.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = errors.IsTransient
	}

	backoff := cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(withJitter(backoff, cfg.JitterFactor)):
		}

		backoff *= 2
		if cfg.MaxDelay > 0 && backoff > cfg.MaxDelay {
			backoff = cfg.MaxDelay
		}
	}
	return zero, lastErr
}

// withJitter spreads the wait across [base*(1-f), base*(1+f)] to avoid
// synchronized retries.
func withJitter(base time.Duration, factor float64) time.Duration {
	if factor <= 0 || base <= 0 {
		return base
	}
	jitter := (rand.Float64()*2 - 1) * factor
	return time.Duration(float64(base) * (1.0 + jitter))
}
