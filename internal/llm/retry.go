package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy describes how one kind of external call is retried.
type RetryPolicy struct {
	Name      string
	Attempts  int           // total tries, at least 1
	Backoff   time.Duration // wait between tries
	Retryable func(error) bool
}

// VisionPagePolicy retries a vision call once, only when the reply is empty.
func VisionPagePolicy() RetryPolicy {
	return RetryPolicy{
		Name:     "vision_page",
		Attempts: 2,
		Retryable: func(err error) bool {
			return errors.Is(err, ErrEmptyResponse)
		},
	}
}

// StructuredPolicy never retries the text-path extraction.
func StructuredPolicy() RetryPolicy {
	return RetryPolicy{Name: "structured", Attempts: 1}
}

// DivergencyPolicy never retries the external comparer.
func DivergencyPolicy() RetryPolicy {
	return RetryPolicy{Name: "divergency", Attempts: 1}
}

// Do runs fn under policy p. It stops early on success, on a non-retryable
// error, or when ctx is done.
func Do[T any](ctx context.Context, p RetryPolicy, logger *slog.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		zero T
		err  error
	)
	for i := 1; i <= attempts; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}
		var out T
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
		if i == attempts || p.Retryable == nil || !p.Retryable(err) {
			break
		}
		logger.Warn("llm.retry", "policy", p.Name, "attempt", i, "of", attempts, "error", err)
		if p.Backoff > 0 {
			t := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
		}
	}
	return zero, err
}
