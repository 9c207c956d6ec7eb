package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/streamkit/errors"
)

// RetryConfig bounds how an operation that fails before producing anything
// is repeated.
type RetryConfig struct {
	// MaxAttempts counts the first call. Zero means three.
	MaxAttempts int
	Backoff     Backoff
	// RetryIf decides whether err is worth another attempt. Defaults to DefaultRetryIf.
	RetryIf func(error) bool
	// OnRetry runs before each wait with the failed attempt (one-based).
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits for d or until ctx ends. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns three attempts on the default backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     DefaultBackoff(),
		RetryIf:     DefaultRetryIf,
	}
}

// DefaultRetryIf retries errors marked retryable, never context cancellation.
func DefaultRetryIf(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.IsRetryable(err)
}

// Retry calls fn until it succeeds, returns an error RetryIf rejects, or
// MaxAttempts is spent. fn receives the one-based attempt number. A
// Retry-After hint carried by the error lengthens the wait.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts || !cfg.RetryIf(err) {
			break
		}

		hint, _ := errors.RetryAfter(err)
		delay := cfg.Backoff.After(attempt-1, hint)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if err := cfg.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
