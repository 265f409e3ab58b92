// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"time"
)

// Do calls fn until it succeeds, maxRetries is exhausted or ctx is done.
// The delay doubles after each failed attempt.
func Do(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	return DoIf(ctx, maxRetries, baseDelay, nil, fn)
}

// DoIf is Do with a predicate selecting which errors are retried. An error
// rejected by shouldRetry is returned immediately.
func DoIf(ctx context.Context, maxRetries int, baseDelay time.Duration, shouldRetry func(error) bool, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
