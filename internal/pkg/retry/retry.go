// Package retry is the single retry point for outbound calls. Stages that
// retry do so through Do; everything else calls once and falls back.
package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	jitterMin = 50 * time.Millisecond
	jitterMax = 150 * time.Millisecond
)

// Always treats every error as retriable.
func Always(error) bool { return true }

// Do runs fn up to attempts times, sleeping a random 50-150ms jitter between
// tries. A non-retriable error or context cancellation stops immediately.
func Do[T any](ctx context.Context, attempts int, retriable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	if retriable == nil {
		retriable = Always
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == attempts || !retriable(err) {
			break
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(jitter()):
		}
	}
	var zero T
	return zero, err
}

func jitter() time.Duration {
	return jitterMin + time.Duration(rand.Int63n(int64(jitterMax-jitterMin)))
}
