package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry marks an error as "worth another attempt".
var ErrRetry = errors.New("retry")

// ErrExhausted is returned when attempts run out before success.
var ErrExhausted = errors.New("retry attempts exhausted")

// Backoff is a (blocking) function returning when to make the next attempt.
//
// It returns ctx.Err() when the context is canceled while waiting,
// ErrExhausted when no more attempts should be made, and nil to go on.
type Backoff func(context.Context) error

// StaticBackoff waits for a fixed interval between attempts.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits `initialInterval * r^N` before the N-th attempt
// (the first attempt starts after initialInterval).
func ExponentialBackoff(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer func() {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(int64(float64(interval) * r))
			return nil
		}
	}
}

// UpTo caps a Backoff at n attempts. The (n+1)-th wait returns ErrExhausted.
func UpTo(n int, b Backoff) Backoff {
	rest := n
	return func(ctx context.Context) error {
		if rest <= 0 {
			return ErrExhausted
		}
		rest -= 1
		return b(ctx)
	}
}

// Blocking calls f until it returns nil or a non-retry error.
//
// f is retried only when it returns an error wrapping ErrRetry. The backoff
// is consulted before every attempt, the first one included.
//
// # Returns
//
// - T: last return value of f
//
// - error: error from f, or from the backoff (canceled context, ErrExhausted).
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	last := *new(T)
	for {
		if err := b(ctx); err != nil {
			return last, err
		}

		var err error
		last, err = f()
		if err == nil {
			return last, nil
		}
		if errors.Is(err, ErrRetry) {
			continue
		}
		return last, err
	}
}

type Result[T any] struct {
	Value T
	Err   error
}

// Go retries f in a background goroutine.
//
// The returned channel receives exactly one Result and is closed.
func Go[T any](ctx context.Context, b Backoff, f func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)

	go func() {
		defer close(ch)
		ret, err := Blocking(ctx, b, f)
		ch <- Result[T]{Value: ret, Err: err}
	}()

	return ch
}
