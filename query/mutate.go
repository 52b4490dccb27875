package query

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrInvalidInterval is returned by Pace for a non-positive interval.
var ErrInvalidInterval = errors.New("query: interval must be positive")

// Optimistic runs apply, then attempt. If attempt fails, the function
// returned by apply is called to undo the local change and the attempt's
// error is returned unchanged.
func Optimistic(ctx context.Context, apply func() (revert func()), attempt func(ctx context.Context) error) error {
	revert := apply()
	if err := attempt(ctx); err != nil {
		if revert != nil {
			revert()
		}
		return err
	}
	return nil
}

// Mutate applies next to the cached value of q immediately, then sends the
// new value to the backend with send. On failure the previous cached value
// is restored, unless something newer was written to q in the meantime.
func Mutate[T any](ctx context.Context, q *Query[T], next func(T) T, send func(ctx context.Context, v T) error) error {
	var applied T
	return Optimistic(ctx,
		func() func() {
			prev, had, ver := q.swap(func(cur T) T {
				applied = next(cur)
				return applied
			})
			return func() { q.restoreIf(prev, had, ver) }
		},
		func(ctx context.Context) error { return send(ctx, applied) },
	)
}

// Pace runs fn and, when it succeeds, delays the return until the elapsed
// time reaches the next multiple of interval. Failures return immediately.
// If ctx ends during the delay the successful result is returned at once.
func Pace[T any](ctx context.Context, interval time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if interval <= 0 {
		var zero T
		return zero, ErrInvalidInterval
	}
	start := time.Now()
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	if d := roundUpDelay(time.Since(start), interval); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	return v, nil
}

// PaceErr is Pace for operations without a result.
func PaceErr(ctx context.Context, interval time.Duration, fn func(ctx context.Context) error) error {
	_, err := Pace(ctx, interval, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func roundUpDelay(elapsed, interval time.Duration) time.Duration {
	n := math.Ceil(float64(elapsed) / float64(interval))
	rounded := time.Duration(n) * interval
	if d := rounded - elapsed; d > 0 {
		return d
	}
	return 0
}

// Retry calls fn once and then up to retries more times, sleeping delay
// between calls. It returns nil on the first success, ctx.Err() if the
// context ends while waiting, or the last error from fn.
func Retry(ctx context.Context, retries int, delay time.Duration, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
