package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures Retry. Waits double after each failed attempt up to
// MaxWait; Jitter scales each wait by a random factor in [0.5, 1.5).
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// Retry calls f until it succeeds, MaxAttempts is reached or ctx ends. The
// last failed Result is returned, or ctx's error if it ended first.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	wait := opts.InitialWait
	var result Result[T]
	for attempt := 1; ; attempt++ {
		result = f(ctx)
		if result.IsOk() || attempt == attempts {
			return result
		}
		if err := sleep(ctx, backoff(wait, opts)); err != nil {
			return Err[T](err)
		}
		wait = min(wait*2, opts.MaxWait)
	}
}

func backoff(wait time.Duration, opts RetryOpts) time.Duration {
	if opts.Jitter {
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	if opts.MaxWait > 0 && wait > opts.MaxWait {
		wait = opts.MaxWait
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
