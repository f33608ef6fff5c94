package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests with a token bucket and optional jitter.
// A nil *Limiter never blocks. It is safe for concurrent use.
type Limiter struct {
	bucket   *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter allows rps requests per second with a burst of one. jitter adds
// a random extra delay of up to jitter*interval after each token; it is
// clamped to [0, 1]. rps <= 0 disables limiting and returns nil.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return nil
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	return &Limiter{
		bucket:   rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Wait blocks until the next request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	if l.jitter <= 0 {
		return nil
	}

	extra := time.Duration(float64(l.interval) * l.jitter * rand.Float64())
	if extra <= 0 {
		return nil
	}

	timer := time.NewTimer(extra)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
