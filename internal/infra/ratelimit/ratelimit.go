// Package ratelimit provides a token bucket used to pace stream flushes.
package ratelimit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// DefaultInterval is the refill interval used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Limiter is a token bucket with capacity 1 and a fixed refill interval.
// It caps how often something happens, not how much data moves.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a limiter that admits one token per interval.
// The bucket starts full, so the first request is granted immediately.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Interval returns the refill interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// RemoveTokens takes n tokens, waiting for refills as needed.
// With a capacity of 1, n > 1 is served as n sequential single-token waits.
func (l *Limiter) RemoveTokens(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter wait")
		}
	}
	return nil
}
