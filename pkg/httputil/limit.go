package httputil

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of requests in flight against one remote host.
// A nil *Limiter, or one built with n <= 0, does not limit.
type Limiter struct {
	sem *semaphore.Weighted
	n   int
}

// NewLimiter returns a limiter admitting at most n concurrent holders.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		return &Limiter{}
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), n: n}
}

// Size returns the configured ceiling, or 0 when unlimited.
func (l *Limiter) Size() int {
	if l == nil {
		return 0
	}
	return l.n
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with a Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.sem == nil {
		return ctx.Err()
	}
	return l.sem.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	if l == nil || l.sem == nil {
		return
	}
	l.sem.Release(1)
}
