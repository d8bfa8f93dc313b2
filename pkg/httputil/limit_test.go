package httputil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterCapsConcurrency(t *testing.T) {
	l := NewLimiter(2)
	if l.Size() != 2 {
		t.Errorf("Size() = %d, want 2", l.Size())
	}

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestLimiterUnlimited(t *testing.T) {
	for _, l := range []*Limiter{nil, NewLimiter(0)} {
		if err := l.Acquire(context.Background()); err != nil {
			t.Errorf("Acquire() error = %v", err)
		}
		l.Release()
		if l.Size() != 0 {
			t.Errorf("Size() = %d, want 0", l.Size())
		}
	}
}

func TestLimiterAcquireCancelled(t *testing.T) {
	l := NewLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Error("Acquire() should fail when ctx expires while full")
	}
}
