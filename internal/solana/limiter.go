package solana

import (
	"context"
	"sync"
	"time"
)

// windowLimiter enforces a fixed-window rate limit: at most maxCalls calls
// may start within any single window. Callers over the budget are queued
// until the window rolls over, never dropped.
//
// A token bucket would smooth bursts instead of cutting them off at the
// window edge; the RPC providers this client talks to meter per fixed
// window, so the limiter has to as well.
type windowLimiter struct {
	mu       sync.Mutex
	maxCalls int
	interval time.Duration

	windowStart time.Time
	count       int
}

func newWindowLimiter(maxCalls int, interval time.Duration) *windowLimiter {
	return &windowLimiter{
		maxCalls: maxCalls,
		interval: interval,
	}
}

// Wait blocks until the caller may proceed under the window budget, or until
// ctx is done.
func (l *windowLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if now.Sub(l.windowStart) >= l.interval {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.maxCalls {
			l.count++
			l.mu.Unlock()
			return nil
		}
		wakeAt := l.windowStart.Add(l.interval)
		l.mu.Unlock()

		timer := time.NewTimer(time.Until(wakeAt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
