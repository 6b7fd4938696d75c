package solana

import (
	"context"
	"testing"
	"time"
)

func TestWindowLimiterAllowsBudget(t *testing.T) {
	l := newWindowLimiter(3, time.Second)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("in-budget calls blocked for %v", elapsed)
	}
}

func TestWindowLimiterQueuesOverBudget(t *testing.T) {
	window := 100 * time.Millisecond
	l := newWindowLimiter(2, window)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
	// The third call has to wait for the window to roll over.
	if elapsed := time.Since(start); elapsed < window {
		t.Fatalf("over-budget call proceeded after %v, want >= %v", elapsed, window)
	}
}

func TestWindowLimiterHonorsContext(t *testing.T) {
	l := newWindowLimiter(1, time.Hour)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}
