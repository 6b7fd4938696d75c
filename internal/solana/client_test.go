package solana

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dlmm-profit-lab/internal/observability"
)

func TestCallCountsRetries(t *testing.T) {
	c := &Client{
		metrics:    observability.DefaultMetrics,
		maxRetries: 3,
		retryDelay: time.Millisecond,
		signatures: newWindowLimiter(100, time.Second),
	}

	retries := c.metrics.RPCRetries.WithLabelValues("getSignaturesForAddress")
	before := testutil.ToFloat64(retries)

	calls := 0
	err := c.call(context.Background(), "getSignaturesForAddress", c.signatures, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("made %d calls, want 3", calls)
	}
	if got := testutil.ToFloat64(retries); got != before+2 {
		t.Fatalf("retry count delta = %v, want 2", got-before)
	}
}
