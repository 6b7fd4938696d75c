package idhash

import (
	"testing"
	"time"
)

func TestComputeRunID(t *testing.T) {
	startedAt := time.Unix(1700000000, 42)

	id := ComputeRunID("wallet-1", startedAt, 120)
	if len(id) != 64 {
		t.Fatalf("run id length = %d, want 64", len(id))
	}

	// Deterministic for identical inputs.
	if again := ComputeRunID("wallet-1", startedAt, 120); again != id {
		t.Error("same inputs produced different run ids")
	}

	// Any input change produces a different id.
	if other := ComputeRunID("wallet-2", startedAt, 120); other == id {
		t.Error("different wallet produced the same run id")
	}
	if other := ComputeRunID("wallet-1", startedAt.Add(time.Nanosecond), 120); other == id {
		t.Error("different start time produced the same run id")
	}
	if other := ComputeRunID("wallet-1", startedAt, 121); other == id {
		t.Error("different signature count produced the same run id")
	}
}
