package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/storage"
)

func testPosition(address string, openedAt time.Time) *domain.Position {
	return &domain.Position{
		Address:  address,
		Pool:     "pool-1",
		PairName: "BASE-USDC",
		MintX:    "mint-x",
		MintY:    "mint-y",
		SymbolY:  "USDC",
		Closed:   true,
		OpenedAt: openedAt,
		ClosedAt: openedAt.Add(6 * time.Hour),
		Transactions: []*domain.PositionTransaction{
			{Position: address, Signature: "sig-1", Timestamp: openedAt, DepositX: 4, DepositY: 10},
		},
		Totals: domain.PositionTotals{DepositsValue: 20, ProfitLossValue: 2.5},
	}
}

func TestPositionStore_InsertBulkAndGetByRun(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	positions := []*domain.Position{
		testPosition("pos-b", base.Add(time.Hour)),
		testPosition("pos-a", base),
	}
	if err := store.InsertBulk(ctx, "run-1", positions); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d positions, want 2", len(got))
	}
	// Ordered by opening time.
	if got[0].Address != "pos-a" || got[1].Address != "pos-b" {
		t.Errorf("wrong order: %s, %s", got[0].Address, got[1].Address)
	}
	if len(got[0].Transactions) != 1 || got[0].Transactions[0].Signature != "sig-1" {
		t.Errorf("transactions not preserved: %+v", got[0].Transactions)
	}
}

func TestPositionStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	if err := store.InsertBulk(ctx, "run-1", []*domain.Position{testPosition("pos-a", base)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, "run-1", []*domain.Position{
		testPosition("pos-b", base),
		testPosition("pos-a", base),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}

	// pos-b must not have been inserted.
	if _, err := store.GetByAddress(ctx, "run-1", "pos-b"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("partial batch survived: %v", err)
	}
}

func TestPositionStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	err := store.InsertBulk(ctx, "run-1", []*domain.Position{
		testPosition("pos-a", base),
		testPosition("pos-a", base),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}
}

func TestPositionStore_RunsAreIsolated(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	if err := store.InsertBulk(ctx, "run-1", []*domain.Position{testPosition("pos-a", base)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, "run-2", []*domain.Position{testPosition("pos-a", base)}); err != nil {
		t.Fatalf("same address in a new run must insert: %v", err)
	}

	got, err := store.GetByRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d positions, want 1", len(got))
	}
}

func TestPositionStore_ReturnsCopies(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	if err := store.InsertBulk(ctx, "run-1", []*domain.Position{testPosition("pos-a", base)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "run-1", "pos-a")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	got.Transactions[0].DepositX = 999

	again, err := store.GetByAddress(ctx, "run-1", "pos-a")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if again.Transactions[0].DepositX != 4 {
		t.Error("store returned a shared transaction slice")
	}
}
