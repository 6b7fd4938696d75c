package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/storage"
)

func testRun(id, wallet string, startedAt time.Time) *domain.AnalysisRun {
	return &domain.AnalysisRun{
		RunID:            id,
		Wallet:           wallet,
		SignatureCount:   120,
		TransactionCount: 37,
		PositionCount:    4,
		StartedAt:        startedAt,
		FinishedAt:       startedAt.Add(2 * time.Minute),
	}
}

func TestAnalysisRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalysisRunStore(pool)
	ctx := context.Background()

	run := testRun("run-001", "wallet-1", time.Unix(1700000000, 0).UTC())
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.Wallet, got.Wallet)
	assert.Equal(t, run.SignatureCount, got.SignatureCount)
	assert.Equal(t, run.TransactionCount, got.TransactionCount)
	assert.Equal(t, run.PositionCount, got.PositionCount)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
	assert.NotZero(t, got.CreatedAt)
}

func TestAnalysisRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalysisRunStore(pool)
	ctx := context.Background()

	run := testRun("run-dup", "wallet-1", time.Unix(1700000000, 0).UTC())
	require.NoError(t, store.Insert(ctx, run))

	err := store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestAnalysisRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalysisRunStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAnalysisRunStore_GetByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalysisRunStore(pool)
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	require.NoError(t, store.Insert(ctx, testRun("run-a", "wallet-1", base)))
	require.NoError(t, store.Insert(ctx, testRun("run-b", "wallet-1", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, testRun("run-c", "wallet-2", base)))

	runs, err := store.GetByWallet(ctx, "wallet-1")
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID, "newest run first")
	assert.Equal(t, "run-a", runs[1].RunID)
}
