package storage

import (
	"context"

	"dlmm-profit-lab/internal/domain"
)

// AnalysisRunStore provides access to analysis_runs storage.
type AnalysisRunStore interface {
	// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.AnalysisRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.AnalysisRun, error)

	// GetByWallet retrieves all runs for a wallet, newest first.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.AnalysisRun, error)
}

// PositionStore provides access to positions storage. Positions are stored
// per run; the same on-chain position appears once per run that saw it.
type PositionStore interface {
	// InsertBulk adds all positions of one run atomically. Fails the entire
	// batch on any duplicate (run_id, address).
	InsertBulk(ctx context.Context, runID string, positions []*domain.Position) error

	// GetByRun retrieves all positions of a run, ordered by opening time ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.Position, error)

	// GetByAddress retrieves one position of a run. Returns ErrNotFound if
	// the run never saw that address.
	GetByAddress(ctx context.Context, runID, address string) (*domain.Position, error)
}
