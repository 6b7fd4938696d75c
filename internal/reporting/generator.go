package reporting

import (
	"context"
	"fmt"
	"time"

	"dlmm-profit-lab/internal/profit"
	"dlmm-profit-lab/internal/storage"
)

// Generator produces reports from stored analysis runs.
type Generator struct {
	runStore      storage.AnalysisRunStore
	positionStore storage.PositionStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.AnalysisRunStore, positionStore storage.PositionStore) *Generator {
	return &Generator{
		runStore:      runStore,
		positionStore: positionStore,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report for one stored run. The profit rollup is
// recomputed from the stored positions rather than persisted alongside them.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	positions, err := g.positionStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load positions of run %s: %w", runID, err)
	}

	return &Report{
		GeneratedAt:      g.now(),
		Wallet:           run.Wallet,
		SignatureCount:   run.SignatureCount,
		TransactionCount: run.TransactionCount,
		Profit:           profit.Aggregate(run.Wallet, positions),
		Positions:        positions,
	}, nil
}

// GenerateLatest produces a report for the newest stored run of a wallet.
func (g *Generator) GenerateLatest(ctx context.Context, wallet string) (*Report, error) {
	runs, err := g.runStore.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load runs of wallet %s: %w", wallet, err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("wallet %s: %w", wallet, storage.ErrNotFound)
	}
	return g.Generate(ctx, runs[0].RunID)
}
