package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/storage"
)

// AnalysisRunStore implements storage.AnalysisRunStore using PostgreSQL.
type AnalysisRunStore struct {
	pool *Pool
}

// NewAnalysisRunStore creates a new AnalysisRunStore.
func NewAnalysisRunStore(pool *Pool) *AnalysisRunStore {
	return &AnalysisRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnalysisRunStore = (*AnalysisRunStore)(nil)

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *AnalysisRunStore) Insert(ctx context.Context, run *domain.AnalysisRun) error {
	if run == nil || run.RunID == "" || run.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO analysis_runs (
			run_id, wallet, signature_count, transaction_count, position_count, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID,
		run.Wallet,
		run.SignatureCount,
		run.TransactionCount,
		run.PositionCount,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert analysis run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *AnalysisRunStore) GetByID(ctx context.Context, runID string) (*domain.AnalysisRun, error) {
	query := `
		SELECT run_id, wallet, signature_count, transaction_count, position_count, started_at, finished_at, created_at
		FROM analysis_runs
		WHERE run_id = $1
	`

	var run domain.AnalysisRun
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&run.Wallet,
		&run.SignatureCount,
		&run.TransactionCount,
		&run.PositionCount,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get analysis run by id: %w", err)
	}
	return &run, nil
}

// GetByWallet retrieves all runs for a wallet, newest first.
func (s *AnalysisRunStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.AnalysisRun, error) {
	query := `
		SELECT run_id, wallet, signature_count, transaction_count, position_count, started_at, finished_at, created_at
		FROM analysis_runs
		WHERE wallet = $1
		ORDER BY started_at DESC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get analysis runs by wallet: %w", err)
	}
	defer rows.Close()

	return scanAnalysisRuns(rows)
}

// scanAnalysisRuns scans multiple rows into a slice of AnalysisRun.
func scanAnalysisRuns(rows pgx.Rows) ([]*domain.AnalysisRun, error) {
	var runs []*domain.AnalysisRun

	for rows.Next() {
		var run domain.AnalysisRun

		err := rows.Scan(
			&run.RunID,
			&run.Wallet,
			&run.SignatureCount,
			&run.TransactionCount,
			&run.PositionCount,
			&run.StartedAt,
			&run.FinishedAt,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan analysis run row: %w", err)
		}

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis run rows: %w", err)
	}

	return runs, nil
}
