package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL. The full
// position, transactions included, is stored as JSONB; the scalar columns
// exist for SQL-side filtering and reporting.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// InsertBulk adds all positions of one run atomically. Fails the entire
// batch on any duplicate (run_id, address).
func (s *PositionStore) InsertBulk(ctx context.Context, runID string, positions []*domain.Position) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(positions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO positions (
			run_id, address, pool, pair_name, quote_mint,
			closed, hawksight, has_api_error, opened_at, closed_at,
			deposits_value, withdraws_value, claimed_fees_value, unclaimed_fees_value,
			open_balance_value, profit_loss_value, usd_profit_loss, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	for _, p := range positions {
		if p == nil || p.Address == "" {
			return storage.ErrInvalidInput
		}

		detail, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal position %s: %w", p.Address, err)
		}

		var usdProfitLoss *float64
		if p.USD != nil {
			usdProfitLoss = &p.USD.ProfitLoss
		}

		_, err = tx.Exec(ctx, query,
			runID,
			p.Address,
			p.Pool,
			p.PairName,
			p.MintY,
			p.Closed,
			p.Hawksight,
			p.HasAPIError,
			p.OpenedAt,
			p.ClosedAt,
			p.Totals.DepositsValue,
			p.Totals.WithdrawsValue,
			p.Totals.ClaimedFeesValue,
			p.Totals.UnclaimedFeesValue,
			p.Totals.OpenBalanceValue,
			p.Totals.ProfitLossValue,
			usdProfitLoss,
			detail,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert position in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRun retrieves all positions of a run, ordered by opening time ASC.
func (s *PositionStore) GetByRun(ctx context.Context, runID string) ([]*domain.Position, error) {
	query := `
		SELECT detail
		FROM positions
		WHERE run_id = $1
		ORDER BY opened_at ASC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get positions by run: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetByAddress retrieves one position of a run. Returns ErrNotFound if the
// run never saw that address.
func (s *PositionStore) GetByAddress(ctx context.Context, runID, address string) (*domain.Position, error) {
	query := `
		SELECT detail
		FROM positions
		WHERE run_id = $1 AND address = $2
	`

	var detail []byte
	if err := s.pool.QueryRow(ctx, query, runID, address).Scan(&detail); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by address: %w", err)
	}

	var p domain.Position
	if err := json.Unmarshal(detail, &p); err != nil {
		return nil, fmt.Errorf("unmarshal position detail: %w", err)
	}
	return &p, nil
}

// scanPositions scans detail rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}

		var p domain.Position
		if err := json.Unmarshal(detail, &p); err != nil {
			return nil, fmt.Errorf("unmarshal position detail: %w", err)
		}
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
