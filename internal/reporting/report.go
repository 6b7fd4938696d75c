package reporting

import (
	"time"

	"dlmm-profit-lab/internal/domain"
)

// Report is the renderable outcome of one wallet analysis.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Wallet      string

	// Stream coverage
	SignatureCount   int
	TransactionCount int

	// Rollups, wallet down to pair group
	Profit *domain.WalletProfit

	// Position detail (sorted by opening time)
	Positions []*domain.Position
}

// NewReport assembles a report from a finished analysis.
func NewReport(wallet string, signatures, transactions int, positions []*domain.Position, profit *domain.WalletProfit) *Report {
	return &Report{
		GeneratedAt:      time.Now().UTC(),
		Wallet:           wallet,
		SignatureCount:   signatures,
		TransactionCount: transactions,
		Profit:           profit,
		Positions:        positions,
	}
}

// WithClock overrides the generation timestamp for deterministic output.
func (r *Report) WithClock(now func() time.Time) *Report {
	r.GeneratedAt = now()
	return r
}
