package domain

import "time"

// AnalysisRun records one completed wallet analysis for persistence.
type AnalysisRun struct {
	RunID            string
	Wallet           string
	SignatureCount   int
	TransactionCount int
	PositionCount    int
	StartedAt        time.Time
	FinishedAt       time.Time
	CreatedAt        time.Time
}
