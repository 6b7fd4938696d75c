package domain

import "time"

// ProfitSummary is the metric vector shared by every rollup level. Native
// amounts are quote-denominated and only comparable within one quote token;
// USD amounts exclude positions flagged with API errors.
type ProfitSummary struct {
	PositionCount      int
	TransactionCount   int
	ErrorPositionCount int

	Deposits      float64
	Withdrawals   float64
	ClaimedFees   float64
	UnclaimedFees float64
	Profit        float64

	// DivergenceLoss = Profit - fees: the part of profit attributable to
	// price movement rather than fee income.
	DivergenceLoss float64

	// ProfitPercent = Profit / Deposits, zero when nothing was deposited.
	ProfitPercent float64

	// AverageBalance is the deposit-value balance weighted by position
	// lifetime: sum(balance*duration) / sum(duration).
	AverageBalance float64

	TotalDuration time.Duration

	USDDeposits       float64
	USDWithdrawals    float64
	USDClaimedFees    float64
	USDUnclaimedFees  float64
	USDRewards        float64
	USDProfit         float64
	USDDivergenceLoss float64
	USDProfitPercent  float64
}

// PairGroupProfit aggregates the positions of one direction-independent token
// pair. Positions recorded as (A, B) and (B, A) land in the same group.
type PairGroupProfit struct {
	GroupKey  string
	GroupName string
	QuoteMint string

	Summary   ProfitSummary
	Positions []*Position
}

// QuoteTokenProfit aggregates pair groups sharing one quote token.
type QuoteTokenProfit struct {
	QuoteMint   string
	QuoteSymbol string

	Summary ProfitSummary
	Groups  []*PairGroupProfit
}

// WalletProfit is the whole-wallet rollup.
type WalletProfit struct {
	Wallet string

	Summary     ProfitSummary
	QuoteTokens []*QuoteTokenProfit
}
