package domain

import "time"

// PositionTransaction is one finalized per-position, per-transaction record.
// There is exactly one of these per (position, signature) pair; the decoder
// folds multiple instructions sharing that pair into a single record.
//
// Token X is the base side and token Y the quote side. Price is quoted as Y
// per X. The USD* fields stay nil until enrichment fills them.
type PositionTransaction struct {
	Signature string
	Position  string
	Pool      string
	Sender    string
	Timestamp time.Time
	Slot      uint64

	PairName  string
	MintX     string
	MintY     string
	SymbolX   string
	SymbolY   string
	DecimalsX uint8
	DecimalsY uint8

	RewardMints   [2]string
	RewardSymbols [2]string

	Open   bool
	Add    bool
	Claim  bool
	Reward bool
	Remove bool
	Close  bool

	Hawksight bool

	// Price is nil when no action in this transaction emitted a price event.
	// EstimatedPrice marks prices back-filled from a neighboring transaction.
	Price          *float64
	EstimatedPrice bool
	Inverted       bool

	DepositX  float64
	DepositY  float64
	WithdrawX float64
	WithdrawY float64

	OpenBalanceX     float64
	OpenBalanceY     float64
	OpenBalanceValue float64

	ClaimedFeesX     float64
	ClaimedFeesY     float64
	ClaimedFeesValue float64

	UnclaimedFeesX     float64
	UnclaimedFeesY     float64
	UnclaimedFeesValue float64

	RewardAmounts [2]float64

	USDDepositX      *float64
	USDDepositY      *float64
	USDWithdrawX     *float64
	USDWithdrawY     *float64
	USDClaimedFeesX  *float64
	USDClaimedFeesY  *float64
	USDUnclaimedFees *float64
	USDOpenBalance   *float64
	USDRewards       *float64
}

// QuoteValue converts an (x, y) token amount pair into quote-token terms at
// the transaction's price, truncated at the quote token's decimals. Returns 0
// when the price is unknown.
func (t *PositionTransaction) QuoteValue(x, y float64) float64 {
	if t.Price == nil {
		return FloorAt(y, t.DecimalsY)
	}
	return FloorAt(y+x*(*t.Price), t.DecimalsY)
}

// RecomputeValues refreshes the stored quote-denominated value fields from the
// current amounts and price. Called after inversion, price back-fill, and live
// valuation.
func (t *PositionTransaction) RecomputeValues() {
	t.ClaimedFeesValue = t.QuoteValue(t.ClaimedFeesX, t.ClaimedFeesY)
	t.UnclaimedFeesValue = t.QuoteValue(t.UnclaimedFeesX, t.UnclaimedFeesY)
	t.OpenBalanceValue = t.QuoteValue(t.OpenBalanceX, t.OpenBalanceY)
}

// Invert swaps which pool token is treated as quote versus base: every X/Y
// field pair is exchanged, the price becomes its reciprocal, the pair name
// halves swap, and the value fields are recomputed against the new quote
// side. Inverting twice restores the original record.
func (t *PositionTransaction) Invert() {
	t.MintX, t.MintY = t.MintY, t.MintX
	t.SymbolX, t.SymbolY = t.SymbolY, t.SymbolX
	t.DecimalsX, t.DecimalsY = t.DecimalsY, t.DecimalsX
	t.PairName = SwapPairName(t.PairName)

	t.DepositX, t.DepositY = t.DepositY, t.DepositX
	t.WithdrawX, t.WithdrawY = t.WithdrawY, t.WithdrawX
	t.OpenBalanceX, t.OpenBalanceY = t.OpenBalanceY, t.OpenBalanceX
	t.ClaimedFeesX, t.ClaimedFeesY = t.ClaimedFeesY, t.ClaimedFeesX
	t.UnclaimedFeesX, t.UnclaimedFeesY = t.UnclaimedFeesY, t.UnclaimedFeesX

	if t.Price != nil && *t.Price != 0 {
		p := 1 / *t.Price
		t.Price = &p
	}

	t.USDDepositX, t.USDDepositY = t.USDDepositY, t.USDDepositX
	t.USDWithdrawX, t.USDWithdrawY = t.USDWithdrawY, t.USDWithdrawX
	t.USDClaimedFeesX, t.USDClaimedFeesY = t.USDClaimedFeesY, t.USDClaimedFeesX

	t.Inverted = !t.Inverted
	t.RecomputeValues()
}

// Clone returns a deep copy. Pointer fields are duplicated so mutations of
// the copy never leak into the original.
func (t *PositionTransaction) Clone() *PositionTransaction {
	c := *t
	c.Price = clonePtr(t.Price)
	c.USDDepositX = clonePtr(t.USDDepositX)
	c.USDDepositY = clonePtr(t.USDDepositY)
	c.USDWithdrawX = clonePtr(t.USDWithdrawX)
	c.USDWithdrawY = clonePtr(t.USDWithdrawY)
	c.USDClaimedFeesX = clonePtr(t.USDClaimedFeesX)
	c.USDClaimedFeesY = clonePtr(t.USDClaimedFeesY)
	c.USDUnclaimedFees = clonePtr(t.USDUnclaimedFees)
	c.USDOpenBalance = clonePtr(t.USDOpenBalance)
	c.USDRewards = clonePtr(t.USDRewards)
	return &c
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
