package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrMixedPositions is returned when a Position is constructed from
// transactions that span more than one position address. This is a
// programming error upstream, not a data condition, so it is fatal.
var ErrMixedPositions = errors.New("transactions span more than one position")

// PositionTotals carries a position's cumulative lifecycle amounts.
// Every *Value field is quote-denominated and truncated at the quote token's
// decimals at each accumulation step.
type PositionTotals struct {
	DepositsX     float64
	DepositsY     float64
	DepositsValue float64

	WithdrawsX     float64
	WithdrawsY     float64
	WithdrawsValue float64

	// NetDepositsAndWithdrawsValue = WithdrawsValue - DepositsValue.
	NetDepositsAndWithdrawsValue float64

	ClaimedFeesX     float64
	ClaimedFeesY     float64
	ClaimedFeesValue float64

	UnclaimedFeesX     float64
	UnclaimedFeesY     float64
	UnclaimedFeesValue float64

	OpenBalanceX     float64
	OpenBalanceY     float64
	OpenBalanceValue float64

	RewardAmounts [2]float64

	// ProfitLossValue = NetDepositsAndWithdrawsValue + ClaimedFeesValue +
	// OpenBalanceValue + UnclaimedFeesValue.
	ProfitLossValue float64

	OneSided          bool
	NoImpermanentLoss bool
	NoFees            bool
}

// USDTotals carries the same lifecycle amounts in USD terms. Only computed
// for positions whose API coverage is complete.
type USDTotals struct {
	Deposits                float64
	Withdraws               float64
	NetDepositsAndWithdraws float64
	ClaimedFees             float64
	UnclaimedFees           float64
	OpenBalance             float64
	Rewards                 float64
	ProfitLoss              float64
}

// Position aggregates one on-chain position's ordered transactions plus its
// cumulative totals. Closed positions are terminal; open positions receive
// one further live-valuation pass before totals are final.
type Position struct {
	Address string
	Pool    string
	Sender  string

	PairName  string
	MintX     string
	MintY     string
	SymbolX   string
	SymbolY   string
	DecimalsX uint8
	DecimalsY uint8
	BinStep   uint16

	RewardMints   [2]string
	RewardSymbols [2]string

	Inverted    bool
	Closed      bool
	Hawksight   bool
	HasAPIError bool

	OpenedAt time.Time
	ClosedAt time.Time

	Transactions []*PositionTransaction

	Totals PositionTotals

	// USD stays nil until enrichment succeeds without coverage errors.
	USD *USDTotals
}

// NewPosition builds a Position shell from its transaction set. All
// transactions must share one position address; metadata is taken from the
// first transaction. The set is sorted ascending by timestamp with a
// priced-before-unpriced tie-break so back-fill always sees priced neighbors
// first when timestamps collide.
func NewPosition(txs []*PositionTransaction) (*Position, error) {
	if len(txs) == 0 {
		return nil, errors.New("position requires at least one transaction")
	}

	addr := txs[0].Position
	for _, tx := range txs[1:] {
		if tx.Position != addr {
			return nil, fmt.Errorf("%w: %s vs %s", ErrMixedPositions, addr, tx.Position)
		}
	}

	SortTransactions(txs)

	first := txs[0]
	p := &Position{
		Address:       addr,
		Pool:          first.Pool,
		Sender:        first.Sender,
		PairName:      first.PairName,
		MintX:         first.MintX,
		MintY:         first.MintY,
		SymbolX:       first.SymbolX,
		SymbolY:       first.SymbolY,
		DecimalsX:     first.DecimalsX,
		DecimalsY:     first.DecimalsY,
		RewardMints:   first.RewardMints,
		RewardSymbols: first.RewardSymbols,
		OpenedAt:      first.Timestamp,
		Transactions:  txs,
	}

	last := txs[len(txs)-1]
	p.ClosedAt = last.Timestamp
	for _, tx := range txs {
		if tx.Close {
			p.Closed = true
		}
		if tx.Hawksight {
			p.Hawksight = true
		}
	}

	return p, nil
}

// SortTransactions orders a transaction set ascending by timestamp; on equal
// timestamps, transactions carrying a price sort first.
func SortTransactions(txs []*PositionTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].Price != nil && txs[j].Price == nil
	})
}

// Duration is the position's lifetime, using the live-valuation stamp as the
// end for still-open positions.
func (p *Position) Duration() time.Duration {
	if p.ClosedAt.Before(p.OpenedAt) {
		return 0
	}
	return p.ClosedAt.Sub(p.OpenedAt)
}

// GroupKey returns the direction-independent token-pair identity.
func (p *Position) GroupKey() string {
	return PairGroupKey(p.MintX, p.MintY)
}
