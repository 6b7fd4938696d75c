package profit

import (
	"math"
	"testing"
	"time"

	"dlmm-profit-lab/internal/domain"
)

const (
	mintBase  = "BaseMint1111111111111111111111111111111111"
	mintOther = "OtherMint111111111111111111111111111111111"
)

func position(addr, mintX string, deposits, profit float64, hours int, hasErr bool) *domain.Position {
	opened := time.Unix(1_700_000_000, 0)
	p := &domain.Position{
		Address:     addr,
		MintX:       mintX,
		MintY:       domain.MintUSDC,
		SymbolY:     "USDC",
		PairName:    "BASE-USDC",
		Closed:      true,
		HasAPIError: hasErr,
		OpenedAt:    opened,
		ClosedAt:    opened.Add(time.Duration(hours) * time.Hour),
		Transactions: []*domain.PositionTransaction{
			{Signature: addr + "-1"}, {Signature: addr + "-2"},
		},
		Totals: domain.PositionTotals{
			DepositsValue:    deposits,
			WithdrawsValue:   deposits + profit,
			ClaimedFeesValue: 1,
			ProfitLossValue:  profit + 1,
		},
	}
	if !hasErr {
		p.USD = &domain.USDTotals{
			Deposits:    deposits * 2,
			Withdraws:   (deposits + profit) * 2,
			ClaimedFees: 2,
			ProfitLoss:  profit*2 + 2,
		}
	}
	return p
}

func TestAggregateGroupsAndQuotes(t *testing.T) {
	positions := []*domain.Position{
		position("pos1", mintBase, 100, 10, 10, false),
		position("pos2", mintBase, 300, -20, 30, false),
		position("pos3", mintOther, 50, 5, 10, false),
	}
	w := Aggregate("wallet1", positions)

	if len(w.QuoteTokens) != 1 {
		t.Fatalf("got %d quote tokens", len(w.QuoteTokens))
	}
	q := w.QuoteTokens[0]
	if q.QuoteMint != domain.MintUSDC || q.QuoteSymbol != "USDC" {
		t.Fatalf("quote: %+v", q)
	}
	if len(q.Groups) != 2 {
		t.Fatalf("got %d pair groups", len(q.Groups))
	}

	// pos1 and pos2 share a pair group regardless of direction.
	var baseGroup *domain.PairGroupProfit
	for _, g := range q.Groups {
		if g.GroupKey == domain.PairGroupKey(mintBase, domain.MintUSDC) {
			baseGroup = g
		}
	}
	if baseGroup == nil || len(baseGroup.Positions) != 2 {
		t.Fatalf("base group: %+v", baseGroup)
	}
	if baseGroup.Summary.PositionCount != 2 || baseGroup.Summary.TransactionCount != 4 {
		t.Fatalf("base group summary: %+v", baseGroup.Summary)
	}
}

func TestAggregateAdditivity(t *testing.T) {
	positions := []*domain.Position{
		position("pos1", mintBase, 100, 10, 10, false),
		position("pos2", mintBase, 300, -20, 30, false),
		position("pos3", mintOther, 50, 5, 10, false),
	}
	w := Aggregate("wallet1", positions)

	var fromGroups domain.ProfitSummary
	for _, q := range w.QuoteTokens {
		for _, g := range q.Groups {
			fromGroups.Deposits += g.Summary.Deposits
			fromGroups.Profit += g.Summary.Profit
			fromGroups.USDProfit += g.Summary.USDProfit
			fromGroups.PositionCount += g.Summary.PositionCount
		}
	}
	if w.Summary.Deposits != fromGroups.Deposits {
		t.Fatalf("deposits not additive: %v vs %v", w.Summary.Deposits, fromGroups.Deposits)
	}
	if w.Summary.Profit != fromGroups.Profit {
		t.Fatalf("profit not additive: %v vs %v", w.Summary.Profit, fromGroups.Profit)
	}
	if w.Summary.USDProfit != fromGroups.USDProfit {
		t.Fatalf("USD profit not additive: %v vs %v", w.Summary.USDProfit, fromGroups.USDProfit)
	}
	if w.Summary.PositionCount != 3 {
		t.Fatalf("position count = %d", w.Summary.PositionCount)
	}
}

func TestAggregateErrorPositions(t *testing.T) {
	positions := []*domain.Position{
		position("pos1", mintBase, 100, 10, 10, false),
		position("pos2", mintBase, 300, -20, 30, true),
	}
	w := Aggregate("wallet1", positions)

	s := w.Summary
	if s.ErrorPositionCount != 1 {
		t.Fatalf("error count = %d", s.ErrorPositionCount)
	}
	// Native metrics include the flagged position.
	if s.Deposits != 400 {
		t.Fatalf("deposits = %v, want 400", s.Deposits)
	}
	// USD metrics exclude it.
	if s.USDDeposits != 200 {
		t.Fatalf("USD deposits = %v, want 200", s.USDDeposits)
	}
}

func TestProfitPercentGuard(t *testing.T) {
	p := position("pos1", mintBase, 0, 0, 10, false)
	p.Totals.DepositsValue = 0
	p.Totals.ProfitLossValue = 5
	w := Aggregate("wallet1", []*domain.Position{p})

	if w.Summary.ProfitPercent != 0 {
		t.Fatalf("profit percent with zero deposits = %v, want 0", w.Summary.ProfitPercent)
	}
}

func TestAverageBalanceTimeWeighted(t *testing.T) {
	// 100 for 10h and 300 for 30h: weighted mean 250.
	positions := []*domain.Position{
		position("pos1", mintBase, 100, 0, 10, false),
		position("pos2", mintBase, 300, 0, 30, false),
	}
	w := Aggregate("wallet1", positions)

	if got := w.Summary.AverageBalance; math.Abs(got-250) > 1e-9 {
		t.Fatalf("average balance = %v, want 250", got)
	}
	if w.Summary.TotalDuration != 40*time.Hour {
		t.Fatalf("total duration = %v", w.Summary.TotalDuration)
	}
}
