// Package profit rolls assembled positions up into pair-group, quote-token
// and wallet summaries. Every level shares one metric vector, and each
// level's numbers are exactly the sum of its children's, so a reader can
// drill down without reconciliation surprises.
package profit

import (
	"sort"

	"dlmm-profit-lab/internal/domain"
)

// Aggregate builds the wallet rollup from a final position set. Positions
// flagged with API errors contribute to native metrics and counts but are
// excluded from every USD metric.
func Aggregate(wallet string, positions []*domain.Position) *domain.WalletProfit {
	groups := map[string]*domain.PairGroupProfit{}
	for _, p := range positions {
		key := p.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &domain.PairGroupProfit{
				GroupKey:  key,
				GroupName: p.PairName,
				QuoteMint: p.MintY,
			}
			groups[key] = g
		}
		g.Positions = append(g.Positions, p)
	}

	byQuote := map[string]*domain.QuoteTokenProfit{}
	for _, g := range groups {
		g.Summary = summarize(g.Positions)

		q, ok := byQuote[g.QuoteMint]
		if !ok {
			q = &domain.QuoteTokenProfit{QuoteMint: g.QuoteMint}
			byQuote[g.QuoteMint] = q
		}
		if q.QuoteSymbol == "" && len(g.Positions) > 0 {
			q.QuoteSymbol = g.Positions[0].SymbolY
		}
		q.Groups = append(q.Groups, g)
	}

	w := &domain.WalletProfit{Wallet: wallet}
	for _, q := range byQuote {
		sortGroups(q.Groups)
		q.Summary = combine(summaries(q.Groups))
		w.QuoteTokens = append(w.QuoteTokens, q)
	}
	sort.Slice(w.QuoteTokens, func(i, j int) bool {
		return w.QuoteTokens[i].QuoteMint < w.QuoteTokens[j].QuoteMint
	})

	quoteSummaries := make([]domain.ProfitSummary, 0, len(w.QuoteTokens))
	for _, q := range w.QuoteTokens {
		quoteSummaries = append(quoteSummaries, q.Summary)
	}
	w.Summary = combine(quoteSummaries)
	return w
}

// summarize computes the metric vector of one position set.
func summarize(positions []*domain.Position) domain.ProfitSummary {
	var s domain.ProfitSummary
	var weighted float64

	for _, p := range positions {
		t := p.Totals
		s.PositionCount++
		s.TransactionCount += len(p.Transactions)

		s.Deposits += t.DepositsValue
		s.Withdrawals += t.WithdrawsValue
		s.ClaimedFees += t.ClaimedFeesValue
		s.UnclaimedFees += t.UnclaimedFeesValue
		s.Profit += t.ProfitLossValue

		d := p.Duration()
		s.TotalDuration += d
		weighted += t.DepositsValue * d.Seconds()

		if p.HasAPIError || p.USD == nil {
			s.ErrorPositionCount++
			continue
		}
		s.USDDeposits += p.USD.Deposits
		s.USDWithdrawals += p.USD.Withdraws
		s.USDClaimedFees += p.USD.ClaimedFees
		s.USDUnclaimedFees += p.USD.UnclaimedFees
		s.USDRewards += p.USD.Rewards
		s.USDProfit += p.USD.ProfitLoss
	}

	s.DivergenceLoss = s.Profit - s.ClaimedFees - s.UnclaimedFees
	s.USDDivergenceLoss = s.USDProfit - s.USDClaimedFees - s.USDUnclaimedFees
	if s.Deposits != 0 {
		s.ProfitPercent = s.Profit / s.Deposits
	}
	if s.USDDeposits != 0 {
		s.USDProfitPercent = s.USDProfit / s.USDDeposits
	}
	if secs := s.TotalDuration.Seconds(); secs > 0 {
		s.AverageBalance = weighted / secs
	}
	return s
}

// combine adds child summaries into a parent vector. The derived ratios are
// recomputed, not averaged, so additivity holds for the raw amounts.
func combine(children []domain.ProfitSummary) domain.ProfitSummary {
	var s domain.ProfitSummary
	var weighted float64

	for _, c := range children {
		s.PositionCount += c.PositionCount
		s.TransactionCount += c.TransactionCount
		s.ErrorPositionCount += c.ErrorPositionCount

		s.Deposits += c.Deposits
		s.Withdrawals += c.Withdrawals
		s.ClaimedFees += c.ClaimedFees
		s.UnclaimedFees += c.UnclaimedFees
		s.Profit += c.Profit
		s.DivergenceLoss += c.DivergenceLoss

		s.USDDeposits += c.USDDeposits
		s.USDWithdrawals += c.USDWithdrawals
		s.USDClaimedFees += c.USDClaimedFees
		s.USDUnclaimedFees += c.USDUnclaimedFees
		s.USDRewards += c.USDRewards
		s.USDProfit += c.USDProfit
		s.USDDivergenceLoss += c.USDDivergenceLoss

		s.TotalDuration += c.TotalDuration
		weighted += c.AverageBalance * c.TotalDuration.Seconds()
	}

	if s.Deposits != 0 {
		s.ProfitPercent = s.Profit / s.Deposits
	}
	if s.USDDeposits != 0 {
		s.USDProfitPercent = s.USDProfit / s.USDDeposits
	}
	if secs := s.TotalDuration.Seconds(); secs > 0 {
		s.AverageBalance = weighted / secs
	}
	return s
}

func summaries(groups []*domain.PairGroupProfit) []domain.ProfitSummary {
	out := make([]domain.ProfitSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Summary)
	}
	return out
}

// sortGroups orders pair groups by profit descending, then by name for a
// stable report layout.
func sortGroups(groups []*domain.PairGroupProfit) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Summary.Profit != groups[j].Summary.Profit {
			return groups[i].Summary.Profit > groups[j].Summary.Profit
		}
		return groups[i].GroupName < groups[j].GroupName
	})
}
