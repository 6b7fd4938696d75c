package reporting

import (
	"fmt"
	"strings"
	"time"

	"dlmm-profit-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Wallet Liquidity Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Wallet: `%s`\n\n", r.Wallet))
	sb.WriteString(fmt.Sprintf("Signatures: %d | Transactions: %d | Positions: %d\n\n",
		r.SignatureCount, r.TransactionCount, len(r.Positions)))

	if r.Profit == nil {
		sb.WriteString("No positions found.\n")
		return sb.String()
	}

	// Wallet Summary
	sb.WriteString("## Wallet Summary\n\n")
	writeSummaryTable(&sb, &r.Profit.Summary)

	// Per quote token rollups
	for _, qt := range r.Profit.QuoteTokens {
		sb.WriteString(fmt.Sprintf("## Quote Token: %s\n\n", qt.QuoteSymbol))
		sb.WriteString(fmt.Sprintf("Mint: `%s`\n\n", qt.QuoteMint))
		writeSummaryTable(&sb, &qt.Summary)

		if len(qt.Groups) == 0 {
			continue
		}
		sb.WriteString("| Pair | Positions | Deposits | Claimed Fees | Unclaimed Fees | Profit | Profit% | Divergence |\n")
		sb.WriteString("|------|-----------|----------|--------------|----------------|--------|---------|------------|\n")
		for _, g := range qt.Groups {
			s := g.Summary
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f | %.4f | %.2f%% | %.4f |\n",
				g.GroupName, s.PositionCount,
				s.Deposits, s.ClaimedFees, s.UnclaimedFees,
				s.Profit, s.ProfitPercent*100, s.DivergenceLoss))
		}
		sb.WriteString("\n")
	}

	// Position detail
	sb.WriteString("## Positions\n\n")
	if len(r.Positions) == 0 {
		sb.WriteString("No positions available.\n")
		return sb.String()
	}
	sb.WriteString("| Position | Pair | Opened | Closed | Hours | Deposits | Claimed | Unclaimed | Open Balance | Profit | Flags |\n")
	sb.WriteString("|----------|------|--------|--------|-------|----------|---------|-----------|--------------|--------|-------|\n")
	for _, p := range r.Positions {
		t := p.Totals
		closedAt := "open"
		if p.Closed {
			closedAt = p.ClosedAt.UTC().Format(time.RFC3339)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.1f | %.4f | %.4f | %.4f | %.4f | %.4f | %s |\n",
			shortAddress(p.Address), p.PairName,
			p.OpenedAt.UTC().Format(time.RFC3339), closedAt,
			p.Duration().Hours(),
			t.DepositsValue, t.ClaimedFeesValue, t.UnclaimedFeesValue,
			t.OpenBalanceValue, t.ProfitLossValue,
			positionFlags(p)))
	}
	sb.WriteString("\n")

	return sb.String()
}

// writeSummaryTable emits one metric table for a profit rollup level.
func writeSummaryTable(sb *strings.Builder, s *domain.ProfitSummary) {
	sb.WriteString("| Metric | Native | USD |\n")
	sb.WriteString("|--------|--------|-----|\n")
	sb.WriteString(fmt.Sprintf("| Positions | %d | |\n", s.PositionCount))
	sb.WriteString(fmt.Sprintf("| Transactions | %d | |\n", s.TransactionCount))
	if s.ErrorPositionCount > 0 {
		sb.WriteString(fmt.Sprintf("| Positions w/o USD coverage | %d | |\n", s.ErrorPositionCount))
	}
	sb.WriteString(fmt.Sprintf("| Deposits | %.4f | %.2f |\n", s.Deposits, s.USDDeposits))
	sb.WriteString(fmt.Sprintf("| Withdrawals | %.4f | %.2f |\n", s.Withdrawals, s.USDWithdrawals))
	sb.WriteString(fmt.Sprintf("| Claimed Fees | %.4f | %.2f |\n", s.ClaimedFees, s.USDClaimedFees))
	sb.WriteString(fmt.Sprintf("| Unclaimed Fees | %.4f | %.2f |\n", s.UnclaimedFees, s.USDUnclaimedFees))
	sb.WriteString(fmt.Sprintf("| Rewards | | %.2f |\n", s.USDRewards))
	sb.WriteString(fmt.Sprintf("| Profit | %.4f | %.2f |\n", s.Profit, s.USDProfit))
	sb.WriteString(fmt.Sprintf("| Profit %% | %.2f%% | %.2f%% |\n", s.ProfitPercent*100, s.USDProfitPercent*100))
	sb.WriteString(fmt.Sprintf("| Divergence Loss | %.4f | %.2f |\n", s.DivergenceLoss, s.USDDivergenceLoss))
	sb.WriteString(fmt.Sprintf("| Average Balance | %.4f | |\n", s.AverageBalance))
	sb.WriteString(fmt.Sprintf("| Total Duration | %.1fh | |\n", s.TotalDuration.Hours()))
	sb.WriteString("\n")
}

// positionFlags summarizes a position's boolean markers.
func positionFlags(p *domain.Position) string {
	var flags []string
	if p.Hawksight {
		flags = append(flags, "hawksight")
	}
	if p.HasAPIError {
		flags = append(flags, "no-usd")
	}
	if p.Totals.OneSided {
		flags = append(flags, "one-sided")
	}
	if p.Totals.NoFees {
		flags = append(flags, "no-fees")
	}
	return strings.Join(flags, " ")
}

// shortAddress truncates a base58 address for table display.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + ".." + addr[len(addr)-4:]
}
