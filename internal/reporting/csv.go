package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dlmm-profit-lab/internal/domain"
)

// Column names below are an export contract; renaming one is a breaking
// change for downstream consumers.

// RenderTransactionsCSV renders every position transaction as CSV, one row
// per (position, signature) record.
func RenderTransactionsCSV(positions []*domain.Position) string {
	var sb strings.Builder

	// Header
	sb.WriteString("position,signature,timestamp,pair_name,sender,hawksight,")
	sb.WriteString("open,add,claim,reward,remove,close,")
	sb.WriteString("price,estimated_price,inverted,")
	sb.WriteString("deposit_x,deposit_y,withdraw_x,withdraw_y,")
	sb.WriteString("claimed_fees_x,claimed_fees_y,claimed_fees_value,")
	sb.WriteString("unclaimed_fees_x,unclaimed_fees_y,unclaimed_fees_value,")
	sb.WriteString("open_balance_x,open_balance_y,open_balance_value,")
	sb.WriteString("reward_amount_1,reward_amount_2,")
	sb.WriteString("usd_deposit_x,usd_deposit_y,usd_withdraw_x,usd_withdraw_y,")
	sb.WriteString("usd_claimed_fees_x,usd_claimed_fees_y,usd_unclaimed_fees,usd_open_balance,usd_rewards\n")

	// Rows
	for _, p := range positions {
		for _, tx := range p.Transactions {
			sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%t,%t,%t,%t,%t,%t,%t,%s,%t,%t,",
				tx.Position,
				tx.Signature,
				tx.Timestamp.UTC().Format(time.RFC3339),
				tx.PairName,
				tx.Sender,
				tx.Hawksight,
				tx.Open, tx.Add, tx.Claim, tx.Reward, tx.Remove, tx.Close,
				optional(tx.Price),
				tx.EstimatedPrice,
				tx.Inverted,
			))
			sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,",
				amount(tx.DepositX), amount(tx.DepositY),
				amount(tx.WithdrawX), amount(tx.WithdrawY),
				amount(tx.ClaimedFeesX), amount(tx.ClaimedFeesY), amount(tx.ClaimedFeesValue),
				amount(tx.UnclaimedFeesX), amount(tx.UnclaimedFeesY), amount(tx.UnclaimedFeesValue),
				amount(tx.OpenBalanceX), amount(tx.OpenBalanceY), amount(tx.OpenBalanceValue),
				amount(tx.RewardAmounts[0]), amount(tx.RewardAmounts[1]),
			))
			sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
				optional(tx.USDDepositX), optional(tx.USDDepositY),
				optional(tx.USDWithdrawX), optional(tx.USDWithdrawY),
				optional(tx.USDClaimedFeesX), optional(tx.USDClaimedFeesY),
				optional(tx.USDUnclaimedFees), optional(tx.USDOpenBalance), optional(tx.USDRewards),
			))
		}
	}

	return sb.String()
}

// RenderPositionsCSV renders the per-position summary table as CSV.
func RenderPositionsCSV(positions []*domain.Position) string {
	var sb strings.Builder

	// Header
	sb.WriteString("position,pool,pair_name,quote_symbol,opened_at,closed_at,duration_hours,")
	sb.WriteString("closed,hawksight,has_api_error,one_sided,no_fees,no_impermanent_loss,")
	sb.WriteString("deposits_value,withdraws_value,net_deposits_and_withdraws_value,")
	sb.WriteString("claimed_fees_value,unclaimed_fees_value,open_balance_value,profit_loss_value,")
	sb.WriteString("usd_deposits,usd_withdraws,usd_claimed_fees,usd_unclaimed_fees,usd_open_balance,usd_rewards,usd_profit_loss\n")

	// Rows
	for _, p := range positions {
		t := p.Totals
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%.2f,%t,%t,%t,%t,%t,%t,%s,%s,%s,%s,%s,%s,%s,",
			p.Address,
			p.Pool,
			p.PairName,
			p.SymbolY,
			p.OpenedAt.UTC().Format(time.RFC3339),
			p.ClosedAt.UTC().Format(time.RFC3339),
			p.Duration().Hours(),
			p.Closed, p.Hawksight, p.HasAPIError,
			t.OneSided, t.NoFees, t.NoImpermanentLoss,
			amount(t.DepositsValue), amount(t.WithdrawsValue), amount(t.NetDepositsAndWithdrawsValue),
			amount(t.ClaimedFeesValue), amount(t.UnclaimedFeesValue), amount(t.OpenBalanceValue),
			amount(t.ProfitLossValue),
		))
		if p.USD == nil {
			sb.WriteString(",,,,,,\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s\n",
			amount(p.USD.Deposits), amount(p.USD.Withdraws),
			amount(p.USD.ClaimedFees), amount(p.USD.UnclaimedFees),
			amount(p.USD.OpenBalance), amount(p.USD.Rewards), amount(p.USD.ProfitLoss),
		))
	}

	return sb.String()
}

// amount formats a float without trailing zero noise.
func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// optional formats a nullable float; nil renders empty.
func optional(p *float64) string {
	if p == nil {
		return ""
	}
	return amount(*p)
}
