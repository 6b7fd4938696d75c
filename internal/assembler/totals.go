package assembler

import "dlmm-profit-lab/internal/domain"

// ComputeTotals recomputes a position's cumulative totals from its
// transactions. Amounts truncate at the owning token's decimals and
// quote-denominated values truncate at the quote token's decimals after every
// accumulation step, so totals never show more precision than the chain can
// settle. Called again by the live valuator after it overwrites the open
// snapshot.
func ComputeTotals(p *domain.Position) {
	dx, dy := p.DecimalsX, p.DecimalsY
	t := domain.PositionTotals{}

	for _, tx := range p.Transactions {
		if tx.Open || tx.Add {
			t.DepositsX = domain.FloorAt(t.DepositsX+tx.DepositX, dx)
			t.DepositsY = domain.FloorAt(t.DepositsY+tx.DepositY, dy)
			t.DepositsValue = domain.FloorAt(t.DepositsValue+tx.QuoteValue(tx.DepositX, tx.DepositY), dy)
		}
		if tx.Remove || tx.Close {
			t.WithdrawsX = domain.FloorAt(t.WithdrawsX+tx.WithdrawX, dx)
			t.WithdrawsY = domain.FloorAt(t.WithdrawsY+tx.WithdrawY, dy)
			t.WithdrawsValue = domain.FloorAt(t.WithdrawsValue+tx.QuoteValue(tx.WithdrawX, tx.WithdrawY), dy)
		}
		if tx.Claim {
			t.ClaimedFeesX = domain.FloorAt(t.ClaimedFeesX+tx.ClaimedFeesX, dx)
			t.ClaimedFeesY = domain.FloorAt(t.ClaimedFeesY+tx.ClaimedFeesY, dy)
			t.ClaimedFeesValue = domain.FloorAt(t.ClaimedFeesValue+tx.ClaimedFeesValue, dy)
		}
		if tx.Reward {
			t.RewardAmounts[0] += tx.RewardAmounts[0]
			t.RewardAmounts[1] += tx.RewardAmounts[1]
		}

		// The live snapshot sits on exactly one transaction; closed positions
		// carry none.
		t.UnclaimedFeesX = domain.FloorAt(t.UnclaimedFeesX+tx.UnclaimedFeesX, dx)
		t.UnclaimedFeesY = domain.FloorAt(t.UnclaimedFeesY+tx.UnclaimedFeesY, dy)
		t.UnclaimedFeesValue = domain.FloorAt(t.UnclaimedFeesValue+tx.UnclaimedFeesValue, dy)
		t.OpenBalanceX = domain.FloorAt(t.OpenBalanceX+tx.OpenBalanceX, dx)
		t.OpenBalanceY = domain.FloorAt(t.OpenBalanceY+tx.OpenBalanceY, dy)
		t.OpenBalanceValue = domain.FloorAt(t.OpenBalanceValue+tx.OpenBalanceValue, dy)
	}

	t.NetDepositsAndWithdrawsValue = domain.FloorAt(t.WithdrawsValue-t.DepositsValue, dy)
	t.ProfitLossValue = domain.FloorAt(
		t.NetDepositsAndWithdrawsValue+t.ClaimedFeesValue+t.OpenBalanceValue+t.UnclaimedFeesValue, dy)

	t.OneSided = t.DepositsX == 0 || t.DepositsY == 0
	t.NoFees = t.ClaimedFeesValue == 0 && t.UnclaimedFeesValue == 0

	// Impermanent loss can only be ruled out when the deposit was one-sided
	// and each token leg came back whole.
	netX := domain.FloorAt(t.WithdrawsX-t.DepositsX, dx)
	netY := domain.FloorAt(t.WithdrawsY-t.DepositsY, dy)
	t.NoImpermanentLoss = t.OneSided && netX >= 0 && netY >= 0

	p.Totals = t
}
