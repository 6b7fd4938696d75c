// Package enrichment overlays USD valuations from the index API onto
// assembled positions. Each position's four event histories are fetched
// concurrently and matched to transactions by signature. Coverage gaps do not
// fail the run: the position is flagged, keeps its native-quote numbers, and
// is excluded from USD aggregates only.
package enrichment

import (
	"context"

	"github.com/AlekSi/pointer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/meteora"
)

// positionConcurrency bounds how many positions enrich in parallel.
const positionConcurrency = 4

// EventAPI is the slice of the index API the enricher needs.
type EventAPI interface {
	Deposits(ctx context.Context, position string) ([]meteora.PositionEvent, error)
	Withdrawals(ctx context.Context, position string) ([]meteora.PositionEvent, error)
	ClaimFees(ctx context.Context, position string) ([]meteora.PositionEvent, error)
	ClaimRewards(ctx context.Context, position string) ([]meteora.RewardEvent, error)
	SpotPrice(ctx context.Context, mint string) (float64, error)
}

// Enricher fills the USD fields of positions and their transactions.
type Enricher struct {
	api EventAPI
	log *logrus.Logger
}

// New creates an Enricher.
func New(api EventAPI, log *logrus.Logger) *Enricher {
	return &Enricher{api: api, log: log}
}

// Enrich annotates every position with USD amounts. Only a canceled context
// is an error; API failures flag the affected position and move on.
func (e *Enricher) Enrich(ctx context.Context, positions []*domain.Position) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(positionConcurrency)
	for _, p := range positions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.enrichPosition(gctx, p)
			return nil
		})
	}
	return g.Wait()
}

// history is one position's USD event coverage keyed by signature.
type history struct {
	deposits  map[string]meteora.PositionEvent
	withdraws map[string]meteora.PositionEvent
	claims    map[string]meteora.PositionEvent
	rewards   map[string]float64
}

func (e *Enricher) enrichPosition(ctx context.Context, p *domain.Position) {
	h, ok := e.fetchHistory(ctx, p)
	if !ok {
		p.HasAPIError = true
		p.USD = nil
		return
	}

	for _, tx := range p.Transactions {
		e.applyEvents(p, tx, h)
	}
	if !p.Closed {
		e.valueOpenSnapshot(ctx, p)
	}

	if p.HasAPIError {
		p.USD = nil
		return
	}
	computeUSDTotals(p)
}

// fetchHistory pulls the four event endpoints concurrently.
func (e *Enricher) fetchHistory(ctx context.Context, p *domain.Position) (*history, bool) {
	var (
		deposits, withdraws, claims []meteora.PositionEvent
		rewards                     []meteora.RewardEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { deposits, err = e.api.Deposits(gctx, p.Address); return })
	g.Go(func() (err error) { withdraws, err = e.api.Withdrawals(gctx, p.Address); return })
	g.Go(func() (err error) { claims, err = e.api.ClaimFees(gctx, p.Address); return })
	g.Go(func() (err error) { rewards, err = e.api.ClaimRewards(gctx, p.Address); return })
	if err := g.Wait(); err != nil {
		e.log.WithField("position", p.Address).WithError(err).Warn("event history unavailable, flagging position")
		return nil, false
	}

	h := &history{
		deposits:  indexEvents(deposits),
		withdraws: indexEvents(withdraws),
		claims:    indexEvents(claims),
		rewards:   map[string]float64{},
	}
	for _, r := range rewards {
		h.rewards[r.TxID] += r.TokenUSDAmount
	}
	return h, true
}

// indexEvents keys events by signature, summing repeats (one transaction can
// touch several bins and produce several index rows).
func indexEvents(events []meteora.PositionEvent) map[string]meteora.PositionEvent {
	out := make(map[string]meteora.PositionEvent, len(events))
	for _, ev := range events {
		acc := out[ev.TxID]
		acc.TxID = ev.TxID
		acc.TokenXAmount += ev.TokenXAmount
		acc.TokenYAmount += ev.TokenYAmount
		acc.TokenXUSDAmount += ev.TokenXUSDAmount
		acc.TokenYUSDAmount += ev.TokenYUSDAmount
		out[ev.TxID] = acc
	}
	return out
}

// applyEvents matches one transaction against the position's event coverage.
// The index reports amounts in the pool's native orientation; inverted
// positions swap the X/Y assignment.
func (e *Enricher) applyEvents(p *domain.Position, tx *domain.PositionTransaction, h *history) {
	if tx.Open || tx.Add {
		if ev, ok := h.deposits[tx.Signature]; ok {
			usdX, usdY := orient(p, ev.TokenXUSDAmount, ev.TokenYUSDAmount)
			tx.USDDepositX, tx.USDDepositY = pointer.ToFloat64(usdX), pointer.ToFloat64(usdY)
			e.checkCounterpart(p, tx.Signature, tx.DepositX, usdX, tx.DepositY, usdY)
		} else if tx.DepositX != 0 || tx.DepositY != 0 {
			e.flag(p, tx.Signature, "deposit missing from index")
		}
	}
	if tx.Remove || tx.Close {
		if ev, ok := h.withdraws[tx.Signature]; ok {
			usdX, usdY := orient(p, ev.TokenXUSDAmount, ev.TokenYUSDAmount)
			tx.USDWithdrawX, tx.USDWithdrawY = pointer.ToFloat64(usdX), pointer.ToFloat64(usdY)
			e.checkCounterpart(p, tx.Signature, tx.WithdrawX, usdX, tx.WithdrawY, usdY)
		} else if tx.WithdrawX != 0 || tx.WithdrawY != 0 {
			e.flag(p, tx.Signature, "withdrawal missing from index")
		}
	}
	if tx.Claim {
		if ev, ok := h.claims[tx.Signature]; ok {
			usdX, usdY := orient(p, ev.TokenXUSDAmount, ev.TokenYUSDAmount)
			tx.USDClaimedFeesX, tx.USDClaimedFeesY = pointer.ToFloat64(usdX), pointer.ToFloat64(usdY)
			e.checkCounterpart(p, tx.Signature, tx.ClaimedFeesX, usdX, tx.ClaimedFeesY, usdY)
		} else if tx.ClaimedFeesX != 0 || tx.ClaimedFeesY != 0 {
			e.flag(p, tx.Signature, "fee claim missing from index")
		}
	}
	if tx.Reward {
		if usd, ok := h.rewards[tx.Signature]; ok {
			tx.USDRewards = pointer.ToFloat64(usd)
		} else if tx.RewardAmounts[0] != 0 || tx.RewardAmounts[1] != 0 {
			e.flag(p, tx.Signature, "reward claim missing from index")
		}
	}
}

// valueOpenSnapshot prices the open balance and unclaimed fees of a live
// position at current spot prices.
func (e *Enricher) valueOpenSnapshot(ctx context.Context, p *domain.Position) {
	tx := p.Transactions[len(p.Transactions)-1]
	if tx.OpenBalanceX == 0 && tx.OpenBalanceY == 0 && tx.UnclaimedFeesX == 0 && tx.UnclaimedFeesY == 0 {
		return
	}

	spotX, errX := e.api.SpotPrice(ctx, p.MintX)
	spotY, errY := e.api.SpotPrice(ctx, p.MintY)
	if errX != nil || errY != nil {
		e.log.WithField("position", p.Address).Warn("spot price unavailable, flagging position")
		p.HasAPIError = true
		return
	}
	if (spotX == 0 && (tx.OpenBalanceX != 0 || tx.UnclaimedFeesX != 0)) ||
		(spotY == 0 && (tx.OpenBalanceY != 0 || tx.UnclaimedFeesY != 0)) {
		e.flag(p, tx.Signature, "spot price unknown for held token")
		return
	}

	tx.USDOpenBalance = pointer.ToFloat64(tx.OpenBalanceX*spotX + tx.OpenBalanceY*spotY)
	tx.USDUnclaimedFees = pointer.ToFloat64(tx.UnclaimedFeesX*spotX + tx.UnclaimedFeesY*spotY)
}

// checkCounterpart flags a nonzero native delta whose USD counterpart came
// back zero: the index saw the event but had no price for it.
func (e *Enricher) checkCounterpart(p *domain.Position, sig string, nativeX, usdX, nativeY, usdY float64) {
	if (nativeX != 0 && usdX == 0) || (nativeY != 0 && usdY == 0) {
		e.flag(p, sig, "native delta without USD counterpart")
	}
}

func (e *Enricher) flag(p *domain.Position, sig, reason string) {
	if !p.HasAPIError {
		e.log.WithFields(logrus.Fields{
			"position":  p.Address,
			"signature": sig,
			"reason":    reason,
		}).Warn("incomplete USD coverage")
	}
	p.HasAPIError = true
}

// orient swaps the index's native X/Y reporting onto an inverted position.
func orient(p *domain.Position, x, y float64) (float64, float64) {
	if p.Inverted {
		return y, x
	}
	return x, y
}

// computeUSDTotals rolls the per-transaction USD amounts into position
// totals, gated by the same action flags as the native totals.
func computeUSDTotals(p *domain.Position) {
	usd := &domain.USDTotals{}
	for _, tx := range p.Transactions {
		if tx.Open || tx.Add {
			usd.Deposits += deref(tx.USDDepositX) + deref(tx.USDDepositY)
		}
		if tx.Remove || tx.Close {
			usd.Withdraws += deref(tx.USDWithdrawX) + deref(tx.USDWithdrawY)
		}
		if tx.Claim {
			usd.ClaimedFees += deref(tx.USDClaimedFeesX) + deref(tx.USDClaimedFeesY)
		}
		if tx.Reward {
			usd.Rewards += deref(tx.USDRewards)
		}
		usd.UnclaimedFees += deref(tx.USDUnclaimedFees)
		usd.OpenBalance += deref(tx.USDOpenBalance)
	}
	usd.NetDepositsAndWithdraws = usd.Withdraws - usd.Deposits
	usd.ProfitLoss = usd.NetDepositsAndWithdraws + usd.ClaimedFees + usd.OpenBalance + usd.UnclaimedFees
	p.USD = usd
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
