// Package valuation prices still-open positions from live on-chain state.
// It reads the position, its pool and the bin arrays the position spans,
// computes the current token balances and unclaimed fees, and writes them
// onto the position's most recent transaction as the open snapshot. The pass
// is idempotent: running it again overwrites the same snapshot.
package valuation

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/assembler"
	"dlmm-profit-lab/internal/domain"
)

// ChainReader is the slice of the access layer the valuator needs.
type ChainReader interface {
	PositionAccounts(ctx context.Context, keys ...solanago.PublicKey) ([]*rpc.Account, error)
}

// Valuator values open positions against live chain state.
type Valuator struct {
	chain ChainReader
	log   *logrus.Logger
	now   func() time.Time
}

// New creates a Valuator.
func New(chain ChainReader, log *logrus.Logger) *Valuator {
	return &Valuator{chain: chain, log: log, now: time.Now}
}

// Value snapshots one open position's live balances and unclaimed fees onto
// its most recent transaction, recomputes the totals, and stamps the
// valuation time. Closed positions are left untouched. A position whose
// on-chain account has disappeared since the history was fetched is treated
// as closed.
func (v *Valuator) Value(ctx context.Context, p *domain.Position) error {
	if p.Closed {
		return nil
	}

	posKey, err := solanago.PublicKeyFromBase58(p.Address)
	if err != nil {
		return fmt.Errorf("position address %q: %w", p.Address, err)
	}
	poolKey, err := solanago.PublicKeyFromBase58(p.Pool)
	if err != nil {
		return fmt.Errorf("pool address %q: %w", p.Pool, err)
	}

	accounts, err := v.chain.PositionAccounts(ctx, posKey, poolKey)
	if err != nil {
		return fmt.Errorf("fetch position state %s: %w", p.Address, err)
	}
	if len(accounts) != 2 || accounts[1] == nil {
		return fmt.Errorf("fetch position state %s: pool account missing", p.Address)
	}
	if accounts[0] == nil {
		v.log.WithField("position", p.Address).Info("position account gone, marking closed")
		p.Closed = true
		return nil
	}

	var pos positionAccount
	if err := decodeAccount(accounts[0].Data.GetBinary(), positionV2Disc, "position", &pos); err != nil {
		return fmt.Errorf("position %s: %w", p.Address, err)
	}
	var pool lbPairAccount
	if err := decodeAccount(accounts[1].Data.GetBinary(), lbPairDisc, "lb pair", &pool); err != nil {
		return fmt.Errorf("position %s: %w", p.Address, err)
	}
	if !pos.LbPair.Equals(poolKey) {
		return fmt.Errorf("position %s: account belongs to pool %s, expected %s", p.Address, pos.LbPair, p.Pool)
	}
	// The per-bin share and fee arrays have one slot per bin of the range.
	if pos.LowerBinID > pos.UpperBinID || int(pos.UpperBinID)-int(pos.LowerBinID) >= len(pos.LiquidityShares) {
		return fmt.Errorf("position %s: bin range [%d, %d] exceeds account capacity %d", p.Address, pos.LowerBinID, pos.UpperBinID, len(pos.LiquidityShares))
	}

	snap, err := v.computeSnapshot(ctx, poolKey, &pos)
	if err != nil {
		return fmt.Errorf("position %s: %w", p.Address, err)
	}
	v.applySnapshot(p, &pool, snap)
	return nil
}

// snapshot carries raw live amounts in the pool's native X/Y orientation.
type snapshot struct {
	amountX uint64
	amountY uint64
	feeX    uint64
	feeY    uint64
}

// computeSnapshot walks the position's bin range and sums its pro-rata bin
// balances and claimable fees.
func (v *Valuator) computeSnapshot(ctx context.Context, poolKey solanago.PublicKey, pos *positionAccount) (snapshot, error) {
	lowerArray := binArrayIndex(pos.LowerBinID)
	upperArray := binArrayIndex(pos.UpperBinID)

	keys := make([]solanago.PublicKey, 0, upperArray-lowerArray+1)
	for idx := lowerArray; idx <= upperArray; idx++ {
		addr, err := binArrayAddress(poolKey, idx)
		if err != nil {
			return snapshot{}, err
		}
		keys = append(keys, addr)
	}

	accounts, err := v.chain.PositionAccounts(ctx, keys...)
	if err != nil {
		return snapshot{}, fmt.Errorf("fetch bin arrays: %w", err)
	}

	arrays := map[int64]*binArrayAccount{}
	for i, acc := range accounts {
		if acc == nil {
			// Never-initialized range; those bins hold nothing.
			continue
		}
		var arr binArrayAccount
		if err := decodeAccount(acc.Data.GetBinary(), binArrayDisc, "bin array", &arr); err != nil {
			return snapshot{}, err
		}
		arrays[lowerArray+int64(i)] = &arr
	}

	var snap snapshot
	for binID := pos.LowerBinID; binID <= pos.UpperBinID; binID++ {
		slot := int(binID - pos.LowerBinID)
		share := pos.LiquidityShares[slot]

		arr, ok := arrays[binArrayIndex(binID)]
		if !ok {
			continue
		}
		b := &arr.Bins[binOffset(binID)]

		snap.amountX += shareAmount(share, b.LiquiditySupply, b.AmountX)
		snap.amountY += shareAmount(share, b.LiquiditySupply, b.AmountY)

		fees := pos.FeeInfos[slot]
		snap.feeX += accruedFee(share, b.FeeAmountXPerTokenStored, fees.FeeXPerTokenComplete, fees.FeeXPending)
		snap.feeY += accruedFee(share, b.FeeAmountYPerTokenStored, fees.FeeYPerTokenComplete, fees.FeeYPending)
	}
	return snap, nil
}

// applySnapshot overwrites the open snapshot on the position's most recent
// transaction and refreshes totals. Amounts arrive in the pool's native
// orientation and are swapped for inverted positions.
func (v *Valuator) applySnapshot(p *domain.Position, pool *lbPairAccount, snap snapshot) {
	tx := p.Transactions[len(p.Transactions)-1]

	decX, decY := p.DecimalsX, p.DecimalsY
	if p.Inverted {
		decX, decY = decY, decX
	}
	balX := domain.RawToUI(snap.amountX, decX)
	balY := domain.RawToUI(snap.amountY, decY)
	feeX := domain.RawToUI(snap.feeX, decX)
	feeY := domain.RawToUI(snap.feeY, decY)
	if p.Inverted {
		balX, balY = balY, balX
		feeX, feeY = feeY, feeX
	}

	tx.OpenBalanceX, tx.OpenBalanceY = balX, balY
	tx.UnclaimedFeesX, tx.UnclaimedFeesY = feeX, feeY

	// The live price beats any back-filled estimate on the snapshot record.
	price := domain.BinPrice(pool.ActiveID, pool.BinStep, decX, decY)
	if p.Inverted && price != 0 {
		price = 1 / price
	}
	tx.Price = &price
	tx.EstimatedPrice = false
	tx.RecomputeValues()

	now := v.now()
	p.ClosedAt = now
	assembler.ComputeTotals(p)

	v.log.WithFields(logrus.Fields{
		"position":      p.Address,
		"openBalance":   tx.OpenBalanceValue,
		"unclaimedFees": tx.UnclaimedFeesValue,
	}).Debug("open position valued")
}

// binOffset locates a bin inside its array.
func binOffset(binID int32) int {
	off := int(int64(binID) - binArrayIndex(binID)*binsPerArray)
	return off
}
