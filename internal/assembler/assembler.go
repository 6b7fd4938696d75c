// Package assembler folds decoded position actions into per-position
// transaction records and assembles them into positions. It owns quote-side
// normalization (which pool token the record treats as quote), price
// back-fill for transactions that emitted no price event, and the position's
// cumulative totals.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/domain"
)

// PairSource resolves pool addresses to pair metadata.
type PairSource interface {
	Pair(ctx context.Context, address string) (domain.PairInfo, error)
}

// TokenSource resolves mint addresses to token metadata.
type TokenSource interface {
	Token(ctx context.Context, mint string) (domain.TokenInfo, error)
}

// Assembler accumulates decoded actions across stream batches and builds the
// final position set. Not safe for concurrent use; the analyzer feeds it from
// a single goroutine.
type Assembler struct {
	pairs  PairSource
	tokens TokenSource
	log    *logrus.Logger

	// position address -> signature -> folded record
	records map[string]map[string]*domain.PositionTransaction
}

// New creates an empty Assembler.
func New(pairs PairSource, tokens TokenSource, log *logrus.Logger) *Assembler {
	return &Assembler{
		pairs:   pairs,
		tokens:  tokens,
		log:     log,
		records: map[string]map[string]*domain.PositionTransaction{},
	}
}

// Ingest folds one batch of decoded actions into the accumulated records.
// Several actions sharing a (position, signature) pair merge into one record:
// flags OR together, token deltas sum, the first observed price wins.
func (a *Assembler) Ingest(ctx context.Context, actions []*domain.DecodedAction) error {
	for _, act := range actions {
		tx, err := a.record(ctx, act)
		if err != nil {
			return err
		}
		a.fold(tx, act)
	}
	return nil
}

// PositionCount reports how many distinct positions have been seen so far.
func (a *Assembler) PositionCount() int {
	return len(a.records)
}

// Build assembles the accumulated records into positions: quote-side
// normalization, price back-fill, totals. The assembler can keep ingesting
// afterwards; Build reads but does not consume.
func (a *Assembler) Build(ctx context.Context) ([]*domain.Position, error) {
	positions := make([]*domain.Position, 0, len(a.records))
	for addr, bySig := range a.records {
		txs := make([]*domain.PositionTransaction, 0, len(bySig))
		for _, tx := range bySig {
			txs = append(txs, tx.Clone())
		}

		p, err := domain.NewPosition(txs)
		if err != nil {
			return nil, fmt.Errorf("assemble position %s: %w", addr, err)
		}

		for _, tx := range p.Transactions {
			tx.RecomputeValues()
		}
		normalizeQuoteSide(p)
		positions = append(positions, p)
	}

	// Prices observed anywhere on a token pair back-fill every position of
	// that pair, so a claim-only position still gets valued from a priced
	// sibling.
	timelines := observedPrices(positions)
	for _, p := range positions {
		backfillPrices(p, timelines[domain.PairGroupKey(p.MintX, p.MintY)])
		ComputeTotals(p)
	}
	return positions, nil
}

// record returns the folded record for the action's (position, signature)
// pair, creating it with pair and token metadata on first sight.
func (a *Assembler) record(ctx context.Context, act *domain.DecodedAction) (*domain.PositionTransaction, error) {
	bySig, ok := a.records[act.Position]
	if !ok {
		bySig = map[string]*domain.PositionTransaction{}
		a.records[act.Position] = bySig
	}
	if tx, ok := bySig[act.Signature]; ok {
		return tx, nil
	}

	pair, err := a.pairs.Pair(ctx, act.Pool)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", act.Position, err)
	}
	tokenX, err := a.tokens.Token(ctx, pair.MintX)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", act.Position, err)
	}
	tokenY, err := a.tokens.Token(ctx, pair.MintY)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", act.Position, err)
	}

	tx := &domain.PositionTransaction{
		Signature: act.Signature,
		Position:  act.Position,
		Pool:      act.Pool,
		Sender:    act.Sender,
		Timestamp: act.Timestamp,
		Slot:      act.Slot,
		PairName:  domain.PairNameFor(tokenX.Symbol, tokenY.Symbol),
		MintX:     pair.MintX,
		MintY:     pair.MintY,
		SymbolX:   tokenX.Symbol,
		SymbolY:   tokenY.Symbol,
		DecimalsX: tokenX.Decimals,
		DecimalsY: tokenY.Decimals,
	}
	bySig[act.Signature] = tx
	return tx, nil
}

// fold applies one action's flag, price and token deltas to its record.
func (a *Assembler) fold(tx *domain.PositionTransaction, act *domain.DecodedAction) {
	if act.Hawksight {
		tx.Hawksight = true
	}
	if tx.Price == nil && act.Price != nil {
		p := *act.Price
		tx.Price = &p
	}

	switch act.Kind {
	case domain.ActionOpen:
		tx.Open = true
		a.foldPairTransfers(tx, act, &tx.DepositX, &tx.DepositY)
	case domain.ActionAdd:
		tx.Add = true
		a.foldPairTransfers(tx, act, &tx.DepositX, &tx.DepositY)
	case domain.ActionRemove:
		tx.Remove = true
		a.foldPairTransfers(tx, act, &tx.WithdrawX, &tx.WithdrawY)
	case domain.ActionClaim:
		tx.Claim = true
		a.foldPairTransfers(tx, act, &tx.ClaimedFeesX, &tx.ClaimedFeesY)
	case domain.ActionReward:
		tx.Reward = true
		a.foldReward(tx, act)
	case domain.ActionClose:
		tx.Close = true
		// A close may sweep remaining funds; the program withdraws them.
		a.foldPairTransfers(tx, act, &tx.WithdrawX, &tx.WithdrawY)
	}
}

// foldPairTransfers adds the action's pool-token movements to the given X/Y
// accumulators. Movements of foreign mints inside a position instruction are
// dropped loudly; they indicate a layout we do not understand.
func (a *Assembler) foldPairTransfers(tx *domain.PositionTransaction, act *domain.DecodedAction, x, y *float64) {
	for _, tr := range act.Transfers {
		switch tr.Mint {
		case tx.MintX:
			*x += domain.RawToUI(tr.Amount, tr.Decimals)
		case tx.MintY:
			*y += domain.RawToUI(tr.Amount, tr.Decimals)
		default:
			a.log.WithFields(logrus.Fields{
				"signature": act.Signature,
				"mint":      tr.Mint,
				"kind":      act.Kind.String(),
			}).Warn("transfer of a mint outside the pool pair, dropped")
		}
	}
}

// foldReward accumulates a reward claim into one of the record's two reward
// slots, keyed by reward mint. The DLMM program funds at most two reward
// tokens per pool.
func (a *Assembler) foldReward(tx *domain.PositionTransaction, act *domain.DecodedAction) {
	if act.RewardMint == "" {
		return
	}
	slot := -1
	for i, mint := range tx.RewardMints {
		if mint == act.RewardMint {
			slot = i
			break
		}
		if mint == "" {
			tx.RewardMints[i] = act.RewardMint
			tx.RewardSymbols[i] = act.RewardMint
			slot = i
			break
		}
	}
	if slot < 0 {
		a.log.WithFields(logrus.Fields{
			"signature": act.Signature,
			"mint":      act.RewardMint,
		}).Warn("more than two reward mints on one position, dropped")
		return
	}
	for _, tr := range act.Transfers {
		if tr.Mint == act.RewardMint {
			tx.RewardAmounts[slot] += domain.RawToUI(tr.Amount, tr.Decimals)
		}
	}
}

// normalizeQuoteSide inverts the position's transactions when the preferred
// quote token currently sits on the X side, then copies the settled
// orientation onto the position.
func normalizeQuoteSide(p *domain.Position) {
	if domain.PreferredQuote(p.MintX, p.MintY) == p.MintX {
		for _, tx := range p.Transactions {
			tx.Invert()
		}
	}

	first := p.Transactions[0]
	p.PairName = first.PairName
	p.MintX, p.MintY = first.MintX, first.MintY
	p.SymbolX, p.SymbolY = first.SymbolX, first.SymbolY
	p.DecimalsX, p.DecimalsY = first.DecimalsX, first.DecimalsY
	p.Inverted = first.Inverted

	// Reward metadata may first appear on a later transaction.
	for _, tx := range p.Transactions {
		for i, mint := range tx.RewardMints {
			if mint != "" && p.RewardMints[i] == "" {
				p.RewardMints[i] = mint
				p.RewardSymbols[i] = tx.RewardSymbols[i]
			}
		}
	}
}

// pricePoint is one directly observed price on a pair's shared timeline.
type pricePoint struct {
	ts    time.Time
	price float64
}

// observedPrices collects every observed price into a per-pair-group
// timeline, sorted by time. Positions on the same token pair share one
// timeline, independent of position address and of which side each pool
// calls X.
func observedPrices(positions []*domain.Position) map[string][]pricePoint {
	out := map[string][]pricePoint{}
	for _, p := range positions {
		key := domain.PairGroupKey(p.MintX, p.MintY)
		for _, tx := range p.Transactions {
			if tx.Price != nil && !tx.EstimatedPrice {
				out[key] = append(out[key], pricePoint{ts: tx.Timestamp, price: *tx.Price})
			}
		}
	}
	for _, points := range out {
		sort.Slice(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })
	}
	return out
}

// backfillPrices gives every unpriced transaction the nearest earlier price
// observed on the position's token pair, falling back to the nearest later
// one at the start of the history. Back-filled prices are estimates and are
// marked as such.
func backfillPrices(p *domain.Position, timeline []pricePoint) {
	for _, tx := range p.Transactions {
		if tx.Price != nil {
			continue
		}
		v, ok := nearestPrice(timeline, tx.Timestamp)
		if !ok {
			continue
		}
		tx.Price = &v
		tx.EstimatedPrice = true
		tx.RecomputeValues()
	}
}

// nearestPrice picks the latest observation at or before ts, else the
// earliest one after it.
func nearestPrice(timeline []pricePoint, ts time.Time) (float64, bool) {
	if len(timeline) == 0 {
		return 0, false
	}
	idx := sort.Search(len(timeline), func(i int) bool { return timeline[i].ts.After(ts) })
	if idx > 0 {
		return timeline[idx-1].price, true
	}
	return timeline[0].price, true
}
