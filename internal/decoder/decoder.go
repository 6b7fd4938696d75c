// Package decoder turns fetched Solana transactions into position actions.
// It recognizes the Meteora DLMM program's instructions, both as top-level
// instructions and wrapped inside Hawksight automation transactions, and
// scopes token movements and emitted events to the instruction that caused
// them. Anything it cannot identify is skipped, never fatal: one opaque
// instruction must not sink a whole wallet history.
package decoder

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/observability"
)

// PairSource resolves pool addresses to pair metadata.
type PairSource interface {
	Pair(ctx context.Context, address string) (domain.PairInfo, error)
}

// TokenSource resolves mint addresses to token metadata, registering a
// synthetic token when the mint is unknown to the directory.
type TokenSource interface {
	Token(ctx context.Context, mint string) (domain.TokenInfo, error)
}

// Decoder decodes DLMM position actions out of transactions.
type Decoder struct {
	resolver AccountResolver
	pairs    PairSource
	tokens   TokenSource
	log      *logrus.Logger
}

// New creates a Decoder using the positional account resolver.
func New(pairs PairSource, tokens TokenSource, log *logrus.Logger) *Decoder {
	return &Decoder{
		resolver: PositionalResolver{},
		pairs:    pairs,
		tokens:   tokens,
		log:      log,
	}
}

// WithResolver replaces the account resolver. Used by tests and kept as the
// seam for a future IDL-driven resolver.
func (d *Decoder) WithResolver(r AccountResolver) *Decoder {
	d.resolver = r
	return d
}

// DecodeTransaction extracts every DLMM position action from one transaction.
// A transaction with no recognizable actions yields an empty slice and no
// error; only a malformed envelope is an error.
func (d *Decoder) DecodeTransaction(ctx context.Context, res *rpc.GetTransactionResult) ([]*domain.DecodedAction, error) {
	if res == nil || res.Meta == nil || res.Transaction == nil {
		return nil, nil
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction envelope: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return nil, fmt.Errorf("transaction has no signatures")
	}

	keys := accountKeys(tx, res.Meta)
	inner := innerByIndex(res.Meta)
	hawksight := containsKey(keys, HawksightProgramID)

	var ts time.Time
	if res.BlockTime != nil {
		ts = res.BlockTime.Time()
	}
	base := baseAction{
		timestamp: ts,
		slot:      res.Slot,
		signature: tx.Signatures[0].String(),
		hawksight: hawksight,
	}

	var actions []*domain.DecodedAction
	for outerIdx, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			continue
		}
		program := keys[inst.ProgramIDIndex]
		group := inner[outerIdx]

		switch {
		case program.Equals(DLMMProgramID):
			if act := d.decodeInstruction(ctx, base, keys, inst, group); act != nil {
				actions = append(actions, act)
			}
		case program.Equals(HawksightProgramID):
			actions = append(actions, d.decodeWrapped(ctx, base, keys, group)...)
		}
	}
	return actions, nil
}

// baseAction carries the per-transaction fields shared by every action the
// transaction produces.
type baseAction struct {
	timestamp time.Time
	slot      uint64
	signature string
	hawksight bool
}

// decodeInstruction decodes one DLMM instruction. followers holds the inner
// instructions attributable to it: the instruction's token movements and its
// emitted event live there. Returns nil when the instruction is unknown or
// its account list does not match the layout table.
func (d *Decoder) decodeInstruction(ctx context.Context, base baseAction, keys []solanago.PublicKey, inst solanago.CompiledInstruction, followers []solanago.CompiledInstruction) *domain.DecodedAction {
	info, ok := lookupInstruction(inst.Data)
	if !ok {
		observability.DefaultMetrics.DecodeSkips.WithLabelValues("unknown_instruction").Inc()
		return nil
	}

	accounts := make([]solanago.PublicKey, 0, len(inst.Accounts))
	for _, idx := range inst.Accounts {
		if int(idx) >= len(keys) {
			d.log.WithFields(logrus.Fields{
				"signature":   base.signature,
				"instruction": info.Name,
			}).Debug("instruction references account outside key table, skipping")
			observability.DefaultMetrics.DecodeSkips.WithLabelValues("key_table").Inc()
			return nil
		}
		accounts = append(accounts, keys[idx])
	}

	resolved, ok := d.resolver.Resolve(info.Name, accounts)
	if !ok {
		d.log.WithFields(logrus.Fields{
			"signature":   base.signature,
			"instruction": info.Name,
		}).Debug("account list does not match known layout, skipping")
		observability.DefaultMetrics.DecodeSkips.WithLabelValues("layout").Inc()
		return nil
	}

	act := &domain.DecodedAction{
		Timestamp:  base.timestamp,
		Slot:       base.slot,
		Signature:  base.signature,
		Position:   resolved.Position,
		Pool:       resolved.Pool,
		Sender:     resolved.Sender,
		Kind:       info.Kind,
		RewardMint: resolved.RewardMint,
		Hawksight:  base.hawksight,
	}

	for _, follower := range followers {
		if fi, ok := lookupFollowerProgram(keys, follower); ok && fi.Equals(DLMMProgramID) {
			if ev, ok := parseLiquidityEvent([]byte(follower.Data)); ok && act.Price == nil {
				act.Price = d.eventPrice(ctx, resolved.Pool, ev)
			}
			continue
		}
		if tr, ok := parseTransferChecked(keys, follower); ok {
			act.Transfers = append(act.Transfers, tr)
		}
	}
	return act
}

// decodeWrapped scans a Hawksight outer instruction's inner group for DLMM
// instructions. Each wrapped instruction owns the inner instructions that
// follow it up to the next wrapped one.
func (d *Decoder) decodeWrapped(ctx context.Context, base baseAction, keys []solanago.PublicKey, group []solanago.CompiledInstruction) []*domain.DecodedAction {
	var actions []*domain.DecodedAction
	for i, inst := range group {
		program, ok := lookupFollowerProgram(keys, inst)
		if !ok || !program.Equals(DLMMProgramID) {
			continue
		}
		if _, known := lookupInstruction(inst.Data); !known {
			continue
		}

		end := len(group)
		for j := i + 1; j < end; j++ {
			p, ok := lookupFollowerProgram(keys, group[j])
			if ok && p.Equals(DLMMProgramID) {
				if _, known := lookupInstruction(group[j].Data); known {
					end = j
					break
				}
			}
		}

		if act := d.decodeInstruction(ctx, base, keys, inst, group[i+1:end]); act != nil {
			actions = append(actions, act)
		}
	}
	return actions
}

// eventPrice converts an event's active bin id to a price using the pool's
// bin step and mint decimals. Metadata lookup failures drop the price rather
// than the action; the assembler back-fills it later.
func (d *Decoder) eventPrice(ctx context.Context, pool string, ev liquidityEvent) *float64 {
	pair, err := d.pairs.Pair(ctx, pool)
	if err != nil {
		d.log.WithField("pool", pool).WithError(err).Warn("pair metadata unavailable, price dropped")
		return nil
	}
	tokenX, err := d.tokens.Token(ctx, pair.MintX)
	if err != nil {
		d.log.WithField("mint", pair.MintX).WithError(err).Warn("token metadata unavailable, price dropped")
		return nil
	}
	tokenY, err := d.tokens.Token(ctx, pair.MintY)
	if err != nil {
		d.log.WithField("mint", pair.MintY).WithError(err).Warn("token metadata unavailable, price dropped")
		return nil
	}
	p := domain.BinPrice(ev.ActiveBinID, pair.BinStep, tokenX.Decimals, tokenY.Decimals)
	return &p
}

// accountKeys flattens the static key table plus the keys loaded through
// address lookup tables, in the order instruction indexes reference them.
func accountKeys(tx *solanago.Transaction, meta *rpc.TransactionMeta) []solanago.PublicKey {
	keys := make([]solanago.PublicKey, 0, len(tx.Message.AccountKeys)+len(meta.LoadedAddresses.Writable)+len(meta.LoadedAddresses.ReadOnly))
	keys = append(keys, tx.Message.AccountKeys...)
	keys = append(keys, meta.LoadedAddresses.Writable...)
	keys = append(keys, meta.LoadedAddresses.ReadOnly...)
	return keys
}

// innerByIndex groups the inner instructions by their outer instruction
// index. The rpc package carries its own compiled-instruction type; the
// fields are converted here so the rest of the decoder deals with exactly one
// representation.
func innerByIndex(meta *rpc.TransactionMeta) map[int][]solanago.CompiledInstruction {
	out := make(map[int][]solanago.CompiledInstruction, len(meta.InnerInstructions))
	for _, in := range meta.InnerInstructions {
		for _, inst := range in.Instructions {
			out[int(in.Index)] = append(out[int(in.Index)], solanago.CompiledInstruction{
				ProgramIDIndex: inst.ProgramIDIndex,
				Accounts:       inst.Accounts,
				Data:           inst.Data,
			})
		}
	}
	return out
}

func lookupFollowerProgram(keys []solanago.PublicKey, inst solanago.CompiledInstruction) (solanago.PublicKey, bool) {
	if int(inst.ProgramIDIndex) >= len(keys) {
		return solanago.PublicKey{}, false
	}
	return keys[inst.ProgramIDIndex], true
}

func containsKey(keys []solanago.PublicKey, target solanago.PublicKey) bool {
	for _, k := range keys {
		if k.Equals(target) {
			return true
		}
	}
	return false
}
