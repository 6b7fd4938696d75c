package decoder

import solanago "github.com/gagliardetto/solana-go"

// ResolvedAccounts are the participant addresses extracted from one
// instruction's account list.
type ResolvedAccounts struct {
	Position   string
	Pool       string
	Sender     string
	RewardMint string
}

// AccountResolver labels an instruction's accounts. The interface exists
// because account labeling cannot be recovered from the binary payload: the
// positional tables below encode the program's current account ordering and
// will need replacing when the program upgrades, without touching the rest
// of the decoder.
type AccountResolver interface {
	Resolve(name string, accounts []solanago.PublicKey) (ResolvedAccounts, bool)
}

// accountLayout holds positional indices into an instruction's account list.
// -1 marks an absent role.
type accountLayout struct {
	position   int
	pool       int
	sender     int
	rewardMint int
}

// positionalLayouts is the per-instruction account ordering of the DLMM
// program. Indices follow the program's interface descriptor.
var positionalLayouts = map[string]accountLayout{
	"initialize_position":             {position: 1, pool: 2, sender: 3, rewardMint: -1},
	"initialize_position_pda":         {position: 1, pool: 3, sender: 2, rewardMint: -1},
	"initialize_position_by_operator": {position: 1, pool: 3, sender: 2, rewardMint: -1},

	"add_liquidity":                      {position: 0, pool: 1, sender: 11, rewardMint: -1},
	"add_liquidity2":                     {position: 0, pool: 1, sender: 9, rewardMint: -1},
	"add_liquidity_by_weight":            {position: 0, pool: 1, sender: 11, rewardMint: -1},
	"add_liquidity_by_strategy":          {position: 0, pool: 1, sender: 11, rewardMint: -1},
	"add_liquidity_by_strategy2":         {position: 0, pool: 1, sender: 9, rewardMint: -1},
	"add_liquidity_by_strategy_one_side": {position: 0, pool: 1, sender: 8, rewardMint: -1},
	"add_liquidity_one_side":             {position: 0, pool: 1, sender: 8, rewardMint: -1},
	"add_liquidity_one_side_precise":     {position: 0, pool: 1, sender: 8, rewardMint: -1},
	"add_liquidity_one_side_precise2":    {position: 0, pool: 1, sender: 7, rewardMint: -1},

	"claim_fee":  {position: 1, pool: 0, sender: 4, rewardMint: -1},
	"claim_fee2": {position: 1, pool: 0, sender: 2, rewardMint: -1},

	"claim_reward":  {position: 1, pool: 0, sender: 4, rewardMint: 6},
	"claim_reward2": {position: 1, pool: 0, sender: 2, rewardMint: 4},

	"remove_liquidity":           {position: 0, pool: 1, sender: 11, rewardMint: -1},
	"remove_liquidity2":          {position: 0, pool: 1, sender: 9, rewardMint: -1},
	"remove_liquidity_by_range":  {position: 0, pool: 1, sender: 11, rewardMint: -1},
	"remove_liquidity_by_range2": {position: 0, pool: 1, sender: 9, rewardMint: -1},
	"remove_all_liquidity":       {position: 0, pool: 1, sender: 11, rewardMint: -1},

	"close_position":          {position: 0, pool: 1, sender: 4, rewardMint: -1},
	"close_position2":         {position: 0, pool: -1, sender: 1, rewardMint: -1},
	"close_position_if_empty": {position: 0, pool: -1, sender: 1, rewardMint: -1},
}

// PositionalResolver resolves accounts by hard-coded per-instruction index
// tables.
type PositionalResolver struct{}

var _ AccountResolver = PositionalResolver{}

// Resolve labels accounts by position in the instruction's account list.
// Returns false when the table has no entry for the instruction or the list
// is shorter than the table expects.
func (PositionalResolver) Resolve(name string, accounts []solanago.PublicKey) (ResolvedAccounts, bool) {
	layout, ok := positionalLayouts[name]
	if !ok {
		return ResolvedAccounts{}, false
	}

	pick := func(idx int) (string, bool) {
		if idx < 0 {
			return "", true
		}
		if idx >= len(accounts) {
			return "", false
		}
		return accounts[idx].String(), true
	}

	var out ResolvedAccounts
	var valid bool
	if out.Position, valid = pick(layout.position); !valid {
		return ResolvedAccounts{}, false
	}
	if out.Pool, valid = pick(layout.pool); !valid {
		return ResolvedAccounts{}, false
	}
	if out.Sender, valid = pick(layout.sender); !valid {
		return ResolvedAccounts{}, false
	}
	if out.RewardMint, valid = pick(layout.rewardMint); !valid {
		return ResolvedAccounts{}, false
	}
	return out, true
}
