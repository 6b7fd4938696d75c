package decoder

import (
	"crypto/sha256"

	"dlmm-profit-lab/internal/domain"
)

// anchorDiscriminator returns the 8-byte anchor instruction discriminator:
// the first 8 bytes of sha256("global:" + snake_case_name).
func anchorDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// instructionNames maps every DLMM instruction we care about to its action
// kind. Instructions outside this table are discarded at the decoder
// boundary; raw names never travel further downstream.
var instructionNames = map[string]domain.ActionKind{
	"initialize_position":             domain.ActionOpen,
	"initialize_position_pda":         domain.ActionOpen,
	"initialize_position_by_operator": domain.ActionOpen,

	"add_liquidity":                      domain.ActionAdd,
	"add_liquidity2":                     domain.ActionAdd,
	"add_liquidity_by_weight":            domain.ActionAdd,
	"add_liquidity_by_strategy":          domain.ActionAdd,
	"add_liquidity_by_strategy2":         domain.ActionAdd,
	"add_liquidity_by_strategy_one_side": domain.ActionAdd,
	"add_liquidity_one_side":             domain.ActionAdd,
	"add_liquidity_one_side_precise":     domain.ActionAdd,
	"add_liquidity_one_side_precise2":    domain.ActionAdd,

	"claim_fee":  domain.ActionClaim,
	"claim_fee2": domain.ActionClaim,

	"claim_reward":  domain.ActionReward,
	"claim_reward2": domain.ActionReward,

	"remove_liquidity":           domain.ActionRemove,
	"remove_liquidity2":          domain.ActionRemove,
	"remove_liquidity_by_range":  domain.ActionRemove,
	"remove_liquidity_by_range2": domain.ActionRemove,
	"remove_all_liquidity":       domain.ActionRemove,

	"close_position":          domain.ActionClose,
	"close_position2":         domain.ActionClose,
	"close_position_if_empty": domain.ActionClose,
}

type instructionInfo struct {
	Name string
	Kind domain.ActionKind
}

// instructionTable indexes the known instructions by discriminator.
var instructionTable = func() map[[8]byte]instructionInfo {
	m := make(map[[8]byte]instructionInfo, len(instructionNames))
	for name, kind := range instructionNames {
		m[anchorDiscriminator(name)] = instructionInfo{Name: name, Kind: kind}
	}
	return m
}()

// lookupInstruction identifies an instruction by its data prefix. Returns
// false for unknown or too-short payloads.
func lookupInstruction(data []byte) (instructionInfo, bool) {
	if len(data) < 8 {
		return instructionInfo{}, false
	}
	var prefix [8]byte
	copy(prefix[:], data[:8])
	info, ok := instructionTable[prefix]
	return info, ok
}
