package domain

import "time"

// ActionKind is the closed set of position actions the decoder emits.
// Raw instruction names never leave the decoder boundary.
type ActionKind int

const (
	ActionOpen ActionKind = iota
	ActionAdd
	ActionClaim
	ActionReward
	ActionRemove
	ActionClose
)

// String returns the lower-case action name.
func (k ActionKind) String() string {
	switch k {
	case ActionOpen:
		return "open"
	case ActionAdd:
		return "add"
	case ActionClaim:
		return "claim"
	case ActionReward:
		return "reward"
	case ActionRemove:
		return "remove"
	case ActionClose:
		return "close"
	default:
		return "unknown"
	}
}

// TokenTransfer is one transferChecked effect scoped to a decoded instruction.
type TokenTransfer struct {
	Mint     string
	Amount   uint64
	Decimals uint8
}

// DecodedAction is the effect of one position instruction within a
// transaction. Immutable once created; several actions may share a signature
// (multiple instructions per transaction) or a position (multiple
// transactions per position).
type DecodedAction struct {
	Timestamp time.Time
	Slot      uint64
	Signature string

	Position string
	Pool     string
	Sender   string

	Kind      ActionKind
	Transfers []TokenTransfer

	// Price observed from the emitted AddLiquidity/RemoveLiquidity event,
	// nil for action kinds that emit no price.
	Price *float64

	// RewardMint is set for reward claims only.
	RewardMint string

	// Hawksight marks transactions routed through the wrapper program.
	Hawksight bool
}
