package valuation

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"dlmm-profit-lab/internal/decoder"
)

// binsPerArray is the fixed bin count of one bin-array account, which is also
// the share-slot count of a position account.
const binsPerArray = 70

// lbPairAccount is the pool account, truncated after the reserve keys; the
// valuator needs nothing past them. The two leading parameter blocks are
// opaque 32-byte structs.
type lbPairAccount struct {
	Parameters  [32]byte
	VParameters [32]byte
	BumpSeed    [1]byte
	BinStepSeed [2]byte
	PairType    uint8
	ActiveID    int32
	BinStep     uint16
	Status      uint8
	Reserved    [5]byte
	TokenXMint  solanago.PublicKey
	TokenYMint  solanago.PublicKey
	ReserveX    solanago.PublicKey
	ReserveY    solanago.PublicKey
}

// userRewardInfo mirrors the per-slot reward bookkeeping of a position.
type userRewardInfo struct {
	RewardPerTokenCompletes [2]bin.Uint128
	RewardPendings          [2]uint64
}

// feeInfo mirrors the per-slot fee bookkeeping of a position. The per-token
// counters are Q64.64 fixed point.
type feeInfo struct {
	FeeXPerTokenComplete bin.Uint128
	FeeYPerTokenComplete bin.Uint128
	FeeXPending          uint64
	FeeYPending          uint64
}

// positionAccount is the position state account, truncated after the fields
// the valuator reads.
type positionAccount struct {
	LbPair          solanago.PublicKey
	Owner           solanago.PublicKey
	LiquidityShares [binsPerArray]bin.Uint128
	RewardInfos     [binsPerArray]userRewardInfo
	FeeInfos        [binsPerArray]feeInfo
	LowerBinID      int32
	UpperBinID      int32
}

// binState is one bin of a bin-array account, truncated after the fee
// counters.
type binState struct {
	AmountX                  uint64
	AmountY                  uint64
	Price                    bin.Uint128
	LiquiditySupply          bin.Uint128
	RewardPerTokenStored     [2]bin.Uint128
	FeeAmountXPerTokenStored bin.Uint128
	FeeAmountYPerTokenStored bin.Uint128
	AmountXIn                bin.Uint128
	AmountYIn                bin.Uint128
}

// binArrayAccount is one bin-array account.
type binArrayAccount struct {
	Index   int64
	Version uint8
	Padding [7]byte
	LbPair  solanago.PublicKey
	Bins    [binsPerArray]binState
}

// accountDiscriminator returns the 8-byte anchor account discriminator.
func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

var (
	lbPairDisc     = accountDiscriminator("LbPair")
	positionV2Disc = accountDiscriminator("PositionV2")
	binArrayDisc   = accountDiscriminator("BinArray")
)

// decodeAccount checks the discriminator and borsh-decodes the rest into out.
func decodeAccount(data []byte, disc [8]byte, name string, out any) error {
	if len(data) < 8 {
		return fmt.Errorf("%s account: data too short (%d bytes)", name, len(data))
	}
	var got [8]byte
	copy(got[:], data[:8])
	if got != disc {
		return fmt.Errorf("%s account: discriminator mismatch", name)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(out); err != nil {
		return fmt.Errorf("%s account: %w", name, err)
	}
	return nil
}

// binArrayIndex returns the index of the bin array holding binID.
func binArrayIndex(binID int32) int64 {
	idx := int64(binID) / binsPerArray
	if binID < 0 && int64(binID)%binsPerArray != 0 {
		idx--
	}
	return idx
}

// binArrayAddress derives the PDA of a pool's bin-array account.
func binArrayAddress(lbPair solanago.PublicKey, index int64) (solanago.PublicKey, error) {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(index))
	addr, _, err := solanago.FindProgramAddress(
		[][]byte{[]byte("bin_array"), lbPair.Bytes(), idx[:]},
		decoder.DLMMProgramID,
	)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("derive bin array %d for %s: %w", index, lbPair, err)
	}
	return addr, nil
}

// shareAmount is floor(share * amount / supply): the position's pro-rata cut
// of one bin's token balance. Shares and supply carry the same fixed-point
// scale, so the ratio is scale-free.
func shareAmount(share, supply bin.Uint128, amount uint64) uint64 {
	s := share.BigInt()
	if s.Sign() == 0 {
		return 0
	}
	sup := supply.BigInt()
	if sup.Sign() == 0 {
		return 0
	}
	out := new(big.Int).Mul(s, new(big.Int).SetUint64(amount))
	out.Div(out, sup)
	if !out.IsUint64() {
		return amount
	}
	return out.Uint64()
}

// accruedFee is the claimable fee of one bin slot: the pending counter plus
// the Q64.64 per-token delta scaled by the slot's share.
func accruedFee(share bin.Uint128, stored, complete bin.Uint128, pending uint64) uint64 {
	delta := new(big.Int).Sub(stored.BigInt(), complete.BigInt())
	if delta.Sign() <= 0 {
		return pending
	}
	acc := new(big.Int).Mul(delta, share.BigInt())
	acc.Rsh(acc, 64)
	if !acc.IsUint64() {
		return pending
	}
	return pending + acc.Uint64()
}
