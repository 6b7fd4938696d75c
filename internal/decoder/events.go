package decoder

import (
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// anchorEventMarker prefixes self-CPI instructions that carry emitted anchor
// events.
var anchorEventMarker = [8]byte{0xe4, 0x45, 0xa5, 0x2e, 0x51, 0xcb, 0x9a, 0x1d}

// eventDiscriminator returns the first 8 bytes of sha256("event:" + name).
func eventDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

var (
	addLiquidityEventDisc    = eventDiscriminator("AddLiquidity")
	removeLiquidityEventDisc = eventDiscriminator("RemoveLiquidity")
)

// liquidityEvent is the borsh payload shared by the AddLiquidity and
// RemoveLiquidity events. ActiveBinID is the pool's active bin at execution
// time and is the only on-chain price observation the history carries.
type liquidityEvent struct {
	LbPair      solanago.PublicKey
	From        solanago.PublicKey
	Position    solanago.PublicKey
	Amounts     [2]uint64
	ActiveBinID int32
}

// parseLiquidityEvent decodes an AddLiquidity or RemoveLiquidity event out of
// a self-CPI instruction payload. Returns false for any other payload.
func parseLiquidityEvent(data []byte) (liquidityEvent, bool) {
	if len(data) < 16 {
		return liquidityEvent{}, false
	}
	var marker [8]byte
	copy(marker[:], data[:8])
	if marker != anchorEventMarker {
		return liquidityEvent{}, false
	}
	var disc [8]byte
	copy(disc[:], data[8:16])
	if disc != addLiquidityEventDisc && disc != removeLiquidityEventDisc {
		return liquidityEvent{}, false
	}

	var ev liquidityEvent
	if err := bin.NewBorshDecoder(data[16:]).Decode(&ev); err != nil {
		return liquidityEvent{}, false
	}
	return ev, true
}
