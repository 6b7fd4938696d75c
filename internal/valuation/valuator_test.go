package valuation

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func u128(lo uint64) bin.Uint128 { return bin.Uint128{Lo: lo} }

func TestBinArrayIndex(t *testing.T) {
	cases := []struct {
		binID int32
		want  int64
	}{
		{0, 0}, {69, 0}, {70, 1}, {-1, -1}, {-70, -1}, {-71, -2}, {140, 2},
	}
	for _, c := range cases {
		if got := binArrayIndex(c.binID); got != c.want {
			t.Errorf("binArrayIndex(%d) = %d, want %d", c.binID, got, c.want)
		}
	}
	// Offsets stay within [0, 70) across the negative range too.
	for _, id := range []int32{0, 69, 70, -1, -70, -71} {
		off := binOffset(id)
		if off < 0 || off >= binsPerArray {
			t.Errorf("binOffset(%d) = %d out of range", id, off)
		}
	}
	if binOffset(-1) != 69 {
		t.Errorf("binOffset(-1) = %d, want 69", binOffset(-1))
	}
}

func TestShareAmount(t *testing.T) {
	if got := shareAmount(u128(500), u128(1000), 2000); got != 1000 {
		t.Fatalf("half share of 2000 = %d", got)
	}
	if got := shareAmount(u128(0), u128(1000), 2000); got != 0 {
		t.Fatalf("zero share = %d", got)
	}
	if got := shareAmount(u128(500), u128(0), 2000); got != 0 {
		t.Fatalf("zero supply = %d", got)
	}
}

func TestAccruedFee(t *testing.T) {
	// Delta of exactly 1.0 in Q64.64 times a share of 3 accrues 3.
	stored := bin.Uint128{Hi: 1}
	if got := accruedFee(u128(3), stored, u128(0), 2); got != 5 {
		t.Fatalf("accrued fee = %d, want 5", got)
	}
	// No delta leaves only the pending counter.
	if got := accruedFee(u128(3), u128(7), u128(7), 2); got != 2 {
		t.Fatalf("accrued fee = %d, want 2", got)
	}
}

type fakeChain struct {
	accounts map[solanago.PublicKey][]byte
}

func (f *fakeChain) PositionAccounts(_ context.Context, keys ...solanago.PublicKey) ([]*rpc.Account, error) {
	out := make([]*rpc.Account, len(keys))
	for i, k := range keys {
		if data, ok := f.accounts[k]; ok {
			out[i] = &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)}
		}
	}
	return out, nil
}

func encodeAccount(t *testing.T, disc [8]byte, v any) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValueOpenPosition(t *testing.T) {
	posKey := solanago.NewWallet().PublicKey()
	poolKey := solanago.NewWallet().PublicKey()

	pool := lbPairAccount{ActiveID: 0, BinStep: 20}
	pos := positionAccount{LbPair: poolKey, LowerBinID: 0, UpperBinID: 1}
	// Half the supply in bin 0, nothing in bin 1.
	pos.LiquidityShares[0] = u128(500)
	pos.FeeInfos[0] = feeInfo{FeeXPending: 2_000_000_000, FeeYPending: 1_000_000}

	var arr binArrayAccount
	arr.LbPair = poolKey
	arr.Bins[0] = binState{
		AmountX:         8_000_000_000_000, // 8000 X raw
		AmountY:         4_000_000_000,     // 4000 Y raw
		LiquiditySupply: u128(1000),
	}

	arrayKey, err := binArrayAddress(poolKey, 0)
	if err != nil {
		t.Fatal(err)
	}
	chain := &fakeChain{accounts: map[solanago.PublicKey][]byte{
		posKey:   encodeAccount(t, positionV2Disc, &pos),
		poolKey:  encodeAccount(t, lbPairDisc, &pool),
		arrayKey: encodeAccount(t, binArrayDisc, &arr),
	}}

	price := 1.0
	tx := &domain.PositionTransaction{
		Signature: "sig1",
		Timestamp: time.Unix(1_700_000_000, 0),
		Add:       true,
		DecimalsX: 9,
		DecimalsY: 6,
		Price:     &price,
	}
	p := &domain.Position{
		Address:      posKey.String(),
		Pool:         poolKey.String(),
		DecimalsX:    9,
		DecimalsY:    6,
		OpenedAt:     tx.Timestamp,
		Transactions: []*domain.PositionTransaction{tx},
	}

	v := New(chain, testLogger())
	stamp := time.Unix(1_800_000_000, 0)
	v.now = func() time.Time { return stamp }

	if err := v.Value(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	// Half of each bin balance: 4000 X, 2000 Y (human-scaled).
	if tx.OpenBalanceX != 4000 || tx.OpenBalanceY != 2000 {
		t.Fatalf("open balance = %v/%v", tx.OpenBalanceX, tx.OpenBalanceY)
	}
	if tx.UnclaimedFeesX != 2 || tx.UnclaimedFeesY != 1 {
		t.Fatalf("unclaimed fees = %v/%v", tx.UnclaimedFeesX, tx.UnclaimedFeesY)
	}
	if tx.Price == nil || tx.EstimatedPrice {
		t.Fatal("snapshot must carry a live, non-estimated price")
	}
	// Bin 0 is the unit raw price; decimals 9/6 rescale it to 1000.
	if got := *tx.Price; got < 999.9 || got > 1000.1 {
		t.Fatalf("price = %v", got)
	}
	if !p.ClosedAt.Equal(stamp) {
		t.Fatalf("valuation stamp = %v", p.ClosedAt)
	}
	if p.Totals.OpenBalanceValue == 0 || p.Totals.UnclaimedFeesValue == 0 {
		t.Fatalf("totals not refreshed: %+v", p.Totals)
	}

	// Running the pass again overwrites the same snapshot.
	before := tx.OpenBalanceValue
	if err := v.Value(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if tx.OpenBalanceValue != before {
		t.Fatalf("second pass drifted: %v vs %v", tx.OpenBalanceValue, before)
	}
}

func TestValueRejectsOversizedBinRange(t *testing.T) {
	posKey := solanago.NewWallet().PublicKey()
	poolKey := solanago.NewWallet().PublicKey()

	pool := lbPairAccount{ActiveID: 0, BinStep: 20}
	// 71 bins, one more than the account's per-bin arrays can hold.
	pos := positionAccount{LbPair: poolKey, LowerBinID: 0, UpperBinID: 70}

	chain := &fakeChain{accounts: map[solanago.PublicKey][]byte{
		posKey:  encodeAccount(t, positionV2Disc, &pos),
		poolKey: encodeAccount(t, lbPairDisc, &pool),
	}}
	p := &domain.Position{
		Address:      posKey.String(),
		Pool:         poolKey.String(),
		Transactions: []*domain.PositionTransaction{{Signature: "sig1"}},
	}

	err := New(chain, testLogger()).Value(context.Background(), p)
	if err == nil {
		t.Fatal("expected oversized bin range to be rejected")
	}
	if !strings.Contains(err.Error(), "bin range") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValueClosedAndGonePositions(t *testing.T) {
	posKey := solanago.NewWallet().PublicKey()
	poolKey := solanago.NewWallet().PublicKey()
	pool := lbPairAccount{ActiveID: 0, BinStep: 20}

	chain := &fakeChain{accounts: map[solanago.PublicKey][]byte{
		poolKey: encodeAccount(t, lbPairDisc, &pool),
	}}
	v := New(chain, testLogger())

	closed := &domain.Position{Address: posKey.String(), Pool: poolKey.String(), Closed: true}
	if err := v.Value(context.Background(), closed); err != nil {
		t.Fatal(err)
	}

	gone := &domain.Position{
		Address:      posKey.String(),
		Pool:         poolKey.String(),
		Transactions: []*domain.PositionTransaction{{Signature: "sig1"}},
	}
	if err := v.Value(context.Background(), gone); err != nil {
		t.Fatal(err)
	}
	if !gone.Closed {
		t.Fatal("vanished position account must mark the position closed")
	}
}
