package registry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/meteora"
)

const knownMint = "So11111111111111111111111111111111111111112"

type fakeDirectory struct {
	pairCalls  int
	tokenCalls int
	pairs      []meteora.Pair
	tokens     map[string]meteora.Token
}

func (f *fakeDirectory) AllPairs(context.Context) ([]meteora.Pair, error) {
	f.pairCalls++
	return f.pairs, nil
}

func (f *fakeDirectory) TokenMap(context.Context) (map[string]meteora.Token, error) {
	f.tokenCalls++
	return f.tokens, nil
}

type fakeChain struct {
	calls int
	data  []byte
	err   error
}

func (f *fakeChain) AccountInfo(context.Context, solanago.PublicKey) (*rpc.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(f.data)}, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func mintAccountData(decimals byte) []byte {
	data := make([]byte, 82)
	data[44] = decimals
	return data
}

func TestPairLookupAndTTL(t *testing.T) {
	dir := &fakeDirectory{
		pairs: []meteora.Pair{{Address: "pool1", Name: "ABC-USDC", MintX: "mintA", MintY: "mintB", BinStep: 20}},
	}
	r := New(dir, &fakeChain{}, testLogger(), WithTTL(time.Hour))

	p, err := r.Pair(context.Background(), "pool1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "ABC-USDC" || p.BinStep != 20 {
		t.Fatalf("pair: %+v", p)
	}

	if _, err := r.Pair(context.Background(), "pool2"); !errors.Is(err, ErrUnknownPair) {
		t.Fatalf("err = %v, want ErrUnknownPair", err)
	}
	if dir.pairCalls != 1 {
		t.Fatalf("directory loaded %d times, want 1", dir.pairCalls)
	}

	r.Invalidate()
	if _, err := r.Pair(context.Background(), "pool1"); err != nil {
		t.Fatal(err)
	}
	if dir.pairCalls != 2 {
		t.Fatalf("directory loaded %d times after invalidate, want 2", dir.pairCalls)
	}
}

func TestTokenDirectoryHit(t *testing.T) {
	dir := &fakeDirectory{
		tokens: map[string]meteora.Token{knownMint: {Address: knownMint, Symbol: "SOL", Decimals: 9}},
	}
	chain := &fakeChain{}
	r := New(dir, chain, testLogger())

	tok, err := r.Token(context.Background(), knownMint)
	if err != nil {
		t.Fatal(err)
	}
	if tok.Symbol != "SOL" || tok.Decimals != 9 || tok.Synthetic {
		t.Fatalf("token: %+v", tok)
	}
	if chain.calls != 0 {
		t.Fatal("directory hit must not touch the chain")
	}
}

func TestTokenSyntheticFallback(t *testing.T) {
	dir := &fakeDirectory{tokens: map[string]meteora.Token{}}
	chain := &fakeChain{data: mintAccountData(6)}
	r := New(dir, chain, testLogger())

	unknown := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	tok, err := r.Token(context.Background(), unknown)
	if err != nil {
		t.Fatal(err)
	}
	if !tok.Synthetic || tok.Symbol != unknown || tok.Decimals != 6 {
		t.Fatalf("token: %+v", tok)
	}

	// Second lookup is served from the cache.
	if _, err := r.Token(context.Background(), unknown); err != nil {
		t.Fatal(err)
	}
	if chain.calls != 1 {
		t.Fatalf("chain read %d times, want 1", chain.calls)
	}

	// Synthetic registrations survive a directory reload.
	r.Invalidate()
	tok, err = r.Token(context.Background(), unknown)
	if err != nil {
		t.Fatal(err)
	}
	if !tok.Synthetic || chain.calls != 1 {
		t.Fatalf("synthetic token lost across reload: %+v, chain calls %d", tok, chain.calls)
	}
}

func TestTokenFallbackErrors(t *testing.T) {
	dir := &fakeDirectory{tokens: map[string]meteora.Token{}}
	r := New(dir, &fakeChain{err: rpc.ErrNotFound}, testLogger())

	if _, err := r.Token(context.Background(), knownMint); !errors.Is(err, rpc.ErrNotFound) {
		t.Fatalf("err = %v, want wrapped ErrNotFound", err)
	}

	if _, err := r.Token(context.Background(), "not-a-mint"); err == nil {
		t.Fatal("invalid address must error")
	}
}
