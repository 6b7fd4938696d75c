package analyzer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/stream"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeSource struct {
	updates []stream.Update
	err     error
}

func (f *fakeSource) Run(ctx context.Context, _ solanago.PublicKey, out chan<- stream.Update) error {
	defer close(out)
	for _, u := range f.updates {
		select {
		case <-ctx.Done():
			return nil
		case out <- u:
		}
	}
	return f.err
}

func (f *fakeSource) Cancel() {}

type fakeDecoder struct {
	mu      sync.Mutex
	actions [][]*domain.DecodedAction
	calls   int
}

func (f *fakeDecoder) DecodeTransaction(context.Context, *rpc.GetTransactionResult) ([]*domain.DecodedAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.actions) {
		f.calls++
		return nil, nil
	}
	acts := f.actions[f.calls]
	f.calls++
	return acts, nil
}

type fakeAssembler struct {
	ingested  []*domain.DecodedAction
	positions []*domain.Position
}

func (f *fakeAssembler) Ingest(_ context.Context, actions []*domain.DecodedAction) error {
	f.ingested = append(f.ingested, actions...)
	return nil
}

func (f *fakeAssembler) Build(context.Context) ([]*domain.Position, error) {
	return f.positions, nil
}

func (f *fakeAssembler) PositionCount() int { return len(f.positions) }

type fakeValuator struct {
	mu     sync.Mutex
	valued []string
	err    error
}

func (f *fakeValuator) Value(_ context.Context, p *domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valued = append(f.valued, p.Address)
	return f.err
}

type fakeEnricher struct{ enriched int }

func (f *fakeEnricher) Enrich(_ context.Context, positions []*domain.Position) error {
	f.enriched = len(positions)
	return nil
}

func txResult() *rpc.GetTransactionResult { return &rpc.GetTransactionResult{} }

func TestAnalyzeEndToEnd(t *testing.T) {
	src := &fakeSource{updates: []stream.Update{
		{SignatureCount: 3},
		{SignatureCount: 3, Transactions: []*rpc.GetTransactionResult{txResult(), txResult()}},
		{SignatureCount: 5, Transactions: []*rpc.GetTransactionResult{txResult()}},
	}}
	dec := &fakeDecoder{actions: [][]*domain.DecodedAction{
		{{Signature: "sig1", Position: "pos1", Kind: domain.ActionOpen}},
		nil,
		{{Signature: "sig3", Position: "pos2", Kind: domain.ActionAdd}},
	}}
	asm := &fakeAssembler{positions: []*domain.Position{
		{Address: "pos1", Closed: true},
		{Address: "pos2"},
	}}
	val := &fakeValuator{}
	enr := &fakeEnricher{}

	a := New(src, dec, asm, val, enr, testLogger())

	var events []Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range a.Events() {
			events = append(events, ev)
		}
	}()

	res, err := a.Analyze(context.Background(), solanago.PublicKey{})
	if err != nil {
		t.Fatal(err)
	}
	<-done

	if res.SignatureCount != 5 {
		t.Fatalf("signature count = %d, want 5", res.SignatureCount)
	}
	if res.Transactions != 3 {
		t.Fatalf("transactions = %d, want 3", res.Transactions)
	}
	if len(asm.ingested) != 2 {
		t.Fatalf("ingested %d actions, want 2", len(asm.ingested))
	}

	// Only the open position is valued.
	if len(val.valued) != 1 || val.valued[0] != "pos2" {
		t.Fatalf("valued: %v", val.valued)
	}
	if enr.enriched != 2 {
		t.Fatalf("enriched %d positions", enr.enriched)
	}
	if res.Profit == nil || res.Profit.Summary.PositionCount != 2 {
		t.Fatalf("profit: %+v", res.Profit)
	}

	var sawDone bool
	for _, ev := range events {
		if ev.Kind == EventDone {
			sawDone = true
			if ev.Positions != 2 || ev.SignatureCount != 5 {
				t.Fatalf("done event: %+v", ev)
			}
		}
	}
	if !sawDone {
		t.Fatal("no completion event emitted")
	}
}

// barrierDecoder blocks every decode until the expected number of goroutines
// have arrived, so the test deadlocks unless decodes overlap.
type barrierDecoder struct {
	arrived chan struct{}
	release chan struct{}
}

func (d *barrierDecoder) DecodeTransaction(ctx context.Context, _ *rpc.GetTransactionResult) ([]*domain.DecodedAction, error) {
	d.arrived <- struct{}{}
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	return nil, nil
}

func TestAnalyzeDecodesBatchConcurrently(t *testing.T) {
	src := &fakeSource{updates: []stream.Update{
		{SignatureCount: 2, Transactions: []*rpc.GetTransactionResult{txResult(), txResult()}},
	}}
	dec := &barrierDecoder{
		arrived: make(chan struct{}, 2),
		release: make(chan struct{}),
	}

	a := New(src, dec, &fakeAssembler{}, &fakeValuator{}, &fakeEnricher{}, testLogger())
	done := make(chan error, 1)
	go func() {
		_, err := a.Analyze(context.Background(), solanago.PublicKey{})
		done <- err
	}()

	// Both transactions of the batch must reach the decoder before either
	// one is released.
	for i := 0; i < 2; i++ {
		select {
		case <-dec.arrived:
		case <-time.After(2 * time.Second):
			t.Fatal("batch decoded sequentially")
		}
	}
	close(dec.release)

	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeStreamError(t *testing.T) {
	src := &fakeSource{err: errors.New("rpc down")}
	a := New(src, &fakeDecoder{}, &fakeAssembler{}, &fakeValuator{}, &fakeEnricher{}, testLogger())

	if _, err := a.Analyze(context.Background(), solanago.PublicKey{}); err == nil {
		t.Fatal("expected stream failure to surface")
	}
}

func TestAnalyzeValuationFailureFlags(t *testing.T) {
	src := &fakeSource{}
	asm := &fakeAssembler{positions: []*domain.Position{{Address: "pos1"}}}
	val := &fakeValuator{err: errors.New("account fetch failed")}

	a := New(src, &fakeDecoder{}, asm, val, &fakeEnricher{}, testLogger())
	res, err := a.Analyze(context.Background(), solanago.PublicKey{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Positions[0].HasAPIError {
		t.Fatal("failed valuation must flag the position")
	}
}
