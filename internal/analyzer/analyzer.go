// Package analyzer drives one wallet analysis end to end: it runs the
// transaction stream, decodes and folds every batch as it arrives, then
// values open positions, overlays USD amounts and aggregates profit. The
// analysis is complete only when all three phases settle: the stream is
// exhausted, every emitted batch has been decoded and ingested, and every
// assembled position has passed valuation and enrichment.
package analyzer

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/observability"
	"dlmm-profit-lab/internal/profit"
	"dlmm-profit-lab/internal/stream"
)

const (
	// decodeConcurrency bounds parallel transaction decodes within a batch.
	decodeConcurrency = 4

	// valuationConcurrency bounds parallel live valuations. Each position is
	// owned by exactly one goroutine for the duration of its valuation.
	valuationConcurrency = 4
)

// Source produces the wallet's transaction history.
type Source interface {
	Run(ctx context.Context, wallet solanago.PublicKey, out chan<- stream.Update) error
	Cancel()
}

// Decoder turns one transaction into position actions.
type Decoder interface {
	DecodeTransaction(ctx context.Context, res *rpc.GetTransactionResult) ([]*domain.DecodedAction, error)
}

// Assembler folds actions and builds the position set.
type Assembler interface {
	Ingest(ctx context.Context, actions []*domain.DecodedAction) error
	Build(ctx context.Context) ([]*domain.Position, error)
	PositionCount() int
}

// Valuator snapshots one open position against live chain state.
type Valuator interface {
	Value(ctx context.Context, p *domain.Position) error
}

// Enricher overlays USD amounts onto the position set.
type Enricher interface {
	Enrich(ctx context.Context, positions []*domain.Position) error
}

// EventKind labels a progress event.
type EventKind int

const (
	// EventSignatures reports a new cumulative signature count.
	EventSignatures EventKind = iota
	// EventBatch reports a processed transaction batch.
	EventBatch
	// EventPhase reports entry into a named analysis phase.
	EventPhase
	// EventDone reports analysis completion.
	EventDone
)

// Event is one progress notification. Consumers that fall behind miss
// events rather than stalling the pipeline.
type Event struct {
	Kind           EventKind
	SignatureCount int
	Transactions   int
	Positions      int
	Phase          string
}

// Result is one finished wallet analysis.
type Result struct {
	Wallet         string
	SignatureCount int
	Transactions   int
	Positions      []*domain.Position
	Profit         *domain.WalletProfit
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Analyzer wires the pipeline stages together.
type Analyzer struct {
	source    Source
	decoder   Decoder
	assembler Assembler
	valuator  Valuator
	enricher  Enricher
	log       *logrus.Logger
	metrics   *observability.Metrics

	events chan Event
}

// New creates an Analyzer over the given stages.
func New(source Source, dec Decoder, asm Assembler, val Valuator, enr Enricher, log *logrus.Logger) *Analyzer {
	return &Analyzer{
		source:    source,
		decoder:   dec,
		assembler: asm,
		valuator:  val,
		enricher:  enr,
		log:       log,
		metrics:   observability.DefaultMetrics,
		events:    make(chan Event, 64),
	}
}

// Events exposes the progress feed. Closed when the analysis finishes.
func (a *Analyzer) Events() <-chan Event {
	return a.events
}

// Cancel asks the stream to stop at the next emission boundary. Work already
// ingested is still assembled, valued and reported.
func (a *Analyzer) Cancel() {
	a.source.Cancel()
}

// Analyze runs the full pipeline for one wallet.
func (a *Analyzer) Analyze(ctx context.Context, wallet solanago.PublicKey) (*Result, error) {
	res := &Result{Wallet: wallet.String(), StartedAt: time.Now()}
	defer close(a.events)

	a.emit(Event{Kind: EventPhase, Phase: "stream"})
	if err := a.consumeStream(ctx, wallet, res); err != nil {
		a.metrics.AnalysisRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	a.emit(Event{Kind: EventPhase, Phase: "assemble"})
	positions, err := a.assembler.Build(ctx)
	if err != nil {
		a.metrics.AnalysisRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("assemble positions: %w", err)
	}
	a.metrics.PositionsAssembled.Set(float64(len(positions)))

	a.emit(Event{Kind: EventPhase, Phase: "valuation", Positions: len(positions)})
	a.valueOpenPositions(ctx, positions)

	a.emit(Event{Kind: EventPhase, Phase: "enrichment", Positions: len(positions)})
	if err := a.enricher.Enrich(ctx, positions); err != nil {
		a.metrics.AnalysisRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("usd enrichment: %w", err)
	}

	errored := 0
	for _, p := range positions {
		if p.HasAPIError {
			errored++
		}
	}
	a.metrics.APIErrorPositions.Set(float64(errored))

	res.Positions = positions
	res.Profit = profit.Aggregate(res.Wallet, positions)
	res.FinishedAt = time.Now()

	a.metrics.AnalysisRunsTotal.WithLabelValues("ok").Inc()
	a.metrics.AnalysisDuration.WithLabelValues("total").Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	a.emit(Event{
		Kind:           EventDone,
		SignatureCount: res.SignatureCount,
		Transactions:   res.Transactions,
		Positions:      len(positions),
	})
	return res, nil
}

// consumeStream drains the stream, decoding and ingesting each batch before
// the next one is fetched.
func (a *Analyzer) consumeStream(ctx context.Context, wallet solanago.PublicKey, res *Result) error {
	updates := make(chan stream.Update)
	errc := make(chan error, 1)
	go func() { errc <- a.source.Run(ctx, wallet, updates) }()

	for u := range updates {
		if u.SignatureCount > res.SignatureCount {
			a.metrics.SignaturesFetched.Add(float64(u.SignatureCount - res.SignatureCount))
			res.SignatureCount = u.SignatureCount
			a.emit(Event{Kind: EventSignatures, SignatureCount: res.SignatureCount})
		}
		if len(u.Transactions) == 0 {
			continue
		}

		actions := a.decodeBatch(ctx, u.Transactions)
		if err := a.assembler.Ingest(ctx, actions); err != nil {
			a.source.Cancel()
			for range updates {
			}
			<-errc
			return fmt.Errorf("ingest batch: %w", err)
		}

		res.Transactions += len(u.Transactions)
		a.metrics.TransactionsFetched.Add(float64(len(u.Transactions)))
		a.metrics.BatchesEmitted.Inc()
		a.emit(Event{
			Kind:           EventBatch,
			SignatureCount: res.SignatureCount,
			Transactions:   res.Transactions,
			Positions:      a.assembler.PositionCount(),
		})
	}

	if err := <-errc; err != nil {
		return fmt.Errorf("transaction stream: %w", err)
	}
	return nil
}

// decodeBatch decodes one batch's transactions in parallel and flattens the
// results back into transaction order, so folding downstream sees actions in
// the order the chain settled them.
func (a *Analyzer) decodeBatch(ctx context.Context, txs []*rpc.GetTransactionResult) []*domain.DecodedAction {
	decoded := make([][]*domain.DecodedAction, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decodeConcurrency)
	for i, tx := range txs {
		g.Go(func() error {
			acts, err := a.decoder.DecodeTransaction(gctx, tx)
			if err != nil {
				// A malformed envelope is one transaction's problem.
				a.log.WithError(err).Warn("transaction decode failed, skipping")
				return nil
			}
			a.metrics.TransactionsDecoded.Inc()
			decoded[i] = acts
			return nil
		})
	}
	g.Wait()

	actions := make([]*domain.DecodedAction, 0, len(txs))
	for _, acts := range decoded {
		for _, act := range acts {
			a.metrics.ActionsDecoded.WithLabelValues(act.Kind.String()).Inc()
		}
		actions = append(actions, acts...)
	}
	return actions
}

// valueOpenPositions runs live valuation with one owning goroutine per
// position. Valuation failures flag the position rather than failing the
// analysis; its open balance would otherwise silently read as zero.
func (a *Analyzer) valueOpenPositions(ctx context.Context, positions []*domain.Position) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(valuationConcurrency)
	for _, p := range positions {
		if p.Closed {
			continue
		}
		g.Go(func() error {
			if err := a.valuator.Value(gctx, p); err != nil {
				a.log.WithField("position", p.Address).WithError(err).Warn("live valuation failed, flagging position")
				p.HasAPIError = true
			}
			return nil
		})
	}
	g.Wait()
}

// emit pushes a progress event without ever blocking the pipeline.
func (a *Analyzer) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
	}
}
