// Package stream pages backward through a wallet's transaction history and
// pushes batches of fetched transactions downstream. It is the sole driver of
// the analysis pipeline: consumers receive batches as they arrive and the
// stream never fetches ahead of an unconsumed batch.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dlmm-profit-lab/internal/observability"
)

// RPC is the slice of the access layer the stream needs.
type RPC interface {
	Signatures(ctx context.Context, address solanago.PublicKey, before solanago.Signature, limit int) ([]*rpc.TransactionSignature, error)
	Transaction(ctx context.Context, sig solanago.Signature) (*rpc.GetTransactionResult, error)
}

// Update is one emission: a new cumulative signature count, and zero or more
// fetched transaction bodies.
type Update struct {
	SignatureCount int
	Transactions   []*rpc.GetTransactionResult
}

const (
	// pageLimit is the signature page size requested from the node.
	pageLimit = 1000

	// chunkThreshold caps how many transaction bodies one batch may carry.
	// Pages above it are split in half so a single burst of fetches stays
	// bounded.
	chunkThreshold = 100

	// fetchConcurrency bounds parallel transaction fetches within a chunk.
	fetchConcurrency = 4
)

// Stream pages a wallet's history newest-to-oldest.
type Stream struct {
	rpc RPC
	log *logrus.Logger

	minDate  *time.Time
	canceled atomic.Bool
}

// Option configures a Stream.
type Option func(*Stream)

// WithMinDate stops the stream once a page reaches transactions older than t.
func WithMinDate(t time.Time) Option {
	return func(s *Stream) { s.minDate = &t }
}

// New creates a Stream over the given access layer.
func New(rpc RPC, log *logrus.Logger, opts ...Option) *Stream {
	s := &Stream{rpc: rpc, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cancel requests cooperative termination. The in-flight batch finishes; no
// further batch is emitted after the next emission boundary.
func (s *Stream) Cancel() {
	s.canceled.Store(true)
}

// Run drives the stream until the history is exhausted, the min-date cutoff
// is crossed, cancellation is requested, or ctx is done. It closes out on
// return. Emission is the only cancellation checkpoint: a batch is either
// fully emitted or not emitted at all.
func (s *Stream) Run(ctx context.Context, wallet solanago.PublicKey, out chan<- Update) error {
	defer close(out)

	var (
		before   solanago.Signature
		sigCount int
	)

	for {
		if s.canceled.Load() {
			s.log.WithField("wallet", wallet.String()).Debug("stream canceled before page fetch")
			return nil
		}

		page, err := s.rpc.Signatures(ctx, wallet, before, pageLimit)
		if err != nil {
			return fmt.Errorf("signature page: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		before = page[len(page)-1].Signature

		page, reachedCutoff := s.applyCutoff(page)
		good := filterFailed(page)
		sigCount += len(good)

		if !s.emit(ctx, out, Update{SignatureCount: sigCount}) {
			return nil
		}

		for _, chunk := range splitChunks(good) {
			txs, err := s.fetchBodies(ctx, chunk)
			if err != nil {
				return fmt.Errorf("fetch transaction bodies: %w", err)
			}
			if !s.emit(ctx, out, Update{SignatureCount: sigCount, Transactions: txs}) {
				return nil
			}
		}

		if reachedCutoff || len(page) < pageLimit {
			return nil
		}
	}
}

// emit pushes one update unless cancellation was requested. Returns false
// when the stream should terminate.
func (s *Stream) emit(ctx context.Context, out chan<- Update, u Update) bool {
	if s.canceled.Load() {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case out <- u:
		return true
	}
}

// applyCutoff trims signatures older than the min date and reports whether
// the cutoff was reached in this page.
func (s *Stream) applyCutoff(page []*rpc.TransactionSignature) ([]*rpc.TransactionSignature, bool) {
	if s.minDate == nil {
		return page, false
	}
	cutoff := s.minDate.Unix()
	for i, sig := range page {
		if sig.BlockTime != nil && sig.BlockTime.Time().Unix() < cutoff {
			return page[:i], true
		}
	}
	return page, false
}

// filterFailed drops signatures whose transaction errored on chain.
func filterFailed(page []*rpc.TransactionSignature) []*rpc.TransactionSignature {
	good := make([]*rpc.TransactionSignature, 0, len(page))
	for _, sig := range page {
		if sig.Err == nil {
			good = append(good, sig)
		}
	}
	return good
}

// splitChunks bounds a page into fetchable chunks: pages over the threshold
// are halved recursively.
func splitChunks(page []*rpc.TransactionSignature) [][]*rpc.TransactionSignature {
	if len(page) == 0 {
		return nil
	}
	if len(page) <= chunkThreshold {
		return [][]*rpc.TransactionSignature{page}
	}
	mid := len(page) / 2
	return append(splitChunks(page[:mid]), splitChunks(page[mid:])...)
}

// fetchBodies fetches the transaction bodies of one chunk, preserving page
// order. Transactions the node has pruned are skipped.
func (s *Stream) fetchBodies(ctx context.Context, chunk []*rpc.TransactionSignature) ([]*rpc.GetTransactionResult, error) {
	results := make([]*rpc.GetTransactionResult, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, sig := range chunk {
		g.Go(func() error {
			tx, err := s.rpc.Transaction(gctx, sig.Signature)
			if err != nil {
				if isNotFound(err) {
					s.log.WithField("signature", sig.Signature.String()).Warn("transaction pruned by node, skipping")
					observability.DefaultMetrics.TransactionsPruned.Inc()
					return nil
				}
				return err
			}
			results[i] = tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*rpc.GetTransactionResult, 0, len(results))
	for _, tx := range results {
		if tx != nil {
			out = append(out, tx)
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, rpc.ErrNotFound)
}
