// Package solana is the rate-limited access layer over the Solana JSON-RPC
// API. Every outbound call kind (signature listing, transaction fetch,
// account fetch, position-state fetch) passes through its own fixed-window
// limiter and an exponential-backoff retry wrapper.
package solana

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"dlmm-profit-lab/internal/observability"
)

// Default limits, tuned for free-tier RPC endpoints.
const (
	DefaultMaxRetries   = 4
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultWindow       = time.Second
	DefaultSignatureRPS = 4
	DefaultTxRPS        = 8
	DefaultAccountRPS   = 8
	DefaultStateRPS     = 4
)

// Client wraps a solana-go RPC client behind per-call-kind limiters.
// Safe for concurrent use.
type Client struct {
	rpc     *rpc.Client
	metrics *observability.Metrics

	maxRetries uint64
	retryDelay time.Duration

	signatures *windowLimiter
	txs        *windowLimiter
	accounts   *windowLimiter
	state      *windowLimiter
}

// Option configures the Client.
type Option func(*Client)

// WithMaxRetries sets the bounded retry count for transient failures.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithSignatureLimit overrides the signature-listing window budget.
func WithSignatureLimit(calls int, window time.Duration) Option {
	return func(c *Client) { c.signatures = newWindowLimiter(calls, window) }
}

// WithTransactionLimit overrides the transaction-fetch window budget.
func WithTransactionLimit(calls int, window time.Duration) Option {
	return func(c *Client) { c.txs = newWindowLimiter(calls, window) }
}

// WithAccountLimit overrides the account-fetch window budget.
func WithAccountLimit(calls int, window time.Duration) Option {
	return func(c *Client) { c.accounts = newWindowLimiter(calls, window) }
}

// WithStateLimit overrides the position-state window budget.
func WithStateLimit(calls int, window time.Duration) Option {
	return func(c *Client) { c.state = newWindowLimiter(calls, window) }
}

// NewClient creates an access-layer client for the given RPC endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		rpc:        rpc.New(endpoint),
		metrics:    observability.DefaultMetrics,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		signatures: newWindowLimiter(DefaultSignatureRPS, DefaultWindow),
		txs:        newWindowLimiter(DefaultTxRPS, DefaultWindow),
		accounts:   newWindowLimiter(DefaultAccountRPS, DefaultWindow),
		state:      newWindowLimiter(DefaultStateRPS, DefaultWindow),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// maxTxVersion pins getTransaction to versioned-transaction support.
var maxTxVersion uint64 = 0

// call runs one RPC op behind its limiter, timing the call and counting any
// retries under the method label.
func (c *Client) call(ctx context.Context, method string, l *windowLimiter, op func() error) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	attempts := 0
	err := withRetry(ctx, c.maxRetries, c.retryDelay, func() error {
		attempts++
		return op()
	})
	c.metrics.RPCCallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if attempts > 1 {
		c.metrics.RPCRetries.WithLabelValues(method).Add(float64(attempts - 1))
	}
	return err
}

// Signatures lists up to limit signatures for address, newest first, paging
// backward from before when it is non-zero.
func (c *Client) Signatures(ctx context.Context, address solanago.PublicKey, before solanago.Signature, limit int) ([]*rpc.TransactionSignature, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}
	if !before.IsZero() {
		opts.Before = before
	}

	var out []*rpc.TransactionSignature
	err := c.call(ctx, "getSignaturesForAddress", c.signatures, func() error {
		var err error
		out, err = c.rpc.GetSignaturesForAddressWithOpts(ctx, address, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", address, err)
	}
	return out, nil
}

// Transaction fetches one confirmed transaction with metadata.
// Returns rpc.ErrNotFound when the node no longer has the transaction.
func (c *Client) Transaction(ctx context.Context, sig solanago.Signature) (*rpc.GetTransactionResult, error) {
	var out *rpc.GetTransactionResult
	err := c.call(ctx, "getTransaction", c.txs, func() error {
		var err error
		out, err = c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solanago.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxTxVersion,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}
	return out, nil
}

// AccountInfo fetches one account. Returns rpc.ErrNotFound for missing
// accounts; not-found is a business answer and is never retried.
func (c *Client) AccountInfo(ctx context.Context, key solanago.PublicKey) (*rpc.Account, error) {
	var out *rpc.Account
	err := c.call(ctx, "getAccountInfo", c.accounts, func() error {
		res, err := c.rpc.GetAccountInfo(ctx, key)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return rpc.ErrNotFound
		}
		out = res.Value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	return out, nil
}

// PositionAccounts fetches several accounts in one call, used by the live
// valuator for position + pool + bin-array state. Missing accounts come back
// as nil entries rather than an error.
func (c *Client) PositionAccounts(ctx context.Context, keys ...solanago.PublicKey) ([]*rpc.Account, error) {
	var out []*rpc.Account
	err := c.call(ctx, "getMultipleAccounts", c.state, func() error {
		res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, keys, &rpc.GetMultipleAccountsOpts{
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		out = res.Value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %d accounts: %w", len(keys), err)
	}
	return out, nil
}
