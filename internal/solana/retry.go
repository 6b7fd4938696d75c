package solana

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// withRetry runs op with exponential backoff up to maxRetries additional
// attempts. Business-logic failures (account/transaction not found) are never
// retried; only transient I/O failures are.
func withRetry(ctx context.Context, maxRetries uint64, initialDelay time.Duration, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialDelay
	bo.MaxInterval = 10 * time.Second

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

// isRetryable reports whether an RPC failure is worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		// -32429 / 429-style responses are rate limits; everything else from
		// the node is a real answer, not a transient fault.
		return rpcErr.Code == 429 || rpcErr.Code == -32429
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit") {
		return true
	}
	// Network-level failures (dial, reset, EOF, timeout) surface as plain
	// errors from the HTTP transport.
	return true
}
