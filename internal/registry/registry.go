// Package registry holds the session-scoped directories the pipeline reads on
// every decoded instruction: pool-pair metadata and token metadata. Both are
// TTL caches over the index API; mints the directory does not know fall back
// to an on-chain mint read and register a synthetic token whose symbol is the
// mint address.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/meteora"
)

// ErrUnknownPair is returned for pool addresses absent from the directory.
var ErrUnknownPair = errors.New("pair not in directory")

// DefaultTTL is how long a loaded directory stays fresh.
const DefaultTTL = 15 * time.Minute

// mintDecimalsOffset is the byte offset of the decimals field in an SPL mint
// account.
const mintDecimalsOffset = 44

// Directory is the slice of the index API the registry needs.
type Directory interface {
	AllPairs(ctx context.Context) ([]meteora.Pair, error)
	TokenMap(ctx context.Context) (map[string]meteora.Token, error)
}

// ChainReader reads raw accounts for the mint fallback.
type ChainReader interface {
	AccountInfo(ctx context.Context, key solanago.PublicKey) (*rpc.Account, error)
}

// Registry caches pair and token metadata for one analysis session.
// Safe for concurrent use.
type Registry struct {
	api   Directory
	chain ChainReader
	log   *logrus.Logger
	ttl   time.Duration

	mu       sync.Mutex
	pairs    map[string]domain.PairInfo
	tokens   map[string]domain.TokenInfo
	pairsAt  time.Time
	tokensAt time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides the directory freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// New creates a Registry over the index API and an on-chain reader.
func New(api Directory, chain ChainReader, log *logrus.Logger, opts ...Option) *Registry {
	r := &Registry{
		api:    api,
		chain:  chain,
		log:    log,
		ttl:    DefaultTTL,
		pairs:  map[string]domain.PairInfo{},
		tokens: map[string]domain.TokenInfo{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invalidate drops both directories so the next lookup reloads them.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairsAt = time.Time{}
	r.tokensAt = time.Time{}
}

// Pair resolves a pool address. Returns ErrUnknownPair for pools the
// directory does not list, even after a reload.
func (r *Registry) Pair(ctx context.Context, address string) (domain.PairInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshPairs(ctx); err != nil {
		return domain.PairInfo{}, err
	}
	p, ok := r.pairs[address]
	if !ok {
		return domain.PairInfo{}, fmt.Errorf("pool %s: %w", address, ErrUnknownPair)
	}
	return p, nil
}

// Token resolves a mint address. Unknown mints are read from chain and
// registered as synthetic tokens for the rest of the session.
func (r *Registry) Token(ctx context.Context, mint string) (domain.TokenInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshTokens(ctx); err != nil {
		return domain.TokenInfo{}, err
	}
	if t, ok := r.tokens[mint]; ok {
		return t, nil
	}

	t, err := r.mintFallback(ctx, mint)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	r.tokens[mint] = t
	return t, nil
}

func (r *Registry) refreshPairs(ctx context.Context) error {
	if time.Since(r.pairsAt) < r.ttl {
		return nil
	}
	pairs, err := r.api.AllPairs(ctx)
	if err != nil {
		return fmt.Errorf("load pair directory: %w", err)
	}
	m := make(map[string]domain.PairInfo, len(pairs))
	for _, p := range pairs {
		m[p.Address] = domain.PairInfo{
			Address: p.Address,
			Name:    p.Name,
			MintX:   p.MintX,
			MintY:   p.MintY,
			BinStep: p.BinStep,
		}
	}
	r.pairs = m
	r.pairsAt = time.Now()
	r.log.WithField("pairs", len(m)).Debug("pair directory loaded")
	return nil
}

func (r *Registry) refreshTokens(ctx context.Context) error {
	if time.Since(r.tokensAt) < r.ttl {
		return nil
	}
	tokens, err := r.api.TokenMap(ctx)
	if err != nil {
		return fmt.Errorf("load token directory: %w", err)
	}
	m := make(map[string]domain.TokenInfo, len(tokens))
	for mint, t := range tokens {
		m[mint] = domain.TokenInfo{
			Mint:     mint,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			LogoURI:  t.LogoURI,
		}
	}
	// Synthetic registrations survive a directory reload.
	for mint, t := range r.tokens {
		if t.Synthetic {
			if _, ok := m[mint]; !ok {
				m[mint] = t
			}
		}
	}
	r.tokens = m
	r.tokensAt = time.Now()
	r.log.WithField("tokens", len(m)).Debug("token directory loaded")
	return nil
}

// mintFallback reads the mint account and registers a synthetic token. Only
// decimals can be recovered on chain, so the mint address stands in for the
// symbol.
func (r *Registry) mintFallback(ctx context.Context, mint string) (domain.TokenInfo, error) {
	key, err := solanago.PublicKeyFromBase58(mint)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}
	acc, err := r.chain.AccountInfo(ctx, key)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("read mint %s: %w", mint, err)
	}
	data := acc.Data.GetBinary()
	if len(data) <= mintDecimalsOffset {
		return domain.TokenInfo{}, fmt.Errorf("mint %s: account data too short (%d bytes)", mint, len(data))
	}

	r.log.WithField("mint", mint).Info("mint absent from token directory, registering synthetic token")
	return domain.TokenInfo{
		Mint:      mint,
		Symbol:    mint,
		Decimals:  data[mintDecimalsOffset],
		Synthetic: true,
	}, nil
}
