// Package meteora is the HTTP client for the DLMM index API: the pool-pair
// directory, the token directory, per-position event history and spot prices.
// All responses describe state the chain already settled, so every call is a
// plain idempotent GET and retries are safe.
package meteora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dlmm-profit-lab/internal/observability"
)

const (
	DefaultBaseURL      = "https://dlmm-api.meteora.ag"
	DefaultTokenListURL = "https://tokens.jup.ag"
	DefaultPriceURL     = "https://price.jup.ag/v4"

	defaultRPS        = 10
	defaultBurst      = 2
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
)

// Client talks to the index API. Safe for concurrent use.
type Client struct {
	http         *http.Client
	baseURL      string
	tokenListURL string
	priceURL     string
	limiter      *rate.Limiter
	maxRetries   uint64
	log          *logrus.Logger
	metrics      *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the index API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTokenListURL overrides the token directory base URL.
func WithTokenListURL(u string) Option {
	return func(c *Client) { c.tokenListURL = u }
}

// WithPriceURL overrides the spot price base URL.
func WithPriceURL(u string) Option {
	return func(c *Client) { c.priceURL = u }
}

// WithRateLimit overrides the outbound request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates an index API client.
func NewClient(log *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{Timeout: defaultTimeout},
		baseURL:      DefaultBaseURL,
		tokenListURL: DefaultTokenListURL,
		priceURL:     DefaultPriceURL,
		limiter:      rate.NewLimiter(defaultRPS, defaultBurst),
		maxRetries:   defaultMaxRetries,
		log:          log,
		metrics:      observability.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AllPairs fetches the full pool-pair directory.
func (c *Client) AllPairs(ctx context.Context) ([]Pair, error) {
	var pairs []Pair
	if err := c.getJSON(ctx, "pair_all", c.baseURL+"/pair/all", &pairs); err != nil {
		return nil, fmt.Errorf("pair directory: %w", err)
	}
	return pairs, nil
}

// TokenMap fetches the token directory keyed by mint address.
func (c *Client) TokenMap(ctx context.Context) (map[string]Token, error) {
	var tokens []Token
	if err := c.getJSON(ctx, "token_map", c.tokenListURL+"/tokens?tags=verified", &tokens); err != nil {
		return nil, fmt.Errorf("token directory: %w", err)
	}
	out := make(map[string]Token, len(tokens))
	for _, t := range tokens {
		out[t.Address] = t
	}
	return out, nil
}

// Deposits fetches a position's deposit history.
func (c *Client) Deposits(ctx context.Context, position string) ([]PositionEvent, error) {
	return c.positionEvents(ctx, position, "deposits")
}

// Withdrawals fetches a position's withdrawal history.
func (c *Client) Withdrawals(ctx context.Context, position string) ([]PositionEvent, error) {
	return c.positionEvents(ctx, position, "withdraws")
}

// ClaimFees fetches a position's fee claim history.
func (c *Client) ClaimFees(ctx context.Context, position string) ([]PositionEvent, error) {
	return c.positionEvents(ctx, position, "claim_fees")
}

// ClaimRewards fetches a position's reward claim history.
func (c *Client) ClaimRewards(ctx context.Context, position string) ([]RewardEvent, error) {
	var events []RewardEvent
	u := fmt.Sprintf("%s/position/%s/claim_rewards", c.baseURL, url.PathEscape(position))
	if err := c.getJSON(ctx, "claim_rewards", u, &events); err != nil {
		return nil, fmt.Errorf("position %s claim_rewards: %w", position, err)
	}
	return events, nil
}

// SpotPrice fetches the current USD price of a mint. Returns 0 with no error
// when the price service does not know the mint.
func (c *Client) SpotPrice(ctx context.Context, mint string) (float64, error) {
	var resp struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/price?ids=%s", c.priceURL, url.QueryEscape(mint))
	if err := c.getJSON(ctx, "spot_price", u, &resp); err != nil {
		return 0, fmt.Errorf("spot price %s: %w", mint, err)
	}
	return resp.Data[mint].Price, nil
}

func (c *Client) positionEvents(ctx context.Context, position, kind string) ([]PositionEvent, error) {
	var events []PositionEvent
	u := fmt.Sprintf("%s/position/%s/%s", c.baseURL, url.PathEscape(position), kind)
	if err := c.getJSON(ctx, kind, u, &events); err != nil {
		return nil, fmt.Errorf("position %s %s: %w", position, kind, err)
	}
	return events, nil
}

// statusError is an HTTP failure. Server-side and throttle statuses retry;
// everything else is permanent.
type statusError struct {
	status int
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.url, e.status)
}

func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// getJSON performs one rate-limited GET with retry and decodes the body. The
// whole exchange, retries included, is timed under the endpoint label.
func (c *Client) getJSON(ctx context.Context, endpoint, u string, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.IndexAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := c.getOnce(ctx, u, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return backoff.Permanent(err)
		}
		c.log.WithField("url", u).WithError(err).Debug("index API call failed, retrying")
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(op, bo)
}

func (c *Client) getOnce(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, url: u}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
