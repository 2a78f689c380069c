// Package quote wraps the external aggregator's quote endpoint behind rate
// limiting and retry, returning normalized per-venue quote records.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultMaxElapsed     = 15 * time.Second
	defaultRatePerSecond  = 4
)

// Config configures the gateway client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxElapsed     time.Duration
	RatePerSecond  int
	Venues         []string
	Logger         *zap.Logger
}

// Client is the quote gateway. It owns the rate limiter and retry policy for
// the remote aggregator; callers never talk to the service directly.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	baseURL    string
	maxElapsed time.Duration
	venues     []string
	logger     *zap.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	maxElapsed := cfg.MaxElapsed
	if maxElapsed == 0 {
		maxElapsed = defaultMaxElapsed
	}
	rps := cfg.RatePerSecond
	if rps == 0 {
		rps = defaultRatePerSecond
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:    ratelimit.New(rps),
		baseURL:    cfg.BaseURL,
		maxElapsed: maxElapsed,
		venues:     cfg.Venues,
		logger:     cfg.Logger.Named("quote_gateway"),
	}
}

// Venues returns the venue labels the gateway queries per side.
func (c *Client) Venues() []string { return c.venues }

// apiQuoteResponse is the aggregator's quote payload.
type apiQuoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

// GetQuote fetches one quote, optionally restricted to a single venue.
// Retryable upstream failures (timeouts, 429, 5xx) are retried with
// exponential backoff up to the configured elapsed budget.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, venue string) (*Quote, error) {
	op := func() (*Quote, error) {
		c.limiter.Take()
		return c.fetchQuote(ctx, inputMint, outputMint, amount, venue)
	}
	q, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.maxElapsed),
	)
	if err != nil {
		return nil, fmt.Errorf("quote %s->%s via %q: %w", inputMint, outputMint, venue, err)
	}
	return q, nil
}

func (c *Client) fetchQuote(ctx context.Context, inputMint, outputMint string, amount uint64, venue string) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	if venue != "" {
		params.Set("dexes", venue)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("aggregator returned %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("aggregator returned %d: %s", resp.StatusCode, body))
	}

	var payload apiQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return c.normalize(payload, venue)
}

func (c *Client) normalize(payload apiQuoteResponse, venue string) (*Quote, error) {
	inAmount, err := strconv.ParseUint(payload.InAmount, 10, 64)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse inAmount %q: %w", payload.InAmount, err))
	}
	outAmount, err := strconv.ParseUint(payload.OutAmount, 10, 64)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse outAmount %q: %w", payload.OutAmount, err))
	}
	impact, err := strconv.ParseFloat(payload.PriceImpactPct, 64)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse priceImpactPct %q: %w", payload.PriceImpactPct, err))
	}

	route := make([]string, 0, len(payload.RoutePlan))
	for _, hop := range payload.RoutePlan {
		route = append(route, hop.SwapInfo.Label)
	}

	return &Quote{
		InputMint:      payload.InputMint,
		OutputMint:     payload.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		Venue:          venue,
		PriceImpactPct: impact,
		Route:          route,
		FetchedAt:      time.Now(),
	}, nil
}

// PairQuotes fetches the forward (base->quote) and reverse (quote->base)
// quote sets for a pair, one quote per configured venue. The two sides fetch
// concurrently; the shared limiter still paces individual requests. A venue
// that fails on one side is skipped with a log line, but a side with no
// surviving venue fails the pair.
func (c *Client) PairQuotes(ctx context.Context, pair TokenPair, baseAmount, quoteAmount uint64) (forward, reverse []Quote, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		quotes, err := c.sideQuotes(gctx, pair.BaseMint, pair.QuoteMint, baseAmount)
		if err != nil {
			return fmt.Errorf("forward side: %w", err)
		}
		for i := range quotes {
			quotes[i].Price = priceFromAmounts(
				quotes[i].InAmount, pair.BaseDecimals,
				quotes[i].OutAmount, pair.QuoteDecimals)
		}
		forward = quotes
		return nil
	})

	g.Go(func() error {
		quotes, err := c.sideQuotes(gctx, pair.QuoteMint, pair.BaseMint, quoteAmount)
		if err != nil {
			return fmt.Errorf("reverse side: %w", err)
		}
		for i := range quotes {
			// Reverse leg sells base for quote, so the implied price is
			// quote-in over base-out.
			quotes[i].Price = priceFromAmounts(
				quotes[i].OutAmount, pair.BaseDecimals,
				quotes[i].InAmount, pair.QuoteDecimals)
		}
		reverse = quotes
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("pair %s: %w", pair, err)
	}
	return forward, reverse, nil
}

func (c *Client) sideQuotes(ctx context.Context, inputMint, outputMint string, amount uint64) ([]Quote, error) {
	quotes := make([]Quote, 0, len(c.venues))
	var lastErr error
	for _, venue := range c.venues {
		q, err := c.GetQuote(ctx, inputMint, outputMint, amount, venue)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Warn("venue quote failed",
				zap.String("venue", venue),
				zap.Error(err))
			continue
		}
		quotes = append(quotes, *q)
	}
	if len(quotes) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no venue answered: %w", lastErr)
		}
		return nil, fmt.Errorf("no venues configured")
	}
	return quotes, nil
}

// priceFromAmounts converts raw integer amounts to a quote-per-base price.
func priceFromAmounts(baseAmount uint64, baseDecimals int, quoteAmount uint64, quoteDecimals int) float64 {
	base := float64(baseAmount) / math.Pow10(baseDecimals)
	if base == 0 {
		return 0
	}
	return (float64(quoteAmount) / math.Pow10(quoteDecimals)) / base
}
