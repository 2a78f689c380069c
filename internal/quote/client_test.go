package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var solUSDC = TokenPair{
	Base:          "SOL",
	Quote:         "USDC",
	BaseMint:      solMint,
	QuoteMint:     usdcMint,
	BaseDecimals:  9,
	QuoteDecimals: 6,
}

func quotePayload(inputMint, inAmount, outputMint, outAmount, impact string, hops ...string) map[string]interface{} {
	plan := make([]map[string]interface{}, 0, len(hops))
	for _, label := range hops {
		plan = append(plan, map[string]interface{}{
			"swapInfo": map[string]interface{}{"label": label},
		})
	}
	return map[string]interface{}{
		"inputMint":      inputMint,
		"inAmount":       inAmount,
		"outputMint":     outputMint,
		"outAmount":      outAmount,
		"priceImpactPct": impact,
		"routePlan":      plan,
	}
}

func newTestClient(t *testing.T, baseURL string, venues ...string) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:       baseURL,
		MaxElapsed:    2 * time.Second,
		RatePerSecond: 1000,
		Venues:        venues,
		Logger:        zaptest.NewLogger(t),
	})
}

func TestGetQuoteParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, solMint, r.URL.Query().Get("inputMint"))
		assert.Equal(t, usdcMint, r.URL.Query().Get("outputMint"))
		assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
		assert.Equal(t, "Raydium", r.URL.Query().Get("dexes"))

		err := json.NewEncoder(w).Encode(
			quotePayload(solMint, "1000000000", usdcMint, "150000000", "0.02", "Raydium"))
		require.NoError(t, err)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "Raydium")
	q, err := c.GetQuote(context.Background(), solMint, usdcMint, 1_000_000_000, "Raydium")
	require.NoError(t, err)

	assert.Equal(t, uint64(1_000_000_000), q.InAmount)
	assert.Equal(t, uint64(150_000_000), q.OutAmount)
	assert.Equal(t, 0.02, q.PriceImpactPct)
	assert.Equal(t, []string{"Raydium"}, q.Route)
	assert.True(t, q.SingleHop())
}

func TestGetQuoteRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(
			quotePayload(solMint, "1000000000", usdcMint, "150000000", "0.02", "Orca"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "Orca")
	q, err := c.GetQuote(context.Background(), solMint, usdcMint, 1_000_000_000, "Orca")
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), q.OutAmount)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestGetQuoteClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "no route found", http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "Orca")
	_, err := c.GetQuote(context.Background(), solMint, usdcMint, 1_000_000_000, "Orca")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetQuoteMalformedAmountIsPermanent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(
			quotePayload(solMint, "not-a-number", usdcMint, "150000000", "0.02", "Orca"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "Orca")
	_, err := c.GetQuote(context.Background(), solMint, usdcMint, 1_000_000_000, "Orca")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestPairQuotesNormalizesBothSides(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if r.URL.Query().Get("inputMint") == solMint {
			// 1 SOL -> 150 USDC
			payload = quotePayload(solMint, "1000000000", usdcMint, "150000000", "0.02", "Raydium")
		} else {
			// 150 USDC -> 0.98 SOL, implied 153.06 USDC per SOL
			payload = quotePayload(usdcMint, "150000000", solMint, "980000000", "0.03", "Raydium")
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "Raydium")
	forward, reverse, err := c.PairQuotes(context.Background(), solUSDC, 1_000_000_000, 150_000_000)
	require.NoError(t, err)
	require.Len(t, forward, 1)
	require.Len(t, reverse, 1)

	assert.InDelta(t, 150.0, forward[0].Price, 1e-9)
	assert.InDelta(t, 150.0/0.98, reverse[0].Price, 1e-6)
}

func TestPairQuotesSkipsNoisyVenue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		venue := r.URL.Query().Get("dexes")
		if venue == "Meteora" {
			http.Error(w, "unsupported dex", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("inputMint") == solMint {
			_ = json.NewEncoder(w).Encode(
				quotePayload(solMint, "1000000000", usdcMint, "150000000", "0.02", venue))
			return
		}
		_ = json.NewEncoder(w).Encode(
			quotePayload(usdcMint, "150000000", solMint, "990000000", "0.02", venue))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "Raydium", "Meteora")
	forward, reverse, err := c.PairQuotes(context.Background(), solUSDC, 1_000_000_000, 150_000_000)
	require.NoError(t, err)
	assert.Len(t, forward, 1)
	assert.Len(t, reverse, 1)
	assert.Equal(t, "Raydium", forward[0].Venue)
}

func TestPairQuotesFailsWhenSideEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("inputMint") == usdcMint {
			http.Error(w, "no route", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(
			quotePayload(solMint, "1000000000", usdcMint, "150000000", "0.02", "Raydium"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "Raydium")
	_, _, err := c.PairQuotes(context.Background(), solUSDC, 1_000_000_000, 150_000_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("pair %s", solUSDC))
}
