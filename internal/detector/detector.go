// Package detector turns paired forward/reverse venue quotes into ranked,
// time-bounded arbitrage opportunities.
package detector

import (
	"time"

	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/quote"
)

// DefaultFreshnessWindow is how long an opportunity may be offered for
// execution after detection.
const DefaultFreshnessWindow = 120 * time.Second

// Confidence is an ordinal ranking signal, not a probability and not a
// profit guarantee.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "HIGH"
	case ConfidenceMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Leg describes one side of the trade.
type Leg struct {
	Venue          string
	Price          float64
	PriceImpactPct float64
	Route          []string
}

// Opportunity is a detected two-leg trade candidate. It expires after the
// freshness window and must not be offered for execution afterwards.
type Opportunity struct {
	Pair       quote.TokenPair
	Buy        Leg
	Sell       Leg
	ProfitUSD  float64
	ProfitPct  float64
	VolumeUSD  float64
	Confidence Confidence
	DetectedAt time.Time
}

// Fresh reports whether the opportunity is still inside the window at now.
func (o Opportunity) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(o.DetectedAt) <= window
}

// Config holds detection thresholds and the fee model. The network fee
// estimate mixes a fixed assumed base-asset price with live quote data; it
// is a configurable approximation, deliberately not a constant.
type Config struct {
	MinProfitUSD       float64
	MinProfitPct       float64
	MaxPriceImpactPct  float64
	AggregatorFeeBPS   float64
	PlatformFeeBPS     float64
	ExecutorShareBPS   float64
	NetworkFeePerTxSOL float64
	SOLPriceUSD        float64
	KnownVenues        []string
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		MinProfitUSD:       1.0,
		MinProfitPct:       0.5,
		MaxPriceImpactPct:  1.0,
		AggregatorFeeBPS:   30,
		PlatformFeeBPS:     20,
		ExecutorShareBPS:   1000,
		NetworkFeePerTxSOL: 0.000105,
		SOLPriceUSD:        150,
		KnownVenues:        []string{"Raydium", "Orca", "Meteora", "Phoenix"},
	}
}

// Detector evaluates quote sets against the configured thresholds.
type Detector struct {
	cfg    Config
	logger *zap.Logger
	known  map[string]struct{}
}

func New(cfg Config, logger *zap.Logger) *Detector {
	known := make(map[string]struct{}, len(cfg.KnownVenues))
	for _, v := range cfg.KnownVenues {
		known[v] = struct{}{}
	}
	return &Detector{cfg: cfg, logger: logger.Named("detector"), known: known}
}

// Detect decides whether a tradable opportunity exists between the forward
// (buy) and reverse (sell) quote sets at the given measurement volume.
// An empty result is a normal "nothing found" outcome, never an error.
func (d *Detector) Detect(pair quote.TokenPair, forward, reverse []quote.Quote, volumeUSD float64) (Opportunity, bool) {
	buys := d.reliable(forward)
	sells := d.reliable(reverse)
	if len(buys) == 0 || len(sells) == 0 {
		return Opportunity{}, false
	}

	// Ties produce identical profit, so the first extreme element is as good
	// as any other.
	bestBuy := buys[0]
	for _, q := range buys[1:] {
		if q.Price < bestBuy.Price {
			bestBuy = q
		}
	}
	bestSell := sells[0]
	for _, q := range sells[1:] {
		if q.Price > bestSell.Price {
			bestSell = q
		}
	}

	profitPct := (bestSell.Price - bestBuy.Price) / bestBuy.Price * 100
	profitUSD := d.netProfit(bestBuy.Price, bestSell.Price, volumeUSD)

	if profitUSD < d.cfg.MinProfitUSD || profitPct < d.cfg.MinProfitPct {
		return Opportunity{}, false
	}

	opp := Opportunity{
		Pair: pair,
		Buy: Leg{
			Venue:          bestBuy.Venue,
			Price:          bestBuy.Price,
			PriceImpactPct: bestBuy.PriceImpactPct,
			Route:          bestBuy.Route,
		},
		Sell: Leg{
			Venue:          bestSell.Venue,
			Price:          bestSell.Price,
			PriceImpactPct: bestSell.PriceImpactPct,
			Route:          bestSell.Route,
		},
		ProfitUSD:  profitUSD,
		ProfitPct:  profitPct,
		VolumeUSD:  volumeUSD,
		DetectedAt: time.Now(),
	}
	opp.Confidence = d.score(opp)

	d.logger.Debug("opportunity detected",
		zap.String("pair", pair.String()),
		zap.String("buy_venue", opp.Buy.Venue),
		zap.String("sell_venue", opp.Sell.Venue),
		zap.Float64("profit_usd", profitUSD),
		zap.Float64("profit_pct", profitPct),
		zap.String("confidence", opp.Confidence.String()))
	return opp, true
}

// reliable filters a quote set to usable entries.
func (d *Detector) reliable(quotes []quote.Quote) []quote.Quote {
	out := make([]quote.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Price > 0 && q.PriceImpactPct <= d.cfg.MaxPriceImpactPct {
			out = append(out, q)
		}
	}
	return out
}

// netProfit converts the spread at the measurement volume into USD and
// subtracts aggregator fee, platform fee, the executor's incentive share of
// gross profit, and two transactions' worth of network fees.
func (d *Detector) netProfit(buyPrice, sellPrice, volumeUSD float64) float64 {
	gross := (sellPrice - buyPrice) / buyPrice * volumeUSD
	aggregatorFee := volumeUSD * d.cfg.AggregatorFeeBPS / 10_000
	platformFee := volumeUSD * d.cfg.PlatformFeeBPS / 10_000
	executorCut := gross * d.cfg.ExecutorShareBPS / 10_000
	networkFee := d.cfg.NetworkFeePerTxSOL * d.cfg.SOLPriceUSD * 2
	return gross - aggregatorFee - platformFee - executorCut - networkFee
}

// score applies the heuristic point system. Thresholds are preserved for
// compatibility; they carry no statistical weight.
func (d *Detector) score(o Opportunity) Confidence {
	points := 0

	switch {
	case o.ProfitPct > 2.0:
		points += 3
	case o.ProfitPct > 1.0:
		points += 2
	case o.ProfitPct > 0.5:
		points++
	}

	switch {
	case o.Buy.PriceImpactPct < 0.1 && o.Sell.PriceImpactPct < 0.1:
		points += 2
	case o.Buy.PriceImpactPct < 0.5 && o.Sell.PriceImpactPct < 0.5:
		points++
	}

	_, buyKnown := d.known[o.Buy.Venue]
	_, sellKnown := d.known[o.Sell.Venue]
	if buyKnown && sellKnown {
		points++
	}

	if len(o.Buy.Route) == 1 && len(o.Sell.Route) == 1 {
		points++
	}

	switch {
	case points >= 5:
		return ConfidenceHigh
	case points >= 3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
