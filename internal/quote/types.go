package quote

import (
	"fmt"
	"time"
)

// TokenPair names the two legs of a scanned market, with the mint addresses
// and decimals the aggregator API needs.
type TokenPair struct {
	Base          string `mapstructure:"base"`
	Quote         string `mapstructure:"quote"`
	BaseMint      string `mapstructure:"base_mint"`
	QuoteMint     string `mapstructure:"quote_mint"`
	BaseDecimals  int    `mapstructure:"base_decimals"`
	QuoteDecimals int    `mapstructure:"quote_decimals"`
}

func (p TokenPair) String() string {
	return fmt.Sprintf("%s/%s", p.Base, p.Quote)
}

// Quote is one normalized venue quote. Price is always expressed in quote
// units per base unit so forward and reverse quotes compare directly.
// Quotes are ephemeral and not persisted beyond the detection window.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	Venue          string
	Price          float64
	PriceImpactPct float64
	Route          []string
	FetchedAt      time.Time
}

// SingleHop reports whether the quote's route crosses exactly one venue.
func (q Quote) SingleHop() bool {
	return len(q.Route) == 1
}
