package detector

import (
	"sort"
	"time"
)

// Sort orders opportunities by profit in USD descending, breaking ties by
// profit percentage, then by confidence tier.
func Sort(opps []Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.ProfitUSD != b.ProfitUSD {
			return a.ProfitUSD > b.ProfitUSD
		}
		if a.ProfitPct != b.ProfitPct {
			return a.ProfitPct > b.ProfitPct
		}
		return a.Confidence > b.Confidence
	})
}

// Filter is a set of AND-composed predicates over opportunities. Zero values
// disable the corresponding predicate.
type Filter struct {
	MinConfidence     Confidence
	MaxPriceImpactPct float64
	PreferredVenues   []string
	MinVolumeUSD      float64
}

// Match reports whether the opportunity passes every enabled predicate.
func (f Filter) Match(o Opportunity) bool {
	if o.Confidence < f.MinConfidence {
		return false
	}
	if f.MaxPriceImpactPct > 0 &&
		(o.Buy.PriceImpactPct > f.MaxPriceImpactPct || o.Sell.PriceImpactPct > f.MaxPriceImpactPct) {
		return false
	}
	if len(f.PreferredVenues) > 0 && !f.venuePreferred(o) {
		return false
	}
	if f.MinVolumeUSD > 0 && o.VolumeUSD < f.MinVolumeUSD {
		return false
	}
	return true
}

func (f Filter) venuePreferred(o Opportunity) bool {
	for _, v := range f.PreferredVenues {
		if o.Buy.Venue == v || o.Sell.Venue == v {
			return true
		}
	}
	return false
}

// Apply returns the opportunities passing the filter, preserving order.
func (f Filter) Apply(opps []Opportunity) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, o := range opps {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// Fresh returns the opportunities still inside the freshness window at now.
// Staleness is pure wall-clock age; there is no external invalidation
// signal.
func Fresh(opps []Opportunity, now time.Time, window time.Duration) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.Fresh(now, window) {
			out = append(out, o)
		}
	}
	return out
}
