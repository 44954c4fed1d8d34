// CLAUDE:SUMMARY Pure discount-authenticity scoring: four signals, six gates, weighted composite, label precedence.
// Package scoring decides how genuine an advertised discount looks.
//
// Evaluate is a pure function over its explicit inputs; it never touches the
// store and never returns an error. Undefined signals (no history, no list
// price, no peers) are represented as nil pointers, since partial history is
// the steady state for newly tracked products.
package scoring

import (
	"math"
	"sort"
)

// Version tags every persisted evaluation. Bump it when the formula changes;
// old rows keep their version so re-runs never overwrite history.
const Version = "v1"

// Exact thresholds are part of the contract, not tunable defaults.
const (
	minVisibleDiscountForReal = 0.10
	likelyRealMinScore        = 0.55
	anchorAnomalyThreshold    = 0.25
)

// Label is the categorical authenticity verdict.
type Label string

const (
	LabelReal       Label = "REAL"
	LabelLikelyReal Label = "LIKELY_REAL"
	LabelSuspicious Label = "SUSPICIOUS"
	LabelLikelyFake Label = "LIKELY_FAKE"
)

// Input is one observation plus the context series it is judged against.
// PriceList is nil when the retailer shows no reference price.
type Input struct {
	PriceCurrent       float64
	PriceList          *float64
	HistoryPrices      []float64
	HistoryListPrices  []float64
	CrossStorePrices   []float64
	RecentObservations int
}

// Trace records the named diagnostics behind a verdict. Keys are stable:
// they are persisted as JSON and surfaced verbatim by the serving API.
type Trace struct {
	R1HistDelta        bool    `json:"R1_hist_delta_ge_15pct"`
	R2AnchorSpike      bool    `json:"R2_anchor_spike_le_10pct"`
	R3CrossStore       bool    `json:"R3_cross_store_ge_5pct"`
	R4MultipleSnaps    bool    `json:"R4_seen_multiple_snapshots"`
	R5EnoughHistory    bool    `json:"R5_has_enough_history"`
	R6VisibleDiscount  bool    `json:"R6_visible_discount_ge_10pct"`
	AnchorSpikePct     float64 `json:"anchor_spike_pct"`
	CrossStoreNeutral  bool    `json:"cross_store_missing_is_neutral"`
}

// Result is the scored verdict for one observation.
type Result struct {
	Score              float64
	Label              Label
	DiscountPct        *float64
	HistDeltaPct       *float64
	CrossStoreDeltaPct *float64
	AnchorAnomaly      bool
	Trace              Trace
}

// Evaluate scores one price observation against its own history and its
// cross-store peers. Callers must filter malformed prices (<= 0) first.
func Evaluate(in Input) Result {
	var discountPct *float64
	if in.PriceList != nil && *in.PriceList > 0 {
		d := (*in.PriceList - in.PriceCurrent) / *in.PriceList
		discountPct = &d
	}

	var histDeltaPct *float64
	if med, ok := median(in.HistoryPrices); ok && med > 0 {
		d := (med - in.PriceCurrent) / med
		histDeltaPct = &d
	}

	var crossStoreDeltaPct *float64
	if med, ok := median(in.CrossStorePrices); ok && med > 0 {
		d := (med - in.PriceCurrent) / med
		crossStoreDeltaPct = &d
	}

	// An inflated "before" price shows up as the current list price spiking
	// above the median of previously observed list prices.
	anchorSpikePct := 0.0
	if in.PriceList != nil && *in.PriceList > 0 {
		if med, ok := median(in.HistoryListPrices); ok && med > 0 {
			anchorSpikePct = (*in.PriceList - med) / med
		}
	}

	r1 := deref(histDeltaPct) >= 0.15
	r2 := anchorSpikePct <= 0.10
	r3 := deref(crossStoreDeltaPct) >= 0.05
	r4 := in.RecentObservations >= 2
	r5 := len(in.HistoryPrices) >= 10
	r6 := deref(discountPct) >= minVisibleDiscountForReal

	durationScore := 0.0
	if r4 {
		durationScore = 1.0
	}
	dataQualityScore := 0.4
	if r5 {
		dataQualityScore = 1.0
	}

	histComponent := clip(deref(histDeltaPct), 0, 0.5) / 0.5

	// Small deltas vs peers are pricing noise; missing peers are neutral.
	crossComponent := 0.5
	if crossStoreDeltaPct != nil && (*crossStoreDeltaPct < -0.03 || *crossStoreDeltaPct > 0.03) {
		crossComponent = clip(*crossStoreDeltaPct, 0, 0.4) / 0.4
	}

	score := 0.35*histComponent +
		0.25*crossComponent +
		0.20*(1.0-clip(anchorSpikePct, 0, 0.5)/0.5) +
		0.10*durationScore +
		0.10*dataQualityScore

	anchorAnomaly := anchorSpikePct > anchorAnomalyThreshold

	var label Label
	switch {
	case anchorAnomaly:
		label = LabelLikelyFake
	case score >= 0.75 && r1 && r2 && r6:
		label = LabelReal
	case score >= likelyRealMinScore && r6:
		label = LabelLikelyReal
	case score >= 0.40:
		label = LabelSuspicious
	default:
		label = LabelLikelyFake
	}

	return Result{
		Score:              round4(score),
		Label:              label,
		DiscountPct:        discountPct,
		HistDeltaPct:       histDeltaPct,
		CrossStoreDeltaPct: crossStoreDeltaPct,
		AnchorAnomaly:      anchorAnomaly,
		Trace: Trace{
			R1HistDelta:       r1,
			R2AnchorSpike:     r2,
			R3CrossStore:      r3,
			R4MultipleSnaps:   r4,
			R5EnoughHistory:   r5,
			R6VisibleDiscount: r6,
			AnchorSpikePct:    round4(anchorSpikePct),
			CrossStoreNeutral: crossStoreDeltaPct == nil,
		},
	}
}

// median returns the median of values, ok=false when values is empty.
func median(values []float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}

func clip(v, low, high float64) float64 {
	return math.Max(low, math.Min(v, high))
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
