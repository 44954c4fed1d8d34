// CLAUDE:SUMMARY Collector interface, capability kinds, and the raw Offer record with its idempotency hash.
// Package collector defines the boundary between the scoring core and the
// source-specific machinery that obtains raw offers.
//
// The core stays ignorant of source mechanics: a collector either returns a
// batch of offers or fails, and both outcomes are handled per-source by the
// orchestrator without aborting the run.
package collector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Kind describes how a collector obtains its offers.
type Kind string

const (
	// KindAPI calls a retailer's JSON endpoint directly.
	KindAPI Kind = "api"
	// KindRenderedPage drives a real browser. Not implemented here; the
	// constant exists so configurations can name it.
	KindRenderedPage Kind = "rendered"
	// KindStaticPage parses server-rendered HTML. Not implemented here.
	KindStaticPage Kind = "static"
	// KindDemo returns synthetic offers for staging and fresh databases.
	KindDemo Kind = "demo"
)

// Collector produces a batch of raw offers for one retailer source.
type Collector interface {
	Name() string
	Kind() Kind
	Collect(ctx context.Context) ([]Offer, error)
}

// Offer is one raw price sighting as reported by a retailer source.
type Offer struct {
	RetailerName   string
	RetailerDomain string
	ExternalID     string // retailer-local product id
	URL            string
	Title          string
	Brand          string
	SizeRaw        string
	CategoryRaw    string
	PriceCurrent   float64
	PriceList      *float64 // nil when no reference price is shown
	Currency       string   // defaults to CLP when empty
	PromoText      string
	InStock        bool
	ObservedAt     time.Time // UTC
}

// Hash is the idempotency key for this offer: the same listing, prices and
// timestamp always produce the same hash, so replaying a scrape is a no-op.
func (o Offer) Hash() string {
	list := ""
	if o.PriceList != nil {
		list = strconv.FormatFloat(*o.PriceList, 'f', -1, 64)
	}
	payload := o.ExternalID + "|" +
		strconv.FormatFloat(o.PriceCurrent, 'f', -1, 64) + "|" +
		list + "|" +
		o.ObservedAt.UTC().Format(time.RFC3339Nano)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
