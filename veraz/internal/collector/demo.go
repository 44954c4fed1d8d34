// CLAUDE:SUMMARY Synthetic Salcobrand/Cruz Verde collectors with price-history backfill for staging.
package collector

import (
	"context"
	"math"
	"strings"
	"time"
)

// historyMultipliers replays each demo offer across a descending price curve
// so history-dependent scoring gates can fire on a fresh database.
var historyMultipliers = []float64{1.55, 1.48, 1.42, 1.36, 1.30, 1.26, 1.22, 1.18, 1.14, 1.10, 1.06, 1.00}

// Demo is a synthetic collector for one retailer.
type Demo struct {
	name   string
	offers func(now time.Time) []Offer
}

// Name implements Collector.
func (d *Demo) Name() string { return d.name }

// Kind implements Collector.
func (d *Demo) Kind() Kind { return KindDemo }

// Collect returns the retailer's demo offers expanded with backfilled history.
func (d *Demo) Collect(_ context.Context) ([]Offer, error) {
	return WithHistory(d.offers(time.Now().UTC())), nil
}

// WithHistory expands each offer into a series of observations at descending
// past prices, one per day, ending at the offer itself.
func WithHistory(offers []Offer) []Offer {
	out := make([]Offer, 0, len(offers)*len(historyMultipliers))
	for _, o := range offers {
		for i, mult := range historyMultipliers {
			h := o
			h.PriceCurrent = math.Round(o.PriceCurrent * mult)
			h.ObservedAt = o.ObservedAt.AddDate(0, 0, -(len(historyMultipliers) - 1 - i))
			out = append(out, h)
		}
	}
	return out
}

// DemoFor returns the built-in demo collector for a retailer name, if any.
// Matching is case-insensitive on the retailer name.
func DemoFor(retailer string) (Collector, bool) {
	switch strings.ToLower(strings.TrimSpace(retailer)) {
	case "salcobrand":
		return SalcobrandDemo(), true
	case "cruz verde", "cruzverde":
		return CruzVerdeDemo(), true
	}
	return nil, false
}

// SalcobrandDemo returns the synthetic Salcobrand collector.
func SalcobrandDemo() *Demo {
	return &Demo{
		name: "Salcobrand",
		offers: func(now time.Time) []Offer {
			return []Offer{
				{
					RetailerName:   "Salcobrand",
					RetailerDomain: "salcobrand.cl",
					ExternalID:     "SB-CV-001",
					URL:            "https://salcobrand.cl/producto/cerave-limpiador-473ml",
					Title:          "CeraVe Limpiador Espumoso 473 ml",
					Brand:          "CeraVe",
					SizeRaw:        "473 ml",
					CategoryRaw:    "limpieza facial",
					PriceCurrent:   12990,
					PriceList:      fptr(17990),
					PromoText:      "Oferta online",
					InStock:        true,
					ObservedAt:     now.Add(-4 * time.Hour),
				},
				{
					RetailerName:   "Salcobrand",
					RetailerDomain: "salcobrand.cl",
					ExternalID:     "SB-LR-002",
					URL:            "https://salcobrand.cl/producto/la-roche-posay-anthelios-50ml",
					Title:          "La Roche-Posay Anthelios UVMune 400 Fluido 50 ml",
					Brand:          "La Roche-Posay",
					SizeRaw:        "50 ml",
					CategoryRaw:    "protector solar",
					PriceCurrent:   14990,
					PriceList:      fptr(24990),
					PromoText:      "-40%",
					InStock:        true,
					ObservedAt:     now.Add(-3 * time.Hour),
				},
				{
					RetailerName:   "Salcobrand",
					RetailerDomain: "salcobrand.cl",
					ExternalID:     "SB-VY-003",
					URL:            "https://salcobrand.cl/producto/vichy-mineral-89-50ml",
					Title:          "Vichy Mineral 89 Serum 50 ml",
					Brand:          "Vichy",
					SizeRaw:        "50 ml",
					CategoryRaw:    "serum",
					PriceCurrent:   28990,
					PriceList:      fptr(29990),
					InStock:        true,
					ObservedAt:     now.Add(-2 * time.Hour),
				},
			}
		},
	}
}

// CruzVerdeDemo returns the synthetic Cruz Verde collector.
func CruzVerdeDemo() *Demo {
	return &Demo{
		name: "Cruz Verde",
		offers: func(now time.Time) []Offer {
			return []Offer{
				{
					RetailerName:   "Cruz Verde",
					RetailerDomain: "cruzverde.cl",
					ExternalID:     "CV-CV-001",
					URL:            "https://cruzverde.cl/producto/cerave-limpiador-473ml",
					Title:          "CeraVe Limpiador Espumoso 473 ml",
					Brand:          "CeraVe",
					SizeRaw:        "473 ml",
					CategoryRaw:    "limpieza facial",
					PriceCurrent:   13490,
					PriceList:      fptr(17990),
					PromoText:      "Oferta web",
					InStock:        true,
					ObservedAt:     now.Add(-4 * time.Hour),
				},
				{
					RetailerName:   "Cruz Verde",
					RetailerDomain: "cruzverde.cl",
					ExternalID:     "CV-LR-002",
					URL:            "https://cruzverde.cl/producto/la-roche-posay-anthelios-50ml",
					Title:          "La Roche-Posay Anthelios UVMune 400 Fluido 50 ml",
					Brand:          "La Roche-Posay",
					SizeRaw:        "50 ml",
					CategoryRaw:    "protector solar",
					PriceCurrent:   15990,
					PriceList:      fptr(24990),
					PromoText:      "-36%",
					InStock:        true,
					ObservedAt:     now.Add(-3 * time.Hour),
				},
				{
					RetailerName:   "Cruz Verde",
					RetailerDomain: "cruzverde.cl",
					ExternalID:     "CV-VY-003",
					URL:            "https://cruzverde.cl/producto/vichy-mineral-89-50ml",
					Title:          "Vichy Mineral 89 Serum 50 ml",
					Brand:          "Vichy",
					SizeRaw:        "50 ml",
					CategoryRaw:    "serum",
					PriceCurrent:   29490,
					PriceList:      fptr(29990),
					InStock:        true,
					ObservedAt:     now.Add(-2 * time.Hour),
				},
			}
		},
	}
}

func fptr(v float64) *float64 { return &v }
