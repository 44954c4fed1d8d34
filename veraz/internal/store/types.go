// CLAUDE:SUMMARY Row types for the six veraz relations plus query result shapes.
package store

// Run statuses.
const (
	RunOK       = "ok"
	RunDegraded = "degraded"
	RunFailed   = "failed"
)

// Source modes within a run.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
	SourceError    = "error"
)

// Retailer is a selling source.
type Retailer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	CreatedAt int64  `json:"created_at"`
}

// Listing is a retailer's own representation of a product.
type Listing struct {
	ID          string `json:"id"`
	RetailerID  string `json:"retailer_id"`
	ExternalID  string `json:"external_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	BrandRaw    string `json:"brand_raw"`
	SizeRaw     string `json:"size_raw"`
	CategoryRaw string `json:"category_raw"`
	FirstSeenAt int64  `json:"first_seen_at"`
	LastSeenAt  int64  `json:"last_seen_at"`
}

// CanonicalProduct is a retailer-agnostic product identity.
type CanonicalProduct struct {
	ID           string   `json:"id"`
	BrandNorm    string   `json:"brand_norm"`
	NameNorm     string   `json:"name_norm"`
	SizeValue    *float64 `json:"size_value,omitempty"`
	SizeUnit     string   `json:"size_unit,omitempty"`
	CategoryNorm string   `json:"category_norm"`
	CreatedAt    int64    `json:"created_at"`
}

// Link associates a listing with a canonical product.
type Link struct {
	ID          string  `json:"id"`
	ListingID   string  `json:"listing_id"`
	CanonicalID string  `json:"canonical_id"`
	Confidence  float64 `json:"confidence"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
	CreatedAt   int64   `json:"created_at"`
}

// Observation is one immutable point in a listing's price series.
type Observation struct {
	ID           string   `json:"id"`
	ListingID    string   `json:"listing_id"`
	ObservedAt   int64    `json:"observed_at"`
	PriceCurrent float64  `json:"price_current"`
	PriceList    *float64 `json:"price_list,omitempty"`
	Currency     string   `json:"currency"`
	PromoText    string   `json:"promo_text,omitempty"`
	InStock      bool     `json:"in_stock"`
	SourceHash   string   `json:"source_hash"`
}

// Evaluation is the scored verdict for one observation under one scoring
// version. RuleTrace holds the per-gate JSON produced by the engine.
type Evaluation struct {
	ID                 string   `json:"id"`
	CanonicalID        string   `json:"canonical_id"`
	RetailerID         string   `json:"retailer_id"`
	ObservationID      string   `json:"observation_id"`
	Score              float64  `json:"score"`
	Label              string   `json:"label"`
	DiscountPct        *float64 `json:"discount_pct,omitempty"`
	HistDeltaPct       *float64 `json:"hist_delta_pct,omitempty"`
	CrossStoreDeltaPct *float64 `json:"cross_store_delta_pct,omitempty"`
	AnchorAnomaly      bool     `json:"anchor_anomaly"`
	RuleTrace          string   `json:"rule_trace"`
	ScoringVersion     string   `json:"scoring_version"`
	CreatedAt          int64    `json:"created_at"`
}

// RunSource is the per-source outcome inside a pipeline run.
type RunSource struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	SourceName   string `json:"source_name"`
	Mode         string `json:"mode"`
	OfferCount   int    `json:"offer_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PipelineRun is one orchestration cycle's record, with its per-source rows.
type PipelineRun struct {
	ID                string      `json:"id"`
	StartedAt         int64       `json:"started_at"`
	FinishedAt        int64       `json:"finished_at"`
	Status            string      `json:"status"`
	TotalOffers       int         `json:"total_offers"`
	TotalObservations int         `json:"total_observations"`
	TotalEvaluations  int         `json:"total_evaluations"`
	ErrorMessage      string      `json:"error_message,omitempty"`
	CreatedAt         int64       `json:"created_at"`
	Sources           []RunSource `json:"sources,omitempty"`
}

// Deal is an evaluation joined with its product, retailer, and price context,
// restricted to each listing's most recent observation.
type Deal struct {
	EvaluationID       string   `json:"evaluation_id"`
	Retailer           string   `json:"retailer"`
	Brand              string   `json:"brand"`
	Product            string   `json:"product"`
	URL                string   `json:"url,omitempty"`
	PriceCurrent       float64  `json:"price_current"`
	PriceList          *float64 `json:"price_list,omitempty"`
	Score              float64  `json:"score"`
	Label              string   `json:"label"`
	DiscountPct        *float64 `json:"discount_pct,omitempty"`
	HistDeltaPct       *float64 `json:"hist_delta_pct,omitempty"`
	CrossStoreDeltaPct *float64 `json:"cross_store_delta_pct,omitempty"`
	AnchorAnomaly      bool     `json:"anchor_anomaly"`
	ScoringVersion     string   `json:"scoring_version"`
	ObservedAt         int64    `json:"observed_at"`
}

// DealFilter narrows a Deals query. Zero values mean no constraint except
// Limit, which defaults to 50.
type DealFilter struct {
	MinScore           float64
	Label              string
	Retailer           string
	Brand              string
	MinDiscountPct     *float64
	CrossStorePositive bool
	Limit              int
}

// Stats is the aggregate shape served by the stats endpoint.
type Stats struct {
	Retailers    int            `json:"retailers"`
	Listings     int            `json:"listings"`
	Canonical    int            `json:"canonical_products"`
	Observations int            `json:"price_observations"`
	Evaluations  int            `json:"discount_evaluations"`
	Runs         int            `json:"pipeline_runs"`
	ByLabel      map[string]int `json:"evaluations_by_label"`
}
