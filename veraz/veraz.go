// CLAUDE:SUMMARY Pipeline facade: per-source collection with failure isolation, resolve/append/score per offer, run records on every exit path.
// Package veraz detects misleading retail discounts. A cycle pulls raw offers
// from each configured source, resolves them onto retailer-agnostic product
// identities, appends immutable price observations, and scores each new
// observation against its own history and its cross-store peers.
//
// Source failures are isolated: one broken retailer degrades the cycle, it
// never aborts it. Storage failures are different; a ledger that cannot be
// written aborts the cycle and fails the run. Every cycle leaves a pipeline
// run record, including cycles that fail outright.
package veraz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hazyhaar/veraz/idgen"
	"github.com/hazyhaar/veraz/veraz/internal/collector"
	"github.com/hazyhaar/veraz/veraz/internal/identity"
	"github.com/hazyhaar/veraz/veraz/internal/scoring"
	"github.com/hazyhaar/veraz/veraz/internal/store"
)

// Service runs the discount-authenticity pipeline and serves its results.
type Service struct {
	cfg     Config
	log     *slog.Logger
	store   *store.Store
	metrics *Metrics

	// seen caches (offer hash, scoring version) pairs so replayed batches
	// skip the ledger append and re-score. Listing freshness updates still
	// run on a hit.
	seen *lru.Cache[string, struct{}]

	// overrides are injected collectors keyed by lowercase source name.
	overrides map[string]collector.Collector
}

// Option customises New.
type Option func(*Service)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics sets the metrics instruments. Default: a fresh NewMetrics().
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithCollector injects a collector for the named source, replacing whatever
// the source's configuration would build.
func WithCollector(source string, c collector.Collector) Option {
	return func(s *Service) {
		s.overrides[strings.ToLower(strings.TrimSpace(source))] = c
	}
}

// New creates the service, applies pending schema migrations, and validates
// the configuration.
func New(db *sql.DB, cfg Config, opts ...Option) (*Service, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("veraz: schema: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		log:       slog.Default(),
		store:     store.NewStore(db),
		overrides: map[string]collector.Collector{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	seen, err := lru.New[string, struct{}](cfg.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("veraz: dedupe cache: %w", err)
	}
	s.seen = seen
	return s, nil
}

// Metrics returns the service's instruments.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Start runs one cycle immediately, then one per configured interval until
// the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.RunCycle(ctx); err != nil {
		s.log.Error("cycle failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunCycle(ctx); err != nil {
				s.log.Error("cycle failed", "error", err)
			}
		}
	}
}

// RunCycle executes one full pipeline cycle and always persists a run record,
// whatever the outcome. The returned run carries per-source modes; the error
// is non-nil when every source failed, storage broke mid-cycle, or the
// context was cancelled.
func (s *Service) RunCycle(ctx context.Context) (*store.PipelineRun, error) {
	started := time.Now()
	run := &store.PipelineRun{
		ID:        idgen.NewPrefixed("run_"),
		StartedAt: started.UnixMilli(),
		CreatedAt: started.UnixMilli(),
	}
	s.log.Info("cycle start", "run_id", run.ID, "sources", len(s.cfg.Sources))

	var cycleErr error
	failed := 0
	for _, src := range s.cfg.Sources {
		if err := ctx.Err(); err != nil {
			cycleErr = err
			break
		}
		rs, err := s.collectSource(ctx, src)
		run.Sources = append(run.Sources, rs.RunSource)
		run.TotalOffers += rs.OfferCount
		run.TotalObservations += rs.observations
		run.TotalEvaluations += rs.evaluations
		s.metrics.OffersTotal.WithLabelValues(src.Name, rs.Mode).Add(float64(rs.OfferCount))
		if rs.Mode == store.SourceError {
			failed++
		}
		if err != nil {
			// A storage failure is not a source failure: the ledger itself
			// is unwritable, so remaining sources are abandoned and the run
			// fails rather than reporting partial work as healthy.
			cycleErr = err
			break
		}
	}

	switch {
	case cycleErr != nil:
		run.Status = store.RunFailed
		run.ErrorMessage = cycleErr.Error()
	case failed == len(run.Sources) && len(run.Sources) > 0:
		run.Status = store.RunFailed
		run.ErrorMessage = ErrAllSourcesFailed.Error()
		cycleErr = ErrAllSourcesFailed
	case failed > 0 || degraded(run.Sources):
		run.Status = store.RunDegraded
	default:
		run.Status = store.RunOK
	}
	run.FinishedAt = time.Now().UnixMilli()

	// The run record is written even for failed cycles; losing it would
	// blind operators exactly when they need the trail.
	if err := s.store.InsertRun(ctx, run); err != nil {
		s.log.Error("run record not persisted", "run_id", run.ID, "error", err)
		if cycleErr == nil {
			cycleErr = err
		}
	}

	s.metrics.RunsTotal.WithLabelValues(run.Status).Inc()
	s.metrics.RunDuration.Observe(time.Since(started).Seconds())
	s.log.Info("cycle done",
		"run_id", run.ID,
		"status", run.Status,
		"offers", run.TotalOffers,
		"observations", run.TotalObservations,
		"evaluations", run.TotalEvaluations,
		"duration_ms", time.Since(started).Milliseconds())
	return run, cycleErr
}

func degraded(sources []store.RunSource) bool {
	for _, src := range sources {
		if src.Mode != store.SourceLive {
			return true
		}
	}
	return false
}

type sourceResult struct {
	store.RunSource
	observations int
	evaluations  int
}

// collectSource collects one source's batch and ingests it, applying the
// OnEmptySource policy when the batch errors or comes back empty. OfferCount
// is the collected batch size; offers dropped by validation are counted in
// the skip metric, not subtracted here. A non-nil error means storage broke
// and the cycle must stop.
func (s *Service) collectSource(ctx context.Context, src SourceConfig) (sourceResult, error) {
	res := sourceResult{RunSource: store.RunSource{
		ID:         idgen.NewPrefixed("rsc_"),
		SourceName: src.Name,
		Mode:       store.SourceLive,
	}}

	col, err := s.collectorFor(src)
	var offers []collector.Offer
	if err == nil {
		// A source that asked for demo data gets it as its live mode; demo
		// is only a fallback when it stands in for a real collector.
		if col.Kind() == collector.KindDemo && src.Kind != collector.KindDemo {
			res.Mode = store.SourceFallback
		}
		offers, err = col.Collect(ctx)
	}

	if err != nil || len(offers) == 0 {
		if err == nil {
			err = fmt.Errorf("source %s: empty batch", src.Name)
		}
		if s.cfg.OnEmptySource == PolicySubstitute {
			if demo, ok := collector.DemoFor(src.Name); ok {
				s.log.Warn("source degraded, substituting demo data",
					"source", src.Name, "error", err)
				if offers, err = demo.Collect(ctx); err == nil {
					res.Mode = store.SourceFallback
				}
			}
		}
		if err != nil {
			s.log.Warn("source failed", "source", src.Name, "error", err)
			res.Mode = store.SourceError
			res.ErrorMessage = err.Error()
			return res, nil
		}
	}

	res.OfferCount = len(offers)
	for _, offer := range offers {
		obsInserted, evalInserted, err := s.ingestOffer(ctx, offer)
		if err != nil {
			if errors.Is(err, errInvalidOffer) {
				// One malformed offer must not sink the batch.
				s.log.Warn("offer skipped",
					"source", src.Name, "external_id", offer.ExternalID, "error", err)
				s.metrics.OffersSkipped.WithLabelValues(src.Name).Inc()
				continue
			}
			res.ErrorMessage = err.Error()
			return res, fmt.Errorf("source %s: %w", src.Name, err)
		}
		if obsInserted {
			res.observations++
			s.metrics.ObservationsInserted.Inc()
		}
		if evalInserted {
			res.evaluations++
		}
	}
	return res, nil
}

// collectorFor resolves a source to its collector: injected override first,
// then the configured API endpoint, then the built-in demo.
func (s *Service) collectorFor(src SourceConfig) (collector.Collector, error) {
	if c, ok := s.overrides[strings.ToLower(strings.TrimSpace(src.Name))]; ok {
		return c, nil
	}
	if src.Kind == collector.KindAPI && src.API != nil {
		return collector.NewAPI(src.Name, src.Domain, *src.API, nil), nil
	}
	if demo, ok := collector.DemoFor(src.Name); ok {
		return demo, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoCollector, src.Name)
}

// ingestOffer resolves one offer onto its canonical identity, appends the
// price observation, and scores it against context that includes the new
// point. Validation failures wrap errInvalidOffer and only skip the offer;
// any other error is a storage failure the caller must treat as fatal.
func (s *Service) ingestOffer(ctx context.Context, o collector.Offer) (obsInserted, evalInserted bool, err error) {
	if o.PriceCurrent <= 0 {
		return false, false, fmt.Errorf("%w: non-positive price %v", errInvalidOffer, o.PriceCurrent)
	}
	if o.ExternalID == "" {
		return false, false, fmt.Errorf("%w: missing external id", errInvalidOffer)
	}

	now := time.Now().UnixMilli()
	retailer := &store.Retailer{
		ID:        idgen.NewPrefixed("ret_"),
		Name:      o.RetailerName,
		Domain:    o.RetailerDomain,
		CreatedAt: now,
	}
	if err := s.store.UpsertRetailer(ctx, retailer); err != nil {
		return false, false, err
	}

	listing := &store.Listing{
		ID:          idgen.NewPrefixed("lst_"),
		RetailerID:  retailer.ID,
		ExternalID:  o.ExternalID,
		URL:         o.URL,
		Title:       o.Title,
		BrandRaw:    o.Brand,
		SizeRaw:     o.SizeRaw,
		CategoryRaw: o.CategoryRaw,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	if err := s.store.UpsertListing(ctx, listing); err != nil {
		return false, false, err
	}

	key := identity.MakeKey(o.Brand, o.Title, o.SizeRaw)
	canonical := &store.CanonicalProduct{
		ID:           idgen.NewPrefixed("can_"),
		BrandNorm:    key.Brand,
		NameNorm:     key.Name,
		SizeValue:    key.SizeValue,
		SizeUnit:     key.SizeUnit,
		CategoryNorm: identity.NormalizeText(o.CategoryRaw),
		CreatedAt:    now,
	}
	if err := s.store.EnsureCanonical(ctx, canonical); err != nil {
		return false, false, err
	}

	link := &store.Link{
		ID:          idgen.NewPrefixed("lnk_"),
		ListingID:   listing.ID,
		CanonicalID: canonical.ID,
		Confidence:  0.98,
		Method:      "rule",
		Status:      "AUTO_ACCEPTED",
		CreatedAt:   now,
	}
	if err := s.store.EnsureLink(ctx, link); err != nil {
		return false, false, err
	}

	// The replay cache keys on offer hash plus scoring version: a replayed
	// offer has still refreshed the retailer and listing rows above, and a
	// scoring version bump re-scores points the ledger already holds.
	hash := o.Hash()
	cacheKey := hash + "|" + s.cfg.ScoringVersion
	if _, dup := s.seen.Get(cacheKey); dup {
		return false, false, nil
	}

	currency := o.Currency
	if currency == "" {
		currency = "CLP"
	}
	obs := &store.Observation{
		ID:           idgen.NewPrefixed("obs_"),
		ListingID:    listing.ID,
		ObservedAt:   o.ObservedAt.UTC().UnixMilli(),
		PriceCurrent: o.PriceCurrent,
		PriceList:    o.PriceList,
		Currency:     currency,
		PromoText:    o.PromoText,
		InStock:      o.InStock,
		SourceHash:   hash,
	}
	obsInserted, err = s.store.AppendObservation(ctx, obs)
	if err != nil {
		return false, false, err
	}

	// Context series are read after the append, so the new point counts in
	// its own history. Cross-store peers still exclude the listing itself.
	history, err := s.store.History(ctx, listing.ID, s.cfg.HistoryLimit)
	if err != nil {
		return obsInserted, false, err
	}
	listHistory, err := s.store.ListPriceHistory(ctx, listing.ID, s.cfg.HistoryLimit)
	if err != nil {
		return obsInserted, false, err
	}
	peers, err := s.store.CrossStoreLatest(ctx, canonical.ID, listing.ID, s.cfg.CrossStoreLimit)
	if err != nil {
		return obsInserted, false, err
	}

	recent := len(history)
	if recent > 6 {
		recent = 6
	}
	verdict := scoring.Evaluate(scoring.Input{
		PriceCurrent:       o.PriceCurrent,
		PriceList:          o.PriceList,
		HistoryPrices:      history,
		HistoryListPrices:  listHistory,
		CrossStorePrices:   peers,
		RecentObservations: recent,
	})

	trace, err := json.Marshal(verdict.Trace)
	if err != nil {
		return obsInserted, false, fmt.Errorf("marshal trace: %w", err)
	}
	eval := &store.Evaluation{
		ID:                 idgen.NewPrefixed("eval_"),
		CanonicalID:        canonical.ID,
		RetailerID:         retailer.ID,
		ObservationID:      obs.ID,
		Score:              verdict.Score,
		Label:              string(verdict.Label),
		DiscountPct:        verdict.DiscountPct,
		HistDeltaPct:       verdict.HistDeltaPct,
		CrossStoreDeltaPct: verdict.CrossStoreDeltaPct,
		AnchorAnomaly:      verdict.AnchorAnomaly,
		RuleTrace:          string(trace),
		ScoringVersion:     s.cfg.ScoringVersion,
		CreatedAt:          now,
	}
	evalInserted, err = s.store.InsertEvaluation(ctx, eval)
	if err != nil {
		return obsInserted, false, err
	}
	if evalInserted {
		s.metrics.EvaluationsTotal.WithLabelValues(eval.Label).Inc()
	}
	s.seen.Add(cacheKey, struct{}{})
	return obsInserted, evalInserted, nil
}

// Deals returns scored deals for the serving API.
func (s *Service) Deals(ctx context.Context, f DealFilter) ([]*Deal, error) {
	return s.store.Deals(ctx, f)
}

// LatestRun returns the most recent pipeline run, or nil.
func (s *Service) LatestRun(ctx context.Context) (*PipelineRun, error) {
	return s.store.LatestRun(ctx)
}

// ListRuns returns the most recent pipeline runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*PipelineRun, error) {
	return s.store.ListRuns(ctx, limit)
}

// Retailers returns all known retailers.
func (s *Service) Retailers(ctx context.Context) ([]*Retailer, error) {
	return s.store.ListRetailers(ctx)
}

// Stats returns aggregate corpus counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.GetStats(ctx)
}
