package store

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/veraz/dbopen"
	"github.com/hazyhaar/veraz/idgen"
	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return NewStore(db)
}

func nowMs() int64 { return time.Now().UnixMilli() }

// seedListing creates a retailer and one of its listings.
func seedListing(t *testing.T, s *Store, domain, externalID string) (*Retailer, *Listing) {
	t.Helper()
	ctx := context.Background()

	r := &Retailer{ID: idgen.NewPrefixed("ret_"), Name: domain, Domain: domain, CreatedAt: nowMs()}
	if err := s.UpsertRetailer(ctx, r); err != nil {
		t.Fatalf("upsert retailer: %v", err)
	}
	l := &Listing{
		ID: idgen.NewPrefixed("lst_"), RetailerID: r.ID, ExternalID: externalID,
		Title: "CeraVe Limpiador Espumoso 473 ml", BrandRaw: "CeraVe",
		FirstSeenAt: nowMs(), LastSeenAt: nowMs(),
	}
	if err := s.UpsertListing(ctx, l); err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	return r, l
}

func appendObs(t *testing.T, s *Store, listingID string, observedAt int64, price float64) *Observation {
	t.Helper()
	o := &Observation{
		ID: idgen.NewPrefixed("obs_"), ListingID: listingID, ObservedAt: observedAt,
		PriceCurrent: price, Currency: "CLP", InStock: true, SourceHash: idgen.New(),
	}
	inserted, err := s.AppendObservation(context.Background(), o)
	if err != nil {
		t.Fatalf("append observation: %v", err)
	}
	if !inserted {
		t.Fatalf("observation at %d not inserted", observedAt)
	}
	return o
}

func TestApplySchemaIdempotent(t *testing.T) {
	// WHAT: ApplySchema can run on every startup; the ledger records each
	// migration exactly once.
	// WHY: Migrations are applied unconditionally at boot, never by hand.
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplySchema(db); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	names, err := AppliedMigrations(db)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(names) != len(migrations) {
		t.Fatalf("ledger entries: got %d, want %d", len(names), len(migrations))
	}
	if names[0] != "001_core_relations" {
		t.Errorf("first migration: got %q", names[0])
	}
}

func TestUpsertRetailerConvergesOnDomain(t *testing.T) {
	// WHAT: Two upserts for the same domain converge on one row, keeping the
	// original id and refreshing the name.
	// WHY: Every cycle upserts its sources; ids must stay stable across cycles.
	s := openTestStore(t)
	ctx := context.Background()

	a := &Retailer{ID: idgen.NewPrefixed("ret_"), Name: "Salcobrand", Domain: "salcobrand.cl", CreatedAt: nowMs()}
	if err := s.UpsertRetailer(ctx, a); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	b := &Retailer{ID: idgen.NewPrefixed("ret_"), Name: "Salcobrand SpA", Domain: "salcobrand.cl", CreatedAt: nowMs()}
	if err := s.UpsertRetailer(ctx, b); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if a.ID != b.ID {
		t.Errorf("ids diverged: %s vs %s", a.ID, b.ID)
	}
	got, err := s.GetRetailer(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Salcobrand SpA" {
		t.Errorf("name not refreshed: %q", got.Name)
	}

	all, err := s.ListRetailers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("rows: got %d, want 1", len(all))
	}
}

func TestUpsertListingPreservesFirstSeen(t *testing.T) {
	// WHAT: Re-upserting a listing refreshes descriptive fields and
	// last_seen_at but never moves first_seen_at.
	// WHY: first_seen_at anchors how long a listing has been tracked.
	s := openTestStore(t)
	ctx := context.Background()
	r, l := seedListing(t, s, "salcobrand.cl", "SB-CV-001")
	firstSeen := l.FirstSeenAt

	again := &Listing{
		ID: idgen.NewPrefixed("lst_"), RetailerID: r.ID, ExternalID: "SB-CV-001",
		Title: "CeraVe Limpiador Espumoso 473ml NUEVO", BrandRaw: "CeraVe",
		FirstSeenAt: firstSeen + 99999, LastSeenAt: firstSeen + 99999,
	}
	if err := s.UpsertListing(ctx, again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if again.ID != l.ID {
		t.Errorf("ids diverged: %s vs %s", again.ID, l.ID)
	}
	if again.FirstSeenAt != firstSeen {
		t.Errorf("first_seen_at moved: got %d, want %d", again.FirstSeenAt, firstSeen)
	}
	n, err := s.CountListings(ctx, r.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows: got %d, want 1", n)
	}
}

func TestEnsureCanonicalConverges(t *testing.T) {
	// WHAT: The same identity tuple always resolves to the same canonical row,
	// including identities without a parseable size.
	// WHY: The identity unique index is the resolver's optimistic lock.
	s := openTestStore(t)
	ctx := context.Background()
	size := 473.0

	a := &CanonicalProduct{
		ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave",
		NameNorm: "limpiador espumoso", SizeValue: &size, SizeUnit: "ml",
		CreatedAt: nowMs(),
	}
	if err := s.EnsureCanonical(ctx, a); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	b := &CanonicalProduct{
		ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave",
		NameNorm: "limpiador espumoso", SizeValue: &size, SizeUnit: "ml",
		CreatedAt: nowMs(),
	}
	if err := s.EnsureCanonical(ctx, b); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("ids diverged: %s vs %s", a.ID, b.ID)
	}

	// Nil size is a distinct identity, and converges with itself.
	c := &CanonicalProduct{
		ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave",
		NameNorm: "limpiador espumoso", CreatedAt: nowMs(),
	}
	if err := s.EnsureCanonical(ctx, c); err != nil {
		t.Fatalf("nil-size ensure: %v", err)
	}
	if c.ID == a.ID {
		t.Error("nil size must not collide with sized identity")
	}
	d := &CanonicalProduct{
		ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave",
		NameNorm: "limpiador espumoso", CreatedAt: nowMs(),
	}
	if err := s.EnsureCanonical(ctx, d); err != nil {
		t.Fatalf("nil-size reensure: %v", err)
	}
	if d.ID != c.ID {
		t.Errorf("nil-size identity diverged: %s vs %s", d.ID, c.ID)
	}
}

func TestEnsureLinkIdempotent(t *testing.T) {
	// WHAT: Linking the same listing and canonical twice keeps one row with
	// the original metadata.
	// WHY: The resolver re-links on every cycle.
	s := openTestStore(t)
	ctx := context.Background()
	_, l := seedListing(t, s, "salcobrand.cl", "SB-CV-001")

	cp := &CanonicalProduct{ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave", NameNorm: "limpiador espumoso", CreatedAt: nowMs()}
	if err := s.EnsureCanonical(ctx, cp); err != nil {
		t.Fatalf("canonical: %v", err)
	}

	first := &Link{
		ID: idgen.NewPrefixed("lnk_"), ListingID: l.ID, CanonicalID: cp.ID,
		Confidence: 0.98, Method: "rule", Status: "AUTO_ACCEPTED", CreatedAt: nowMs(),
	}
	if err := s.EnsureLink(ctx, first); err != nil {
		t.Fatalf("first link: %v", err)
	}
	second := &Link{
		ID: idgen.NewPrefixed("lnk_"), ListingID: l.ID, CanonicalID: cp.ID,
		Confidence: 0.50, Method: "manual", Status: "PENDING", CreatedAt: nowMs(),
	}
	if err := s.EnsureLink(ctx, second); err != nil {
		t.Fatalf("second link: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ids diverged: %s vs %s", second.ID, first.ID)
	}
	if second.Confidence != 0.98 || second.Method != "rule" {
		t.Errorf("existing link mutated: %+v", second)
	}
}

func TestAppendObservationDedupes(t *testing.T) {
	// WHAT: A second point at the same (listing, observed_at) is reported as
	// not inserted and leaves the ledger untouched.
	// WHY: Replayed batches must not distort price history.
	s := openTestStore(t)
	ctx := context.Background()
	_, l := seedListing(t, s, "salcobrand.cl", "SB-CV-001")
	ts := nowMs()

	appendObs(t, s, l.ID, ts, 12990)

	dup := &Observation{
		ID: idgen.NewPrefixed("obs_"), ListingID: l.ID, ObservedAt: ts,
		PriceCurrent: 9990, Currency: "CLP", InStock: true, SourceHash: "other",
	}
	inserted, err := s.AppendObservation(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate append: %v", err)
	}
	if inserted {
		t.Error("duplicate timestamp must not insert")
	}

	latest, err := s.LatestObservation(ctx, l.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.PriceCurrent != 12990 {
		t.Errorf("ledger overwritten: got %v, want 12990", latest.PriceCurrent)
	}
	// The rejected append reports the stored row's ID so callers can key
	// evaluations off the existing point.
	if dup.ID != latest.ID {
		t.Errorf("duplicate ID: got %s, want stored %s", dup.ID, latest.ID)
	}
}

func TestHistoryOrderAndLimit(t *testing.T) {
	// WHAT: History returns current prices newest-first, capped at limit;
	// ListPriceHistory skips points without a list price.
	// WHY: The scoring engine consumes these series as ordered inputs.
	s := openTestStore(t)
	ctx := context.Background()
	_, l := seedListing(t, s, "salcobrand.cl", "SB-CV-001")
	base := nowMs()

	for i, price := range []float64{17990, 16990, 15990, 12990} {
		o := &Observation{
			ID: idgen.NewPrefixed("obs_"), ListingID: l.ID,
			ObservedAt: base + int64(i)*1000, PriceCurrent: price,
			Currency: "CLP", InStock: true, SourceHash: idgen.New(),
		}
		if i == 3 {
			list := 17990.0
			o.PriceList = &list
		}
		if _, err := s.AppendObservation(ctx, o); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	hist, err := s.History(ctx, l.ID, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []float64{12990, 15990, 16990}
	if len(hist) != len(want) {
		t.Fatalf("history points: got %d, want %d", len(hist), len(want))
	}
	for i := range want {
		if hist[i] != want[i] {
			t.Errorf("history[%d]: got %v, want %v", i, hist[i], want[i])
		}
	}

	lists, err := s.ListPriceHistory(ctx, l.ID, 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(lists) != 1 || lists[0] != 17990 {
		t.Errorf("list prices: got %v, want [17990]", lists)
	}
}

func TestCrossStoreLatest(t *testing.T) {
	// WHAT: Cross-store lookup returns each peer listing's latest price only,
	// excluding the caller's own listing.
	// WHY: Peer comparison uses current peer prices, never their history.
	s := openTestStore(t)
	ctx := context.Background()
	_, sb := seedListing(t, s, "salcobrand.cl", "SB-CV-001")
	_, cv := seedListing(t, s, "cruzverde.cl", "CV-CV-010")

	cp := &CanonicalProduct{ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave", NameNorm: "limpiador espumoso", CreatedAt: nowMs()}
	if err := s.EnsureCanonical(ctx, cp); err != nil {
		t.Fatalf("canonical: %v", err)
	}
	for _, lst := range []*Listing{sb, cv} {
		lnk := &Link{
			ID: idgen.NewPrefixed("lnk_"), ListingID: lst.ID, CanonicalID: cp.ID,
			Confidence: 0.98, Method: "rule", Status: "AUTO_ACCEPTED", CreatedAt: nowMs(),
		}
		if err := s.EnsureLink(ctx, lnk); err != nil {
			t.Fatalf("link: %v", err)
		}
	}

	base := nowMs()
	appendObs(t, s, sb.ID, base, 12990)
	appendObs(t, s, cv.ID, base, 14990)
	appendObs(t, s, cv.ID, base+1000, 13490) // supersedes 14990

	peers, err := s.CrossStoreLatest(ctx, cp.ID, sb.ID, 20)
	if err != nil {
		t.Fatalf("cross store: %v", err)
	}
	if len(peers) != 1 || peers[0] != 13490 {
		t.Errorf("peers: got %v, want [13490]", peers)
	}
}

func TestInsertEvaluationVersioned(t *testing.T) {
	// WHAT: One evaluation per (observation, scoring version); a new version
	// scores the same observation again.
	// WHY: Re-running a cycle must not duplicate verdicts, while scoring
	// upgrades must be able to re-judge old observations.
	s := openTestStore(t)
	ctx := context.Background()
	r, l := seedListing(t, s, "salcobrand.cl", "SB-CV-001")
	cp := &CanonicalProduct{ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave", NameNorm: "limpiador espumoso", CreatedAt: nowMs()}
	if err := s.EnsureCanonical(ctx, cp); err != nil {
		t.Fatalf("canonical: %v", err)
	}
	obs := appendObs(t, s, l.ID, nowMs(), 12990)

	mk := func(version string) *Evaluation {
		return &Evaluation{
			ID: idgen.NewPrefixed("eval_"), CanonicalID: cp.ID, RetailerID: r.ID,
			ObservationID: obs.ID, Score: 0.81, Label: "REAL",
			RuleTrace: "{}", ScoringVersion: version, CreatedAt: nowMs(),
		}
	}

	inserted, err := s.InsertEvaluation(ctx, mk("v1"))
	if err != nil || !inserted {
		t.Fatalf("first insert: %v %v", inserted, err)
	}
	inserted, err = s.InsertEvaluation(ctx, mk("v1"))
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Error("same observation and version must not insert twice")
	}
	inserted, err = s.InsertEvaluation(ctx, mk("v2"))
	if err != nil || !inserted {
		t.Fatalf("new version insert: %v %v", inserted, err)
	}
}

func TestDealsLatestObservationOnly(t *testing.T) {
	// WHAT: Deals surfaces only evaluations attached to each listing's most
	// recent observation, honoring score and label filters.
	// WHY: A verdict on a superseded price is stale and must not be shown.
	s := openTestStore(t)
	ctx := context.Background()
	r, l := seedListing(t, s, "salcobrand.cl", "SB-CV-001")
	cp := &CanonicalProduct{ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave", NameNorm: "limpiador espumoso", CreatedAt: nowMs()}
	if err := s.EnsureCanonical(ctx, cp); err != nil {
		t.Fatalf("canonical: %v", err)
	}

	base := nowMs()
	old := appendObs(t, s, l.ID, base, 15990)
	fresh := appendObs(t, s, l.ID, base+1000, 12990)

	for i, obs := range []*Observation{old, fresh} {
		disc := 27.8
		e := &Evaluation{
			ID: idgen.NewPrefixed("eval_"), CanonicalID: cp.ID, RetailerID: r.ID,
			ObservationID: obs.ID, Score: 0.7 + float64(i)*0.1, Label: "REAL",
			DiscountPct: &disc, RuleTrace: "{}", ScoringVersion: "v1", CreatedAt: nowMs(),
		}
		if _, err := s.InsertEvaluation(ctx, e); err != nil {
			t.Fatalf("evaluation %d: %v", i, err)
		}
	}

	deals, err := s.Deals(ctx, DealFilter{MinScore: 0.5})
	if err != nil {
		t.Fatalf("deals: %v", err)
	}
	if len(deals) != 1 {
		t.Fatalf("deals: got %d, want 1 (stale verdict leaked)", len(deals))
	}
	d := deals[0]
	if d.PriceCurrent != 12990 {
		t.Errorf("deal price: got %v, want latest 12990", d.PriceCurrent)
	}
	if d.Retailer != "salcobrand.cl" || d.Brand != "cerave" {
		t.Errorf("deal context: %+v", d)
	}

	// Filters.
	none, err := s.Deals(ctx, DealFilter{MinScore: 0.95})
	if err != nil {
		t.Fatalf("deals min score: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("min score filter leaked %d deals", len(none))
	}
	none, err = s.Deals(ctx, DealFilter{Label: "LIKELY_FAKE"})
	if err != nil {
		t.Fatalf("deals label: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("label filter leaked %d deals", len(none))
	}
}

func TestInsertRunWithSources(t *testing.T) {
	// WHAT: Run records persist atomically with their per-source rows and
	// come back through LatestRun and ListRuns.
	// WHY: Per-source modes are the operator's view of degraded cycles.
	s := openTestStore(t)
	ctx := context.Background()

	first := &PipelineRun{
		ID: idgen.NewPrefixed("run_"), StartedAt: nowMs(), FinishedAt: nowMs() + 500,
		Status: RunDegraded, TotalOffers: 36, TotalObservations: 36, TotalEvaluations: 3,
		CreatedAt: nowMs(),
		Sources: []RunSource{
			{ID: idgen.NewPrefixed("rsc_"), SourceName: "Salcobrand", Mode: SourceLive, OfferCount: 36},
			{ID: idgen.NewPrefixed("rsc_"), SourceName: "Cruz Verde", Mode: SourceError, ErrorMessage: "http 503"},
		},
	}
	if err := s.InsertRun(ctx, first); err != nil {
		t.Fatalf("insert first run: %v", err)
	}

	second := &PipelineRun{
		ID: idgen.NewPrefixed("run_"), StartedAt: nowMs() + 10_000, FinishedAt: nowMs() + 10_500,
		Status: RunOK, CreatedAt: nowMs() + 10_000,
		Sources: []RunSource{
			{ID: idgen.NewPrefixed("rsc_"), SourceName: "Salcobrand", Mode: SourceFallback, OfferCount: 36},
		},
	}
	if err := s.InsertRun(ctx, second); err != nil {
		t.Fatalf("insert second run: %v", err)
	}

	latest, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if latest.ID != second.ID || latest.Status != RunOK {
		t.Errorf("latest run: %+v", latest)
	}
	if len(latest.Sources) != 1 || latest.Sources[0].Mode != SourceFallback {
		t.Errorf("latest sources: %+v", latest.Sources)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs: got %d, want 2", len(runs))
	}
	if runs[1].ID != first.ID || len(runs[1].Sources) != 2 {
		t.Errorf("older run: %+v", runs[1])
	}
	if runs[1].Sources[0].SourceName != "Cruz Verde" || runs[1].Sources[0].ErrorMessage != "http 503" {
		t.Errorf("error source: %+v", runs[1].Sources[0])
	}
}

func TestGetStats(t *testing.T) {
	// WHAT: Counts per relation plus evaluations grouped by label.
	// WHY: The stats endpoint is the cheapest liveness check on the corpus.
	s := openTestStore(t)
	ctx := context.Background()
	r, l := seedListing(t, s, "salcobrand.cl", "SB-CV-001")
	cp := &CanonicalProduct{ID: idgen.NewPrefixed("can_"), BrandNorm: "cerave", NameNorm: "limpiador espumoso", CreatedAt: nowMs()}
	if err := s.EnsureCanonical(ctx, cp); err != nil {
		t.Fatalf("canonical: %v", err)
	}
	obs := appendObs(t, s, l.ID, nowMs(), 12990)
	e := &Evaluation{
		ID: idgen.NewPrefixed("eval_"), CanonicalID: cp.ID, RetailerID: r.ID,
		ObservationID: obs.ID, Score: 0.3, Label: "SUSPICIOUS",
		RuleTrace: "{}", ScoringVersion: "v1", CreatedAt: nowMs(),
	}
	if _, err := s.InsertEvaluation(ctx, e); err != nil {
		t.Fatalf("evaluation: %v", err)
	}

	st, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Retailers != 1 || st.Listings != 1 || st.Canonical != 1 ||
		st.Observations != 1 || st.Evaluations != 1 {
		t.Errorf("counts: %+v", st)
	}
	if st.ByLabel["SUSPICIOUS"] != 1 {
		t.Errorf("by label: %v", st.ByLabel)
	}
}
