// CLAUDE:SUMMARY Applies the veraz schema through an append-only schema_migrations ledger.
package store

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order; each runs once and is recorded in the
// schema_migrations ledger by name. Never edit an applied migration; add a
// new one.
var migrations = []struct {
	name string
	sql  string
}{
	{"001_core_relations", migration001},
	{"002_run_sources", migration002},
}

const migration001 = `
-- Selling sources. Created on first sighting, never deleted.
CREATE TABLE IF NOT EXISTS retailers (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    domain     TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);

-- A retailer's own representation of a product, upserted on every ingestion.
CREATE TABLE IF NOT EXISTS listings (
    id            TEXT PRIMARY KEY,
    retailer_id   TEXT NOT NULL REFERENCES retailers(id),
    external_id   TEXT NOT NULL,
    url           TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    brand_raw     TEXT NOT NULL DEFAULT '',
    size_raw      TEXT NOT NULL DEFAULT '',
    category_raw  TEXT NOT NULL DEFAULT '',
    first_seen_at INTEGER NOT NULL,
    last_seen_at  INTEGER NOT NULL,
    UNIQUE (retailer_id, external_id)
);

-- Retailer-agnostic product identities, created lazily on first unmatched key.
CREATE TABLE IF NOT EXISTS canonical_products (
    id            TEXT PRIMARY KEY,
    brand_norm    TEXT NOT NULL,
    name_norm     TEXT NOT NULL,
    size_value    REAL,
    size_unit     TEXT,
    category_norm TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL
);
-- The uniqueness constraint doubles as the optimistic lock against two
-- resolvers racing to create the same identity.
CREATE UNIQUE INDEX IF NOT EXISTS idx_canonical_identity
    ON canonical_products(brand_norm, name_norm, COALESCE(size_value, -1), COALESCE(size_unit, ''));

-- Active listing → canonical association with resolution metadata.
CREATE TABLE IF NOT EXISTS listing_links (
    id           TEXT PRIMARY KEY,
    listing_id   TEXT NOT NULL REFERENCES listings(id),
    canonical_id TEXT NOT NULL REFERENCES canonical_products(id),
    confidence   REAL NOT NULL,
    method       TEXT NOT NULL DEFAULT 'rule',
    status       TEXT NOT NULL DEFAULT 'AUTO_ACCEPTED',
    created_at   INTEGER NOT NULL,
    UNIQUE (listing_id, canonical_id)
);

-- Append-only price ledger. Rows are never mutated or deleted.
CREATE TABLE IF NOT EXISTS price_observations (
    id            TEXT PRIMARY KEY,
    listing_id    TEXT NOT NULL REFERENCES listings(id),
    observed_at   INTEGER NOT NULL,
    price_current REAL NOT NULL,
    price_list    REAL,
    currency      TEXT NOT NULL DEFAULT 'CLP',
    promo_text    TEXT NOT NULL DEFAULT '',
    in_stock      INTEGER NOT NULL DEFAULT 1,
    source_hash   TEXT NOT NULL,
    UNIQUE (listing_id, observed_at)
);
CREATE INDEX IF NOT EXISTS idx_observations_listing_time
    ON price_observations(listing_id, observed_at DESC);

-- One evaluation per (observation, scoring version).
CREATE TABLE IF NOT EXISTS discount_evaluations (
    id                    TEXT PRIMARY KEY,
    canonical_id          TEXT NOT NULL REFERENCES canonical_products(id),
    retailer_id           TEXT NOT NULL REFERENCES retailers(id),
    observation_id        TEXT NOT NULL REFERENCES price_observations(id),
    score                 REAL NOT NULL,
    label                 TEXT NOT NULL,
    discount_pct          REAL,
    hist_delta_pct        REAL,
    cross_store_delta_pct REAL,
    anchor_anomaly        INTEGER NOT NULL DEFAULT 0,
    rule_trace            TEXT NOT NULL DEFAULT '{}',
    scoring_version       TEXT NOT NULL,
    created_at            INTEGER NOT NULL,
    UNIQUE (observation_id, scoring_version)
);
CREATE INDEX IF NOT EXISTS idx_evaluations_score ON discount_evaluations(score DESC);
CREATE INDEX IF NOT EXISTS idx_evaluations_canonical ON discount_evaluations(canonical_id);

-- One record per orchestration cycle, appended on every exit path.
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id                 TEXT PRIMARY KEY,
    started_at         INTEGER NOT NULL,
    finished_at        INTEGER NOT NULL,
    status             TEXT NOT NULL,
    total_offers       INTEGER NOT NULL DEFAULT 0,
    total_observations INTEGER NOT NULL DEFAULT 0,
    total_evaluations  INTEGER NOT NULL DEFAULT 0,
    error_message      TEXT NOT NULL DEFAULT '',
    created_at         INTEGER NOT NULL
);
`

const migration002 = `
-- Per-source outcome of a run (mode: live | fallback | error).
CREATE TABLE IF NOT EXISTS run_sources (
    id            TEXT PRIMARY KEY,
    run_id        TEXT NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
    source_name   TEXT NOT NULL,
    mode          TEXT NOT NULL,
    offer_count   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_run_sources_run ON run_sources(run_id);
`

// ApplySchema applies all pending migrations, recording each in the
// schema_migrations ledger. Safe to call on every startup.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, m.name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := db.Exec(
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, strftime('%s','now') * 1000)`,
			m.name); err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
	}
	return nil
}

// AppliedMigrations returns the ledger contents in application order.
func AppliedMigrations(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM schema_migrations ORDER BY applied_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
