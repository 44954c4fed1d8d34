// CLAUDE:SUMMARY Append-only price ledger: insert-or-ignore appends plus the history and cross-store reads.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendObservation appends one point to a listing's price series. Returns
// false when a point at the same (listing, observed_at) already exists; the
// ledger never overwrites. On a duplicate, o.ID is rewritten to the stored
// row's ID so callers can still key evaluations off it.
func (s *Store) AppendObservation(ctx context.Context, o *Observation) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO price_observations (
			id, listing_id, observed_at, price_current, price_list,
			currency, promo_text, in_stock, source_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ListingID, o.ObservedAt, o.PriceCurrent, o.PriceList,
		o.Currency, o.PromoText, boolInt(o.InStock), o.SourceHash)
	if err != nil {
		return false, fmt.Errorf("append observation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append observation rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	row := s.DB.QueryRowContext(ctx, `
		SELECT id FROM price_observations
		WHERE listing_id = ? AND observed_at = ?`,
		o.ListingID, o.ObservedAt)
	if err := row.Scan(&o.ID); err != nil {
		return false, fmt.Errorf("reread observation: %w", err)
	}
	return false, nil
}

// History returns the listing's current prices, most recent first, capped at
// limit points.
func (s *Store) History(ctx context.Context, listingID string, limit int) ([]float64, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT price_current FROM price_observations
		WHERE listing_id = ?
		ORDER BY observed_at DESC
		LIMIT ?`, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return scanFloats(rows)
}

// ListPriceHistory returns the listing's non-null list prices, most recent
// first, capped at limit points.
func (s *Store) ListPriceHistory(ctx context.Context, listingID string, limit int) ([]float64, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT price_list FROM price_observations
		WHERE listing_id = ? AND price_list IS NOT NULL
		ORDER BY observed_at DESC
		LIMIT ?`, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	return scanFloats(rows)
}

// CrossStoreLatest returns, for each other listing linked to the same
// canonical product, that listing's most recent current price. The caller's
// own listing is excluded. At most limit peers are returned.
func (s *Store) CrossStoreLatest(ctx context.Context, canonicalID, excludeListingID string, limit int) ([]float64, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT po.price_current
		FROM listing_links ll
		JOIN price_observations po ON po.listing_id = ll.listing_id
		WHERE ll.canonical_id = ?
		  AND ll.listing_id != ?
		  AND po.observed_at = (
			SELECT MAX(observed_at) FROM price_observations
			WHERE listing_id = ll.listing_id
		  )
		ORDER BY po.observed_at DESC
		LIMIT ?`, canonicalID, excludeListingID, limit)
	if err != nil {
		return nil, fmt.Errorf("cross store latest: %w", err)
	}
	return scanFloats(rows)
}

// LatestObservation returns the listing's most recent point, or nil.
func (s *Store) LatestObservation(ctx context.Context, listingID string) (*Observation, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, listing_id, observed_at, price_current, price_list,
		       currency, promo_text, in_stock, source_hash
		FROM price_observations
		WHERE listing_id = ?
		ORDER BY observed_at DESC
		LIMIT 1`, listingID)

	var o Observation
	var list sql.NullFloat64
	var inStock int
	err := row.Scan(&o.ID, &o.ListingID, &o.ObservedAt, &o.PriceCurrent,
		&list, &o.Currency, &o.PromoText, &inStock, &o.SourceHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan observation: %w", err)
	}
	if list.Valid {
		o.PriceList = &list.Float64
	}
	o.InStock = inStock != 0
	return &o, nil
}

func scanFloats(rows *sql.Rows) ([]float64, error) {
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var f float64
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
