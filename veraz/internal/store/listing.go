// CLAUDE:SUMMARY Listing upsert keyed by (retailer, external id); refreshes descriptive fields and last_seen.
package store

import (
	"context"
	"fmt"
)

// UpsertListing inserts the listing or refreshes its descriptive fields and
// last_seen_at. first_seen_at is preserved across upserts. On return l.ID and
// l.FirstSeenAt carry the stored values.
func (s *Store) UpsertListing(ctx context.Context, l *Listing) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO listings (
			id, retailer_id, external_id, url, title, brand_raw, size_raw,
			category_raw, first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(retailer_id, external_id) DO UPDATE SET
			url          = excluded.url,
			title        = excluded.title,
			brand_raw    = excluded.brand_raw,
			size_raw     = excluded.size_raw,
			category_raw = excluded.category_raw,
			last_seen_at = excluded.last_seen_at`,
		l.ID, l.RetailerID, l.ExternalID, l.URL, l.Title, l.BrandRaw,
		l.SizeRaw, l.CategoryRaw, l.FirstSeenAt, l.LastSeenAt)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT id, first_seen_at FROM listings WHERE retailer_id = ? AND external_id = ?`,
		l.RetailerID, l.ExternalID)
	if err := row.Scan(&l.ID, &l.FirstSeenAt); err != nil {
		return fmt.Errorf("reread listing: %w", err)
	}
	return nil
}

// CountListings returns the number of listings for one retailer.
func (s *Store) CountListings(ctx context.Context, retailerID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE retailer_id = ?`, retailerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}
