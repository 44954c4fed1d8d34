// CLAUDE:SUMMARY Canonical identity and link creation, racing through insert-or-ignore then reread.
package store

import (
	"context"
	"fmt"
)

// EnsureCanonical finds or creates the canonical product for the identity
// tuple carried by c. Concurrent callers with the same tuple converge on one
// row through the identity unique index. On return c.ID and c.CreatedAt carry
// the stored values.
func (s *Store) EnsureCanonical(ctx context.Context, c *CanonicalProduct) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO canonical_products (
			id, brand_norm, name_norm, size_value, size_unit, category_norm, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BrandNorm, c.NameNorm, c.SizeValue, nullable(c.SizeUnit),
		c.CategoryNorm, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("ensure canonical: %w", err)
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, created_at FROM canonical_products
		WHERE brand_norm = ? AND name_norm = ?
		  AND COALESCE(size_value, -1) = COALESCE(?, -1)
		  AND COALESCE(size_unit, '') = COALESCE(?, '')`,
		c.BrandNorm, c.NameNorm, c.SizeValue, nullable(c.SizeUnit))
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("reread canonical: %w", err)
	}
	return nil
}

// EnsureLink creates the listing → canonical association if it does not
// already exist. On return l.ID carries the stored value.
func (s *Store) EnsureLink(ctx context.Context, l *Link) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO listing_links (
			id, listing_id, canonical_id, confidence, method, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ListingID, l.CanonicalID, l.Confidence, l.Method, l.Status, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("ensure link: %w", err)
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT id, confidence, method, status, created_at
		 FROM listing_links WHERE listing_id = ? AND canonical_id = ?`,
		l.ListingID, l.CanonicalID)
	if err := row.Scan(&l.ID, &l.Confidence, &l.Method, &l.Status, &l.CreatedAt); err != nil {
		return fmt.Errorf("reread link: %w", err)
	}
	return nil
}

// nullable maps "" to NULL so COALESCE-based identity comparisons behave.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
