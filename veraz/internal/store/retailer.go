// CLAUDE:SUMMARY Retailer upsert keyed by domain, plus lookup and listing.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertRetailer inserts the retailer or refreshes its name if the domain is
// already known. On return r.ID and r.CreatedAt carry the stored values.
func (s *Store) UpsertRetailer(ctx context.Context, r *Retailer) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO retailers (id, name, domain, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET name = excluded.name`,
		r.ID, r.Name, r.Domain, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert retailer: %w", err)
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT id, created_at FROM retailers WHERE domain = ?`, r.Domain)
	if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
		return fmt.Errorf("reread retailer: %w", err)
	}
	return nil
}

// GetRetailer returns the retailer by id, or nil if absent.
func (s *Store) GetRetailer(ctx context.Context, id string) (*Retailer, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, domain, created_at FROM retailers WHERE id = ?`, id)

	var r Retailer
	err := row.Scan(&r.ID, &r.Name, &r.Domain, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan retailer: %w", err)
	}
	return &r, nil
}

// ListRetailers returns all retailers ordered by name.
func (s *Store) ListRetailers(ctx context.Context) ([]*Retailer, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, domain, created_at FROM retailers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list retailers: %w", err)
	}
	defer rows.Close()

	var out []*Retailer
	for rows.Next() {
		var r Retailer
		if err := rows.Scan(&r.ID, &r.Name, &r.Domain, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan retailer: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
