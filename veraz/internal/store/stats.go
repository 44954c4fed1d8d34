// CLAUDE:SUMMARY Aggregate counts for the stats endpoint.
package store

import (
	"context"
	"fmt"
)

// GetStats returns row counts per relation and evaluation counts per label.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByLabel: map[string]int{}}

	counts := []struct {
		table string
		dest  *int
	}{
		{"retailers", &st.Retailers},
		{"listings", &st.Listings},
		{"canonical_products", &st.Canonical},
		{"price_observations", &st.Observations},
		{"discount_evaluations", &st.Evaluations},
		{"pipeline_runs", &st.Runs},
	}
	for _, c := range counts {
		err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dest)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT label, COUNT(*) FROM discount_evaluations GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("count labels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		st.ByLabel[label] = n
	}
	return st, rows.Err()
}
