// CLAUDE:SUMMARY Evaluation inserts keyed by (observation, scoring version) and the deals query.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// InsertEvaluation records the verdict for one observation under one scoring
// version. Returns false when that pair was already scored; re-scoring the
// same observation requires a new version.
func (s *Store) InsertEvaluation(ctx context.Context, e *Evaluation) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO discount_evaluations (
			id, canonical_id, retailer_id, observation_id, score, label,
			discount_pct, hist_delta_pct, cross_store_delta_pct,
			anchor_anomaly, rule_trace, scoring_version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CanonicalID, e.RetailerID, e.ObservationID, e.Score, e.Label,
		e.DiscountPct, e.HistDeltaPct, e.CrossStoreDeltaPct,
		boolInt(e.AnchorAnomaly), e.RuleTrace, e.ScoringVersion, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert evaluation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert evaluation rows: %w", err)
	}
	return n > 0, nil
}

// Deals returns evaluations joined with product, retailer, and price context,
// restricted to each listing's most recent observation so stale verdicts on
// superseded prices never surface.
func (s *Store) Deals(ctx context.Context, f DealFilter) ([]*Deal, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var b strings.Builder
	b.WriteString(`
		SELECT de.id, r.name, cp.brand_norm, cp.name_norm, l.url,
		       po.price_current, po.price_list, de.score, de.label,
		       de.discount_pct, de.hist_delta_pct, de.cross_store_delta_pct,
		       de.anchor_anomaly, de.scoring_version, po.observed_at
		FROM discount_evaluations de
		JOIN price_observations po ON po.id = de.observation_id
		JOIN listings l            ON l.id = po.listing_id
		JOIN retailers r           ON r.id = de.retailer_id
		JOIN canonical_products cp ON cp.id = de.canonical_id
		WHERE de.score >= ?
		  AND po.observed_at = (
			SELECT MAX(observed_at) FROM price_observations
			WHERE listing_id = l.id
		  )`)
	args := []any{f.MinScore}

	if f.Label != "" {
		b.WriteString(` AND de.label = ?`)
		args = append(args, f.Label)
	}
	if f.Retailer != "" {
		b.WriteString(` AND LOWER(r.name) = LOWER(?)`)
		args = append(args, f.Retailer)
	}
	if f.Brand != "" {
		b.WriteString(` AND cp.brand_norm = LOWER(?)`)
		args = append(args, f.Brand)
	}
	if f.MinDiscountPct != nil {
		b.WriteString(` AND de.discount_pct IS NOT NULL AND de.discount_pct >= ?`)
		args = append(args, *f.MinDiscountPct)
	}
	if f.CrossStorePositive {
		b.WriteString(` AND de.cross_store_delta_pct IS NOT NULL AND de.cross_store_delta_pct > 0`)
	}
	b.WriteString(` ORDER BY de.score DESC, de.created_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("deals: %w", err)
	}
	defer rows.Close()

	var out []*Deal
	for rows.Next() {
		var d Deal
		var list, disc, hist, cross sql.NullFloat64
		var anchor int
		err := rows.Scan(&d.EvaluationID, &d.Retailer, &d.Brand, &d.Product,
			&d.URL, &d.PriceCurrent, &list, &d.Score, &d.Label,
			&disc, &hist, &cross, &anchor, &d.ScoringVersion, &d.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		if list.Valid {
			d.PriceList = &list.Float64
		}
		if disc.Valid {
			d.DiscountPct = &disc.Float64
		}
		if hist.Valid {
			d.HistDeltaPct = &hist.Float64
		}
		if cross.Valid {
			d.CrossStoreDeltaPct = &cross.Float64
		}
		d.AnchorAnomaly = anchor != 0
		out = append(out, &d)
	}
	return out, rows.Err()
}
