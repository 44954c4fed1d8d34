// CLAUDE:SUMMARY Pipeline run records with their per-source rows, written in one transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertRun appends the run record and its per-source rows atomically.
func (s *Store) InsertRun(ctx context.Context, r *PipelineRun) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipeline_runs (
			id, started_at, finished_at, status, total_offers,
			total_observations, total_evaluations, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.FinishedAt, r.Status, r.TotalOffers,
		r.TotalObservations, r.TotalEvaluations, r.ErrorMessage, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, src := range r.Sources {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_sources (id, run_id, source_name, mode, offer_count, error_message)
			VALUES (?, ?, ?, ?, ?, ?)`,
			src.ID, r.ID, src.SourceName, src.Mode, src.OfferCount, src.ErrorMessage)
		if err != nil {
			return fmt.Errorf("insert run source %s: %w", src.SourceName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run with its source rows, or nil.
func (s *Store) LatestRun(ctx context.Context) (*PipelineRun, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, total_offers,
		       total_observations, total_evaluations, error_message, created_at
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT 1`)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachSources(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first, with source rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, total_offers,
		       total_observations, total_evaluations, error_message, created_at
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*PipelineRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range out {
		if err := s.attachSources(ctx, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) attachSources(ctx context.Context, r *PipelineRun) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, run_id, source_name, mode, offer_count, error_message
		FROM run_sources
		WHERE run_id = ?
		ORDER BY source_name`, r.ID)
	if err != nil {
		return fmt.Errorf("run sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src RunSource
		err := rows.Scan(&src.ID, &src.RunID, &src.SourceName, &src.Mode,
			&src.OfferCount, &src.ErrorMessage)
		if err != nil {
			return fmt.Errorf("scan run source: %w", err)
		}
		r.Sources = append(r.Sources, src)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*PipelineRun, error) {
	var r PipelineRun
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
		&r.TotalOffers, &r.TotalObservations, &r.TotalEvaluations,
		&r.ErrorMessage, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}
