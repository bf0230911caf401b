// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeparr/sweeparr/internal/dbinterface"
)

// ReconcileRun is the persisted summary of a reconciliation run. The
// full itemized result is returned to the caller and logged but never
// stored; only these counts survive for the history API.
type ReconcileRun struct {
	ID              int64      `json:"id"`
	DryRun          bool       `json:"dry_run"`
	Mode            string     `json:"mode"`
	TriggeredBy     string     `json:"triggered_by"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	MoviesDeleted   int        `json:"movies_deleted"`
	MoviesSkipped   int        `json:"movies_skipped"`
	MoviesProtected int        `json:"movies_protected"`
	ShowsDeleted    int        `json:"shows_deleted"`
	ShowsSkipped    int        `json:"shows_skipped"`
	ShowsProtected  int        `json:"shows_protected"`
	Processed       int        `json:"processed"`
	SafetyTriggered bool       `json:"safety_triggered"`
	Message         string     `json:"message"`
}

// ReconcileRunStore manages run history rows.
type ReconcileRunStore struct {
	db dbinterface.Querier
}

// NewReconcileRunStore creates a new ReconcileRunStore.
func NewReconcileRunStore(db dbinterface.Querier) *ReconcileRunStore {
	return &ReconcileRunStore{db: db}
}

// Create records the start of a run and returns its id.
func (s *ReconcileRunStore) Create(ctx context.Context, dryRun bool, mode, triggeredBy string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reconcile_runs (dry_run, mode, triggered_by)
		VALUES (?, ?, ?)
		RETURNING id`,
		dryRun, mode, triggeredBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert reconcile run: %w", err)
	}
	return id, nil
}

// Complete finalizes a run row with its summary counts.
func (s *ReconcileRunStore) Complete(ctx context.Context, id int64, run *ReconcileRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reconcile_runs
		SET completed_at = CURRENT_TIMESTAMP,
			movies_deleted = ?, movies_skipped = ?, movies_protected = ?,
			shows_deleted = ?, shows_skipped = ?, shows_protected = ?,
			processed = ?, safety_triggered = ?, message = ?
		WHERE id = ?`,
		run.MoviesDeleted, run.MoviesSkipped, run.MoviesProtected,
		run.ShowsDeleted, run.ShowsSkipped, run.ShowsProtected,
		run.Processed, run.SafetyTriggered, run.Message, id,
	)
	if err != nil {
		return fmt.Errorf("complete reconcile run: %w", err)
	}
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (s *ReconcileRunStore) ListRecent(ctx context.Context, limit int) ([]*ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dry_run, mode, triggered_by, started_at, completed_at,
			movies_deleted, movies_skipped, movies_protected,
			shows_deleted, shows_skipped, shows_protected,
			processed, safety_triggered, message
		FROM reconcile_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconcile runs: %w", err)
	}
	defer rows.Close()

	var runs []*ReconcileRun
	for rows.Next() {
		run := &ReconcileRun{}
		if err := rows.Scan(
			&run.ID, &run.DryRun, &run.Mode, &run.TriggeredBy, &run.StartedAt, &run.CompletedAt,
			&run.MoviesDeleted, &run.MoviesSkipped, &run.MoviesProtected,
			&run.ShowsDeleted, &run.ShowsSkipped, &run.ShowsProtected,
			&run.Processed, &run.SafetyTriggered, &run.Message,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
