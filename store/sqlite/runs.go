package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// RECONCILIATION RUNS STORE
// =============================================================================

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ReconciliationRun records one pass of the balance verifier.
type ReconciliationRun struct {
	ID             string
	Status         string // running, completed, failed
	PartiesChecked int
	PartiesDrifted int
	Drift          []DriftRecord
	Error          string
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// DriftRecord is one party whose stored balance disagreed with its log.
type DriftRecord struct {
	PartyID   string `json:"party_id"`
	PartyName string `json:"party_name"`
	Seq       int64  `json:"seq"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
}

// SaveReconciliationRun inserts or updates a run by id.
func (s *Store) SaveReconciliationRun(ctx context.Context, r ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, err := json.Marshal(r.Drift)
	if err != nil {
		return fmt.Errorf("failed to encode drift: %w", err)
	}

	var completedAt *string
	if r.CompletedAt != nil {
		v := formatTime(*r.CompletedAt)
		completedAt = &v
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, status, parties_checked, parties_drifted,
			details_json, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			parties_checked = excluded.parties_checked,
			parties_drifted = excluded.parties_drifted,
			details_json = excluded.details_json,
			error = excluded.error,
			completed_at = excluded.completed_at
	`,
		r.ID, r.Status, r.PartiesChecked, r.PartiesDrifted,
		string(detailsJSON), nullString(r.Error), formatTime(r.StartedAt), completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation run: %w", err)
	}
	return nil
}

// ListReconciliationRuns returns the most recent runs first. A limit of 0
// returns all of them.
func (s *Store) ListReconciliationRuns(ctx context.Context, limit int) ([]ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, status, parties_checked, parties_drifted, details_json, error,
			started_at, completed_at
		FROM reconciliation_runs
		ORDER BY started_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation runs: %w", err)
	}
	defer rows.Close()

	var runs []ReconciliationRun
	for rows.Next() {
		var (
			r                      ReconciliationRun
			details, errText       sql.NullString
			startedAt, completedAt sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.Status, &r.PartiesChecked, &r.PartiesDrifted,
			&details, &errText, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}
		r.Error = errText.String
		r.StartedAt = parseTime(startedAt.String)
		if completedAt.Valid {
			t := parseTime(completedAt.String)
			r.CompletedAt = &t
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &r.Drift); err != nil {
				return nil, fmt.Errorf("failed to decode drift for run %s: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"invoice_items", "invoices", "transactions", "products", "parties", "reconciliation_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
