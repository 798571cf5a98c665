package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RunSummary is one row of the run history.
// Phase and Via are empty for a run that never recorded an outcome
// (for example, the process was killed).
type RunSummary struct {
	ID        string `json:"run_id"`
	ItemID    uint64 `json:"item_id"`
	AppID     uint64 `json:"app_id"`
	Title     string `json:"title"`
	Phase     string `json:"phase,omitempty"`
	Via       string `json:"via,omitempty"`
	Path      string `json:"path,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Transition is a journaled phase change.
type Transition struct {
	Seq             int64  `json:"seq"`
	Phase           string `json:"phase"`
	Path            string `json:"path,omitempty"`
	BytesDownloaded uint64 `json:"bytes_downloaded,omitempty"`
	TotalBytes      uint64 `json:"total_bytes,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ListFilter narrows ListRuns.
type ListFilter struct {
	// ItemID restricts to one item when non-zero.
	ItemID uint64
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// ListRuns returns runs newest first.
//
// Returns an empty slice (not nil) if the journal has no runs.
func (s *Store) ListRuns(ctx context.Context, f ListFilter) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.item_id, r.app_id, r.title,
		       COALESCE(o.phase, ''), COALESCE(o.via, ''), COALESCE(o.path, ''),
		       COALESCE(o.error_code, ''), COALESCE(o.message, '')
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id`
	var args []any
	if f.ItemID != 0 {
		query += ` WHERE r.item_id = ?`
		args = append(args, int64(f.ItemID))
	}
	query += ` ORDER BY r.id COLLATE BINARY DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			r             RunSummary
			itemID, appID int64
		)
		if err := rows.Scan(&r.ID, &itemID, &appID, &r.Title,
			&r.Phase, &r.Via, &r.Path, &r.ErrorCode, &r.Message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ItemID = uint64(itemID)
		r.AppID = uint64(appID)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run summary.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, runID string) (RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.item_id, r.app_id, r.title,
		       COALESCE(o.phase, ''), COALESCE(o.via, ''), COALESCE(o.path, ''),
		       COALESCE(o.error_code, ''), COALESCE(o.message, '')
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		WHERE r.id = ?
	`, runID)

	var (
		r             RunSummary
		itemID, appID int64
	)
	if err := row.Scan(&r.ID, &itemID, &appID, &r.Title,
		&r.Phase, &r.Via, &r.Path, &r.ErrorCode, &r.Message); err != nil {
		if err == sql.ErrNoRows {
			return RunSummary{}, err
		}
		return RunSummary{}, fmt.Errorf("scan run: %w", err)
	}
	r.ItemID = uint64(itemID)
	r.AppID = uint64(appID)
	return r, nil
}

// ReadTransitions returns a run's transitions ordered by seq.
func (s *Store) ReadTransitions(ctx context.Context, runID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, phase, path, bytes_downloaded, total_bytes, error
		FROM transitions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []Transition{}
	for rows.Next() {
		var (
			tr           Transition
			bytes, total int64
		)
		if err := rows.Scan(&tr.Seq, &tr.Phase, &tr.Path, &bytes, &total, &tr.Error); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.BytesDownloaded = uint64(bytes)
		tr.TotalBytes = uint64(total)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}
