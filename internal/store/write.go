package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/workshopdl/internal/acquire"
	"github.com/roach88/workshopdl/internal/workshop"
)

var _ acquire.Recorder = (*Store)(nil)

// WriteRun inserts the run record that transitions and the outcome hang off.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteRun(ctx context.Context, runID string, item workshop.ItemDescriptor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, item_id, app_id, title)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		runID,
		int64(item.ID),
		int64(item.OwnerAppID),
		item.Title,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// RecordTransition appends a phase change to the run's transition log.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) RecordTransition(ctx context.Context, runID string, seq int64, st acquire.State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(run_id, seq, phase, path, bytes_downloaded, total_bytes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		seq,
		st.Phase.String(),
		st.Path,
		int64(st.BytesDownloaded),
		int64(st.TotalBytes),
		errorText(st.Err),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// RecordOutcome stores the run's terminal outcome.
// Returns inserted=false when an outcome already exists for the run; the
// first one is kept.
func (s *Store) RecordOutcome(ctx context.Context, runID string, seq int64, o acquire.Outcome) (inserted bool, err error) {
	var (
		code   string
		result workshop.ResultCode
	)
	var ae *acquire.Error
	if errors.As(o.Err(), &ae) {
		code = string(ae.Code)
		result = ae.Result
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, seq, phase, via, path, error_code, result, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		runID,
		seq,
		o.State.Phase.String(),
		string(o.Via),
		o.State.Path,
		code,
		int(result),
		errorText(o.Err()),
	)
	if err != nil {
		return false, fmt.Errorf("record outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record outcome: rows affected: %w", err)
	}
	return n > 0, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
