package acquire

import (
	"context"
	"fmt"
	"log/slog"
)

// Phase is the acquisition state tag.
type Phase int

const (
	PhaseQueried Phase = iota + 1
	PhaseInstallFound
	PhaseDownloading
	PhaseCompleted
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseQueried:      "queried",
	PhaseInstallFound: "install_found",
	PhaseDownloading:  "downloading",
	PhaseCompleted:    "completed",
	PhaseFailed:       "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no transition may leave p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// State is the acquisition state. Which fields are meaningful depends on Phase:
// Path for InstallFound and Completed, byte counts for Downloading, Err for Failed.
type State struct {
	Phase           Phase
	Path            string
	BytesDownloaded uint64
	TotalBytes      uint64
	Err             error
}

// canTransition enforces the forward-only state graph:
//
//	queried -> install_found | downloading | failed
//	install_found -> completed | failed
//	downloading -> downloading | completed | failed
func canTransition(from, to Phase) bool {
	switch from {
	case PhaseQueried:
		return to == PhaseInstallFound || to == PhaseDownloading || to == PhaseFailed
	case PhaseInstallFound:
		return to == PhaseCompleted || to == PhaseFailed
	case PhaseDownloading:
		return to == PhaseDownloading || to == PhaseCompleted || to == PhaseFailed
	default:
		return false
	}
}

// Recorder persists the run's transitions and outcome.
// Implemented by the SQLite journal; errors are logged, never fatal.
type Recorder interface {
	RecordTransition(ctx context.Context, runID string, seq int64, st State) error
	RecordOutcome(ctx context.Context, runID string, seq int64, o Outcome) (bool, error)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(context.Context, string, int64, State) error { return nil }
func (nopRecorder) RecordOutcome(context.Context, string, int64, Outcome) (bool, error) {
	return true, nil
}

// tracker owns the State of a single run.
// Shared by the controller and the dispatcher; only touched from the loop goroutine.
type tracker struct {
	ctx      context.Context
	runID    string
	clock    *Clock
	recorder Recorder
	logger   *slog.Logger
	state    State
}

func newTracker(ctx context.Context, runID string, clock *Clock, recorder Recorder, logger *slog.Logger) *tracker {
	return &tracker{
		// Journal writes for interrupted runs must still land.
		ctx:      context.WithoutCancel(ctx),
		runID:    runID,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
		state:    State{Phase: PhaseQueried},
	}
}

func (t *tracker) current() State {
	return t.state
}

// advance moves to next, rejecting backward or post-terminal transitions.
func (t *tracker) advance(next State) error {
	from := t.state.Phase
	if !canTransition(from, next.Phase) {
		return fmt.Errorf("illegal transition %s -> %s", from, next.Phase)
	}
	t.state = next
	if from == next.Phase {
		return nil
	}

	seq := t.clock.Next()
	t.logger.Debug("state transition", "from", from, "to", next.Phase, "seq", seq)
	if err := t.recorder.RecordTransition(t.ctx, t.runID, seq, next); err != nil {
		t.logger.Error("failed to record transition", "to", next.Phase, "error", err)
	}
	return nil
}
