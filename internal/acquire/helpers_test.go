package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/workshopdl/internal/testutil"
	"github.com/roach88/workshopdl/internal/workshop"
)

// recordingReporter captures everything a run reports.
type recordingReporter struct {
	statuses []string
	samples  []Sample
	outcomes []Outcome
}

func (r *recordingReporter) Status(format string, args ...any) {
	r.statuses = append(r.statuses, fmt.Sprintf(format, args...))
}

func (r *recordingReporter) Progress(_ workshop.ItemDescriptor, s Sample) {
	r.samples = append(r.samples, s)
}

func (r *recordingReporter) Outcome(o Outcome) {
	r.outcomes = append(r.outcomes, o)
}

type recordedTransition struct {
	seq   int64
	phase Phase
}

// memoryRecorder is an in-memory journal that, like the SQLite journal,
// keeps only the first outcome of a run.
type memoryRecorder struct {
	transitions []recordedTransition
	outcomes    map[string]Outcome
	attempts    int
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{outcomes: make(map[string]Outcome)}
}

func (m *memoryRecorder) RecordTransition(_ context.Context, _ string, seq int64, st State) error {
	m.transitions = append(m.transitions, recordedTransition{seq: seq, phase: st.Phase})
	return nil
}

func (m *memoryRecorder) RecordOutcome(_ context.Context, runID string, _ int64, o Outcome) (bool, error) {
	m.attempts++
	if _, ok := m.outcomes[runID]; ok {
		return false, nil
	}
	m.outcomes[runID] = o
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testItem = workshop.ItemDescriptor{ID: 123456789, Title: "Test Map", OwnerAppID: 4000}

type controllerFixture struct {
	session  *testutil.FakeSession
	handle   *SessionHandle
	sleeper  *testutil.InstantSleeper
	reporter *recordingReporter
	recorder *memoryRecorder
}

func newFixture(t *testing.T) *controllerFixture {
	t.Helper()
	s := testutil.NewFakeSession(4000)
	return &controllerFixture{
		session:  s,
		handle:   NewSessionHandle(s),
		sleeper:  testutil.NewInstantSleeper(),
		reporter: &recordingReporter{},
		recorder: newMemoryRecorder(),
	}
}

func (f *controllerFixture) controller(opts Options) *Controller {
	if opts.RunID == "" {
		opts.RunID = "run-test"
	}
	return NewController(f.handle, opts,
		WithSleeper(f.sleeper),
		WithReporter(f.reporter),
		WithRecorder(f.recorder),
		WithLogger(discardLogger()),
	)
}

// newTestDispatcher builds a dispatcher already in the downloading phase.
func newTestDispatcher(session workshop.Session, reporter Reporter, recorder Recorder) *Dispatcher {
	logger := discardLogger()
	tr := newTracker(context.Background(), "run-test", NewClock(), recorder, logger)
	_ = tr.advance(State{Phase: PhaseDownloading})
	return newDispatcher(session, testItem, tr, reporter, logger)
}
