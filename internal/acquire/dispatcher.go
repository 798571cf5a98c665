package acquire

import (
	"log/slog"

	"github.com/roach88/workshopdl/internal/workshop"
)

// Via identifies which path produced a terminal outcome.
type Via string

const (
	// ViaInstallCheck is the direct install-presence path.
	ViaInstallCheck Via = "install_check"
	// ViaCallback is the asynchronous completion callback.
	ViaCallback Via = "callback"
	// ViaAbort is a failure that no completion signal produced
	// (rejected request, deadline, interrupt).
	ViaAbort Via = "abort"
)

// Outcome is the terminal result of a run.
type Outcome struct {
	Item  workshop.ItemDescriptor
	State State
	Via   Via
}

// Succeeded reports whether the run reached Completed.
func (o Outcome) Succeeded() bool {
	return o.State.Phase == PhaseCompleted
}

// Err returns the failure, nil on success.
func (o Outcome) Err() error {
	return o.State.Err
}

// Reporter receives user-facing status for a run.
// Outcome is called exactly once per run.
type Reporter interface {
	Status(format string, args ...any)
	Progress(item workshop.ItemDescriptor, s Sample)
	Outcome(o Outcome)
}

type nopReporter struct{}

func (nopReporter) Status(string, ...any)                   {}
func (nopReporter) Progress(workshop.ItemDescriptor, Sample) {}
func (nopReporter) Outcome(Outcome)                          {}

// Dispatcher funnels both completion paths into one terminal outcome.
//
// The first accepted signal (or Abort) decides the run; every later signal
// for the same item is logged and dropped. It runs on the loop goroutine
// together with Session.Pump, so acceptance needs no locking: first arrival
// wins deterministically.
type Dispatcher struct {
	session  workshop.Session
	item     workshop.ItemDescriptor
	tracker  *tracker
	reporter Reporter
	logger   *slog.Logger

	done    bool
	outcome Outcome
	dropped int
}

func newDispatcher(session workshop.Session, item workshop.ItemDescriptor, t *tracker, reporter Reporter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		session:  session,
		item:     item,
		tracker:  t,
		reporter: reporter,
		logger:   logger,
	}
}

// Dispatch offers a completion signal. It returns true only for the signal
// that decides the run.
func (d *Dispatcher) Dispatch(sig workshop.CompletionSignal, via Via) bool {
	if sig.ItemID != d.item.ID {
		d.logger.Debug("ignoring completion for other item", "signal_item_id", sig.ItemID, "via", via)
		return false
	}
	if d.done {
		d.dropped++
		d.logger.Info("ignoring duplicate completion",
			"via", via,
			"result", sig.Result,
			"decided_by", d.outcome.Via,
			"outcome", d.outcome.State.Phase,
		)
		return false
	}

	if sig.Failed() {
		return d.finish(State{Phase: PhaseFailed, Err: NewDownloadFailedError(sig.ItemID, sig.Result)}, via)
	}

	info, ok := d.session.InstallInfo(sig.ItemID)
	if !ok {
		return d.finish(State{Phase: PhaseFailed, Err: NewInstallInfoMissingError(sig.ItemID)}, via)
	}
	return d.finish(State{Phase: PhaseCompleted, Path: info.Path}, via)
}

// Abort fails the run with err unless it has already been decided.
func (d *Dispatcher) Abort(err error) bool {
	if d.done {
		d.logger.Debug("abort after outcome ignored", "error", err)
		return false
	}
	return d.finish(State{Phase: PhaseFailed, Err: err}, ViaAbort)
}

func (d *Dispatcher) finish(st State, via Via) bool {
	if err := d.tracker.advance(st); err != nil {
		// Only reachable from a controller bug; fail rather than report success.
		d.logger.Error("invalid terminal transition", "error", err)
		st = State{Phase: PhaseFailed, Err: err}
		d.tracker.state = st
	}

	d.done = true
	d.outcome = Outcome{Item: d.item, State: st, Via: via}

	seq := d.tracker.clock.Next()
	inserted, err := d.tracker.recorder.RecordOutcome(d.tracker.ctx, d.tracker.runID, seq, d.outcome)
	if err != nil {
		d.logger.Error("failed to record outcome", "error", err)
	} else if !inserted {
		d.logger.Warn("journal already holds an outcome for this run", "run_id", d.tracker.runID)
	}

	if st.Phase == PhaseCompleted {
		d.logger.Info("item acquired", "path", st.Path, "via", via)
	} else {
		d.logger.Error("acquisition failed", "error", st.Err, "via", via)
	}
	d.reporter.Outcome(d.outcome)
	return true
}

// Done reports whether the run has been decided.
func (d *Dispatcher) Done() bool {
	return d.done
}

// Outcome returns the terminal outcome once decided.
func (d *Dispatcher) Outcome() (Outcome, bool) {
	return d.outcome, d.done
}

// Dropped returns how many duplicate signals were discarded.
func (d *Dispatcher) Dropped() int {
	return d.dropped
}
