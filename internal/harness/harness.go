package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/workshopdl/internal/acquire"
	"github.com/roach88/workshopdl/internal/store"
	"github.com/roach88/workshopdl/internal/testutil"
	"github.com/roach88/workshopdl/internal/workshop"
)

// maxTicks interrupts scripts that would otherwise never reach an outcome.
const maxTicks = 1000

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Parse the input into an item id
// 2. Resolve the item through the scripted session
// 3. Journal the run and drive the controller to an outcome
// 4. Release the session and collect its call trace
// 5. Check the expected outcome and evaluate assertions
//
// A non-nil error means the scenario could not be executed; acquisition
// failures are outcomes, not errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	session, err := buildSession(scenario)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeper := testutil.NewInstantSleeper()
	sleeper.OnSleep = func(n int) {
		if n == scenario.Options.CancelAfterTicks || n >= maxTicks {
			cancel()
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result := NewResult(scenario.RunID)

	handle := acquire.NewSessionHandle(session)
	journaled, outcome := execute(ctx, scenario, handle, st, sleeper, logger)
	if err := handle.Close(); err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	if !handle.Closed() {
		result.AddError(fmt.Sprintf("session still referenced after run (refs=%d)", handle.Refs()))
	}

	result.Outcome = outcome
	result.AddTrace(session.Trace)
	checkExpect(result, scenario.Expect)

	actx := &AssertionContext{
		Store:     st,
		Ctx:       context.Background(),
		RunID:     scenario.RunID,
		Journaled: journaled,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// execute runs resolve and acquire. It reports whether the run reached the
// journal, which only happens once the item is resolved.
func execute(ctx context.Context, scenario *Scenario, handle *acquire.SessionHandle, st *store.Store, sleeper acquire.Sleeper, logger *slog.Logger) (bool, OutcomeSnapshot) {
	id, err := workshop.ParseItemID(scenario.Input)
	if err != nil {
		return false, failedSnapshot(acquire.NewInputError(err))
	}

	resolver := acquire.NewResolver(handle, testutil.DefaultTestTick, sleeper, logger)
	item, err := resolver.Resolve(ctx, id)
	if err != nil {
		return false, failedSnapshot(err)
	}

	if err := st.WriteRun(ctx, scenario.RunID, item); err != nil {
		return false, failedSnapshot(err)
	}

	ctrl := acquire.NewController(handle, acquire.Options{
		RunID:                 scenario.RunID,
		Tick:                  testutil.DefaultTestTick,
		HighPriority:          scenario.Options.HighPriority,
		RegisterBeforeRequest: scenario.Options.RegisterBeforeRequest,
	},
		acquire.WithSleeper(sleeper),
		acquire.WithRecorder(st),
		acquire.WithLogger(logger),
	)
	return true, snapshot(ctrl.Acquire(ctx, item))
}

// buildSession turns the session script into a fake session.
func buildSession(scenario *Scenario) (*testutil.FakeSession, error) {
	script := scenario.Session
	s := testutil.NewFakeSession(scenario.AppID)

	s.Entries = make([]*workshop.ItemDescriptor, 0, len(script.Entries))
	for _, e := range script.Entries {
		if e.Missing {
			s.Entries = append(s.Entries, nil)
			continue
		}
		s.Entries = append(s.Entries, &workshop.ItemDescriptor{ID: e.ID, Title: e.Title, OwnerAppID: e.OwnerAppID})
	}
	if script.QueryError != "" {
		s.QueryErr = errors.New(script.QueryError)
	}
	s.QueryDelay = script.QueryDelay

	for id, path := range script.Installed {
		s.Installed[id] = workshop.InstallInfo{Path: path}
	}
	s.AcceptDownload = script.AcceptDownload

	for _, p := range script.Progress {
		s.Progress = append(s.Progress, testutil.ProgressStep{Bytes: p.Bytes, Total: p.Total, Lost: p.Lost})
	}
	for _, c := range script.Completions {
		result := workshop.ResultNone
		if c.Result != "" {
			code, err := workshop.ParseResultCode(c.Result)
			if err != nil {
				return nil, err
			}
			result = code
		}
		s.Completions = append(s.Completions, testutil.ScheduledCompletion{
			AfterPumps: c.AfterPumps,
			Signal:     workshop.CompletionSignal{ItemID: c.ItemID, AppID: scenario.AppID, Result: result},
		})
	}
	for _, in := range script.Installs {
		s.Installs = append(s.Installs, testutil.ScheduledInstall{
			AfterPumps: in.AfterPumps,
			ItemID:     in.ItemID,
			Info:       workshop.InstallInfo{Path: in.Path},
		})
	}
	return s, nil
}

func snapshot(o acquire.Outcome) OutcomeSnapshot {
	snap := OutcomeSnapshot{
		Phase: o.State.Phase.String(),
		Via:   string(o.Via),
		Path:  o.State.Path,
	}
	if code, ok := acquire.CodeOf(o.Err()); ok {
		snap.ErrorCode = string(code)
	}
	return snap
}

func failedSnapshot(err error) OutcomeSnapshot {
	snap := OutcomeSnapshot{Phase: acquire.PhaseFailed.String()}
	if code, ok := acquire.CodeOf(err); ok {
		snap.ErrorCode = string(code)
	}
	return snap
}

// checkExpect compares the outcome against the expect clause.
func checkExpect(result *Result, want ExpectClause) {
	got := result.Outcome
	check := func(field, want, got string) {
		if want != "" && want != got {
			result.AddError(fmt.Sprintf("expected %s %q, got %q", field, want, got))
		}
	}
	check("phase", want.Phase, got.Phase)
	check("via", want.Via, got.Via)
	check("path", want.Path, got.Path)
	check("error_code", want.ErrorCode, got.ErrorCode)
}
