package acquire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/workshopdl/internal/testutil"
	"github.com/roach88/workshopdl/internal/workshop"
)

func success() workshop.CompletionSignal {
	return workshop.CompletionSignal{ItemID: testItem.ID, AppID: 4000}
}

func installAt(pump int) testutil.ScheduledInstall {
	return testutil.ScheduledInstall{
		AfterPumps: pump,
		ItemID:     testItem.ID,
		Info:       workshop.InstallInfo{Path: "/workshop/4000/123456789"},
	}
}

func TestController_AlreadyInstalled(t *testing.T) {
	f := newFixture(t)
	f.session.Installed[testItem.ID] = workshop.InstallInfo{Path: "/workshop/4000/123456789"}

	out := f.controller(Options{}).Acquire(context.Background(), testItem)

	assert.True(t, out.Succeeded())
	assert.Equal(t, ViaInstallCheck, out.Via)
	assert.Equal(t, "/workshop/4000/123456789", out.State.Path)
	assert.Equal(t, 0, f.session.RequestCalls, "existing install must not request a download")
	assert.Equal(t, 0, f.session.Pumps)
	assert.Equal(t, 0, f.session.ActiveCallbacks())
	assert.Equal(t, []string{"found existing install of Test Map at /workshop/4000/123456789"}, f.reporter.statuses)
	require.Len(t, f.reporter.outcomes, 1)

	require.Len(t, f.recorder.transitions, 2)
	assert.Equal(t, PhaseInstallFound, f.recorder.transitions[0].phase)
	assert.Equal(t, PhaseCompleted, f.recorder.transitions[1].phase)
}

func TestController_RequestRejected(t *testing.T) {
	for _, before := range []bool{false, true} {
		t.Run(map[bool]string{false: "register after", true: "register before"}[before], func(t *testing.T) {
			f := newFixture(t)
			f.session.AcceptDownload = false

			out := f.controller(Options{RegisterBeforeRequest: before, HighPriority: true}).Acquire(context.Background(), testItem)

			assert.Equal(t, PhaseFailed, out.State.Phase)
			assert.True(t, IsCode(out.Err(), ErrCodeDownloadRequest))
			assert.Equal(t, 1, f.session.RequestCalls)
			assert.Equal(t, 0, f.session.ProgressCalls, "poller must not start")
			assert.Equal(t, 0, f.session.Pumps, "no callback wait")
			assert.Equal(t, 0, f.session.ActiveCallbacks())
			assert.Equal(t, 1, f.handle.Refs())
			assert.Len(t, f.reporter.outcomes, 1)
		})
	}
}

func TestController_CompletesViaCallback(t *testing.T) {
	for _, before := range []bool{false, true} {
		t.Run(map[bool]string{false: "register after", true: "register before"}[before], func(t *testing.T) {
			f := newFixture(t)
			f.session.AcceptDownload = true
			f.session.Progress = []testutil.ProgressStep{{Bytes: 0, Total: 100}, {Bytes: 50, Total: 100}}
			f.session.Installs = []testutil.ScheduledInstall{installAt(4)}
			f.session.Completions = []testutil.ScheduledCompletion{{AfterPumps: 4, Signal: success()}}

			out := f.controller(Options{RegisterBeforeRequest: before}).Acquire(context.Background(), testItem)

			require.True(t, out.Succeeded(), "err: %v", out.Err())
			assert.Equal(t, ViaCallback, out.Via)
			assert.Equal(t, "/workshop/4000/123456789", out.State.Path)
			assert.Equal(t, 4, f.session.Pumps)
			assert.Equal(t, 3, f.session.ProgressCalls, "third sample reports tracking lost")
			assert.Equal(t, 3, f.sleeper.Count())

			require.Len(t, f.reporter.samples, 2)
			assert.Equal(t, 0, f.reporter.samples[0].Percent)
			assert.Equal(t, 50, f.reporter.samples[1].Percent)

			assert.Equal(t, 0, f.session.ActiveCallbacks(), "callback must be unregistered on exit")
			assert.Equal(t, 1, f.handle.Refs())
			assert.False(t, f.session.Closed)
		})
	}
}

func TestController_InstallRecheckWinsOverLaterCallback(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true
	f.session.Progress = []testutil.ProgressStep{{Bytes: 50, Total: 100}, {Bytes: 100, Total: 100}}
	f.session.Installs = []testutil.ScheduledInstall{installAt(3)}
	f.session.Completions = []testutil.ScheduledCompletion{{AfterPumps: 5, Signal: success()}}

	out := f.controller(Options{}).Acquire(context.Background(), testItem)

	require.True(t, out.Succeeded())
	assert.Equal(t, ViaInstallCheck, out.Via)
	assert.Equal(t, 3, f.session.Pumps)
	assert.Equal(t, 0, f.session.CallbacksNotified)
	assert.Len(t, f.reporter.outcomes, 1)
}

func TestController_ErrorCallbackAfterFullSample(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true
	f.session.Progress = []testutil.ProgressStep{{Bytes: 100, Total: 100}}
	f.session.Completions = []testutil.ScheduledCompletion{{
		AfterPumps: 2,
		Signal:     workshop.CompletionSignal{ItemID: testItem.ID, AppID: 4000, Result: workshop.ResultFail},
	}}

	out := f.controller(Options{}).Acquire(context.Background(), testItem)

	assert.Equal(t, PhaseFailed, out.State.Phase)
	assert.Equal(t, ViaCallback, out.Via)
	assert.True(t, IsCode(out.Err(), ErrCodeDownloadFailed))
	require.Len(t, f.reporter.samples, 1)
	assert.Equal(t, 100, f.reporter.samples[0].Percent)
}

func TestController_SameTickCallbackWins(t *testing.T) {
	tests := []struct {
		name   string
		signal workshop.CompletionSignal
		want   Phase
	}{
		{"success", success(), PhaseCompleted},
		{"failure", workshop.CompletionSignal{ItemID: testItem.ID, Result: workshop.ResultDiskFull}, PhaseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.session.AcceptDownload = true
			f.session.Progress = []testutil.ProgressStep{{Bytes: 100, Total: 100}}
			f.session.Installs = []testutil.ScheduledInstall{installAt(2)}
			f.session.Completions = []testutil.ScheduledCompletion{{AfterPumps: 2, Signal: tt.signal}}

			out := f.controller(Options{}).Acquire(context.Background(), testItem)

			assert.Equal(t, tt.want, out.State.Phase)
			assert.Equal(t, ViaCallback, out.Via)
			assert.Len(t, f.reporter.outcomes, 1)
		})
	}
}

func TestController_IgnoresCompletionsForOtherItems(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true
	f.session.Installs = []testutil.ScheduledInstall{installAt(3)}
	f.session.Completions = []testutil.ScheduledCompletion{
		{AfterPumps: 1, Signal: workshop.CompletionSignal{ItemID: 99, Result: workshop.ResultFail}},
		{AfterPumps: 3, Signal: success()},
	}

	out := f.controller(Options{}).Acquire(context.Background(), testItem)

	require.True(t, out.Succeeded())
	assert.Equal(t, 3, f.session.Pumps)
}

func TestController_Interrupted(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true
	f.session.Progress = []testutil.ProgressStep{{Bytes: 1, Total: 100}, {Bytes: 2, Total: 100}, {Bytes: 3, Total: 100}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sleeper.OnSleep = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	out := f.controller(Options{}).Acquire(ctx, testItem)

	assert.Equal(t, PhaseFailed, out.State.Phase)
	assert.Equal(t, ViaAbort, out.Via)
	assert.True(t, IsCode(out.Err(), ErrCodeInterrupted))
	assert.Equal(t, 3, f.session.Pumps)
	assert.Equal(t, 0, f.session.ActiveCallbacks())
	assert.Len(t, f.reporter.outcomes, 1)
	assert.Len(t, f.recorder.outcomes, 1, "interrupted runs are still journaled")
}

func TestController_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.controller(Options{}).Acquire(ctx, testItem)

	assert.True(t, IsCode(out.Err(), ErrCodeInterrupted))
	assert.Equal(t, 0, f.session.RequestCalls)
	assert.Equal(t, 0, f.session.InstallInfoCalls)
}

func TestController_Deadline(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true
	f.sleeper.OnSleep = func(int) { time.Sleep(time.Millisecond) }

	out := f.controller(Options{Timeout: 20 * time.Millisecond}).Acquire(context.Background(), testItem)

	assert.Equal(t, PhaseFailed, out.State.Phase)
	assert.True(t, IsCode(out.Err(), ErrCodeDeadline))
	assert.Equal(t, 0, f.session.ActiveCallbacks())
	assert.Len(t, f.reporter.outcomes, 1)
}

func TestController_JournalsTransitionsInOrder(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true
	f.session.Progress = []testutil.ProgressStep{{Bytes: 10, Total: 100}, {Bytes: 60, Total: 100}}
	f.session.Installs = []testutil.ScheduledInstall{installAt(2)}
	f.session.Completions = []testutil.ScheduledCompletion{{AfterPumps: 2, Signal: success()}}

	out := f.controller(Options{RunID: "run-journal"}).Acquire(context.Background(), testItem)
	require.True(t, out.Succeeded())

	require.Len(t, f.recorder.transitions, 2, "progress updates are not journaled")
	assert.Equal(t, PhaseDownloading, f.recorder.transitions[0].phase)
	assert.Equal(t, PhaseCompleted, f.recorder.transitions[1].phase)
	assert.Less(t, f.recorder.transitions[0].seq, f.recorder.transitions[1].seq)

	stored, ok := f.recorder.outcomes["run-journal"]
	require.True(t, ok)
	assert.Equal(t, ViaCallback, stored.Via)
}

func TestController_CallbackHoldsSessionReference(t *testing.T) {
	f := newFixture(t)
	f.session.AcceptDownload = true
	f.session.Installs = []testutil.ScheduledInstall{installAt(2)}
	f.session.Completions = []testutil.ScheduledCompletion{{AfterPumps: 2, Signal: success()}}

	var refsDuringRun int
	f.sleeper.OnSleep = func(int) { refsDuringRun = f.handle.Refs() }

	out := f.controller(Options{}).Acquire(context.Background(), testItem)
	require.True(t, out.Succeeded())

	assert.Equal(t, 2, refsDuringRun, "registered callback holds its own reference")
	assert.Equal(t, 1, f.handle.Refs())

	require.NoError(t, f.handle.Close())
	assert.True(t, f.session.Closed)
	assert.True(t, f.handle.Closed())
}
