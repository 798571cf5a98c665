package acquire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/workshopdl/internal/testutil"
)

func TestCanTransition(t *testing.T) {
	allowed := map[Phase][]Phase{
		PhaseQueried:      {PhaseInstallFound, PhaseDownloading, PhaseFailed},
		PhaseInstallFound: {PhaseCompleted, PhaseFailed},
		PhaseDownloading:  {PhaseDownloading, PhaseCompleted, PhaseFailed},
		PhaseCompleted:    nil,
		PhaseFailed:       nil,
	}
	all := []Phase{PhaseQueried, PhaseInstallFound, PhaseDownloading, PhaseCompleted, PhaseFailed}

	for from, tos := range allowed {
		for _, to := range all {
			want := false
			for _, a := range tos {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, canTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTracker_RejectsBackwardTransition(t *testing.T) {
	rec := newMemoryRecorder()
	tr := newTracker(context.Background(), "run", NewClock(), rec, discardLogger())

	require.NoError(t, tr.advance(State{Phase: PhaseDownloading}))
	require.NoError(t, tr.advance(State{Phase: PhaseDownloading, BytesDownloaded: 5, TotalBytes: 10}))
	require.NoError(t, tr.advance(State{Phase: PhaseCompleted, Path: "/w"}))

	assert.Error(t, tr.advance(State{Phase: PhaseFailed}))
	assert.Error(t, tr.advance(State{Phase: PhaseDownloading}))
	assert.Equal(t, PhaseCompleted, tr.current().Phase)
	assert.Len(t, rec.transitions, 2)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "install_found", PhaseInstallFound.String())
	assert.Equal(t, "phase(99)", Phase(99).String())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseDownloading.Terminal())
}

func TestSessionHandle_RefCounting(t *testing.T) {
	s := testutil.NewFakeSession(4000)
	h := NewSessionHandle(s)

	held := h.Retain()
	assert.Equal(t, 2, h.Refs())

	require.NoError(t, h.Close())
	assert.False(t, s.Closed, "callback reference keeps the session open")
	assert.False(t, held.Closed())

	require.NoError(t, held.Release())
	assert.True(t, s.Closed)
	assert.True(t, h.Closed())

	// Extra releases are harmless.
	require.NoError(t, h.Release())
	assert.Equal(t, 0, h.Refs())
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
	assert.Equal(t, byte('7'), id[14], "version nibble")
}
