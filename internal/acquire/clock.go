package acquire

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultTick is the pump and poll cadence.
const DefaultTick = 100 * time.Millisecond

// Clock is a monotonic logical clock for ordering journal entries.
//
// Wall time is never used for ordering: two transitions inside the same tick
// still get distinct, increasing seq values.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although a run only advances it from the loop goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Sleeper suspends the loop between ticks.
// The sleep between ticks is the only blocking operation of a run.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer and wakes early when ctx ends.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
