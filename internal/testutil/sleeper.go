package testutil

import (
	"context"
	"sync"
	"time"
)

// DefaultTestTick is the tick tests pass to loops driven by InstantSleeper.
const DefaultTestTick = 100 * time.Millisecond

// InstantSleeper is a tick sleeper that never blocks.
//
// It lets tests drive the acquisition loop through hundreds of ticks
// instantly and deterministically. OnSleep, when set, runs before each
// sleep returns with the 1-based sleep count; tests use it to cancel a
// context at an exact tick.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type InstantSleeper struct {
	mu      sync.Mutex
	count   int
	total   time.Duration
	OnSleep func(n int)
}

// NewInstantSleeper creates a sleeper with no hook.
func NewInstantSleeper() *InstantSleeper {
	return &InstantSleeper{}
}

// Sleep records d and returns ctx.Err(), without waiting.
func (s *InstantSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.count++
	s.total += d
	n := s.count
	hook := s.OnSleep
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

// Count returns how many times Sleep was called.
func (s *InstantSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Total returns the simulated time slept.
func (s *InstantSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
