// Package acquire implements the single-item acquisition pipeline.
//
// ARCHITECTURE:
//
// Single-Thread Tick Loop:
// A run is driven by one goroutine that repeats three steps until the
// dispatcher has an outcome:
//  1. Session.Pump() delivers queued completion notifications to the
//     registered callback, which feeds the Dispatcher.
//  2. Poller.Tick() samples download progress; once the total is reached the
//     controller re-checks install presence and feeds the Dispatcher directly.
//  3. Sleeper.Sleep() waits one tick, or aborts the run when ctx ends.
//
// Exactly-Once Outcome:
// The install check and the completion callback can both report the same
// completion. The Dispatcher accepts the first signal for the tracked item
// and drops the rest, so a run is reported once. Because the callback only
// runs inside Pump on the loop goroutine there is no memory race, only a
// logical one, and pumping before polling makes the callback win ties.
//
// Session Ownership:
// The SessionHandle is reference counted. The registered callback holds its
// own reference until it is unregistered, so the session stays open for as
// long as a notification can still be delivered.
//
// States are forward-only:
//
//	queried -> install_found | downloading -> completed | failed
package acquire
