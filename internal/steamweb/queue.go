package steamweb

import (
	"sync"

	"github.com/roach88/workshopdl/internal/workshop"
)

// eventKind distinguishes queued notifications.
type eventKind int

const (
	eventQuery eventKind = iota + 1
	eventCompletion
)

// event is a notification produced on a network goroutine and delivered on
// the loop goroutine by Pump.
type event struct {
	kind eventKind

	// eventQuery
	fn      workshop.QueryFunc
	entries []*workshop.ItemDescriptor
	err     error

	// eventCompletion
	signal workshop.CompletionSignal
}

// eventQueue is a thread-safe FIFO of pending notifications.
//
// Network goroutines enqueue; only Pump dequeues. The queue is unbounded:
// a run produces one query result and at most one completion per download.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{events: make([]event, 0, 8)}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]
	// Release the callback and entries held by the slot.
	q.events[0] = event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Len returns the number of pending events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further events and drops pending ones.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.events = nil
}
