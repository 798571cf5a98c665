package steamweb

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/workshopdl/internal/workshop"
)

func completionEvent(id uint64) event {
	return event{kind: eventCompletion, signal: workshop.CompletionSignal{ItemID: id}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for i := uint64(1); i <= 3; i++ {
		require.True(t, q.Enqueue(completionEvent(i)))
	}
	assert.Equal(t, 3, q.Len())

	for i := uint64(1); i <= 3; i++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, eventCompletion, e.kind)
		assert.Equal(t, i, e.signal.ItemID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(completionEvent(1))

	q.Close()

	assert.False(t, q.Enqueue(completionEvent(2)), "enqueue after close should fail")
	assert.Equal(t, 0, q.Len(), "close drops pending events")
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(completionEvent(uint64(p*perProducer + i)))
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for {
		e, ok := q.TryDequeue()
		if !ok {
			break
		}
		seen[e.signal.ItemID] = true
	}
	assert.Len(t, seen, producers*perProducer)
}
