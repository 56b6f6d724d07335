package engine

import (
	"sync"

	"github.com/richardliu001/pos-sync/internal/model"
)

// eventQueue is a thread-safe FIFO for change events. The heartbeat
// poller enqueues whole batches; the dispatcher's single consumer
// drains it, which is what keeps per-entity application in delivery
// order.
//
// The signal channel (buffered, size 1) coalesces wake-ups so the
// consumer can wait without spinning and still honor context
// cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []model.ChangeEvent
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]model.ChangeEvent, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends an event. Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e model.ChangeEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front event without blocking.
func (q *eventQueue) TryDequeue() (model.ChangeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return model.ChangeEvent{}, false
	}
	e := q.events[0]
	q.events[0] = model.ChangeEvent{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns the wake-up channel. Receive on it alongside a
// context's Done channel, then retry TryDequeue.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len reports the current queue depth.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further enqueues.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
