package live

import (
	"sync"

	"github.com/eapache/queue"
)

// eventQueue is the ordered, unbounded conduit between a session's
// goroutines and the single consumer. Pushes never block; a slow
// consumer accumulates memory, not dropped events.
type eventQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newEventQueue() *eventQueue {
	return &eventQueue{q: queue.New()}
}

func (eq *eventQueue) push(e Event) {
	eq.mu.Lock()
	eq.q.Add(e)
	eq.mu.Unlock()
}

// poll removes and returns the oldest queued event without blocking.
func (eq *eventQueue) poll() (Event, bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	if eq.q.Length() == 0 {
		return nil, false
	}
	return eq.q.Remove().(Event), true
}

func (eq *eventQueue) len() int {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	return eq.q.Length()
}
