package transport

import (
	"sync"

	"github.com/dkovalenko/udpflow/pkg/wire"
)

// SubmitQueue holds local payload submissions that arrive while a payload
// is already in flight (invariant b: a session holds at most one payload
// in-flight; additional submissions queue FIFO).
type SubmitQueue struct {
	mu    sync.Mutex
	items []wire.Payload
}

// NewSubmitQueue creates an empty queue.
func NewSubmitQueue() *SubmitQueue {
	return &SubmitQueue{}
}

// Push enqueues a payload for later transmission.
func (q *SubmitQueue) Push(p wire.Payload) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, p)
}

// Pop removes and returns the oldest queued payload, if any.
func (q *SubmitQueue) Pop() (wire.Payload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return wire.Payload{}, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

// Len reports how many payloads are currently queued.
func (q *SubmitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
