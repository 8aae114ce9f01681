package gudablas

import (
	"errors"
	"sync"
)

// faultQueue collects asynchronous launch faults in completion order. It is
// bounded: once full, further faults are joined into the last entry so that
// nothing is dropped.
type faultQueue struct {
	mu      sync.Mutex
	size    int
	entries []error
	folded  int
}

func newFaultQueue(size int) *faultQueue {
	if size < 1 {
		size = 1
	}
	return &faultQueue{size: size}
}

func (q *faultQueue) push(err error) {
	if err == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < q.size {
		q.entries = append(q.entries, err)
		return
	}
	last := len(q.entries) - 1
	q.entries[last] = errors.Join(q.entries[last], err)
	q.folded++
}

// drain removes and returns every queued fault, along with how many of
// them were joined into the last entry after the queue filled.
func (q *faultQueue) drain() ([]error, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out, folded := q.entries, q.folded
	q.entries = nil
	q.folded = 0
	return out, folded
}

func (q *faultQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
