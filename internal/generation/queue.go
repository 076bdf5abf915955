package generation

import (
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("generation queue is closed")

// Queue runs tasks one at a time in submission order. A task always runs to
// completion before the next one starts.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	active  bool
	closed  bool
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) enqueue(task func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, task)
	if !q.active {
		q.active = true
		go q.drain()
	}
	return nil
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		task()
	}
}

// Waiting returns how many tasks have not started yet.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close rejects new tasks. Tasks already queued still run.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Submit queues task and returns a channel that receives its result.
func Submit[T any](q *Queue, task func() T) (<-chan T, error) {
	out := make(chan T, 1)
	if err := q.enqueue(func() { out <- task() }); err != nil {
		return nil, err
	}
	return out, nil
}
