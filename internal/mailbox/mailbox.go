// Package mailbox provides an unbounded, ordered hand-off from producers that
// must never block to a single consumer reading a channel.
package mailbox

import "sync"

type Mailbox[T any] struct {
	mu       sync.Mutex
	items    []T
	finished bool
	stopped  bool
	signal   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	out      chan T
}

func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		out:    make(chan T),
	}
	go m.pump()
	return m
}

// Out is closed after Finish once every queued item was delivered, or right
// after Stop.
func (m *Mailbox[T]) Out() <-chan T {
	return m.out
}

// Put queues item without blocking. It reports false once the mailbox was
// finished or stopped.
func (m *Mailbox[T]) Put(item T) bool {
	m.mu.Lock()
	if m.finished || m.stopped {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, item)
	m.mu.Unlock()
	m.wake()
	return true
}

// Finish rejects further puts and closes Out after the backlog drains.
func (m *Mailbox[T]) Finish() {
	m.mu.Lock()
	m.finished = true
	m.mu.Unlock()
	m.wake()
}

// Stop drops the backlog and closes Out.
func (m *Mailbox[T]) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.items = nil
	m.mu.Unlock()
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Mailbox[T]) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *Mailbox[T]) pump() {
	defer close(m.out)
	var zero T
	for {
		m.mu.Lock()
		for len(m.items) == 0 {
			if m.finished || m.stopped {
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
			select {
			case <-m.signal:
			case <-m.stop:
				return
			}
			m.mu.Lock()
		}
		item := m.items[0]
		m.items[0] = zero
		m.items = m.items[1:]
		m.mu.Unlock()

		select {
		case m.out <- item:
		case <-m.stop:
			return
		}
	}
}
