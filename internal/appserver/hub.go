package appserver

import (
	"sync"

	"codexbridge/internal/mailbox"
)

// Hub fans dispatched messages out to every current subscriber. Each
// subscriber gets its own unbounded mailbox, so Broadcast never blocks the
// read loop on a slow consumer.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*mailbox.Mailbox[Message]
}

func NewHub() *Hub {
	return &Hub{subs: map[int]*mailbox.Mailbox[Message]{}}
}

// Subscribe registers a subscriber. Messages broadcast after Subscribe returns
// are delivered in order; the returned cancel detaches and closes the channel.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	box := mailbox.New[Message]()
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = box
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			box.Stop()
		})
	}
	return box.Out(), cancel
}

func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, box := range h.subs {
		box.Put(msg)
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[int]*mailbox.Mailbox[Message]{}
	h.mu.Unlock()
	for _, box := range subs {
		box.Stop()
	}
}
