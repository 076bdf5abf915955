package mailbox

import (
	"testing"
	"time"
)

func TestMailboxDeliversInOrderAfterFinish(t *testing.T) {
	m := New[int]()
	for i := 0; i < 1000; i++ {
		if !m.Put(i) {
			t.Fatalf("put %d rejected", i)
		}
	}
	m.Finish()
	if m.Put(1001) {
		t.Fatalf("put after finish should be rejected")
	}

	want := 0
	for got := range m.Out() {
		if got != want {
			t.Fatalf("out of order: got %d want %d", got, want)
		}
		want++
	}
	if want != 1000 {
		t.Fatalf("expected 1000 items, got %d", want)
	}
}

func TestMailboxStopClosesOut(t *testing.T) {
	m := New[string]()
	m.Put("a")
	m.Put("b")
	m.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-m.Out():
			if !ok {
				if m.Put("c") {
					t.Fatalf("put after stop should be rejected")
				}
				return
			}
		case <-deadline:
			t.Fatalf("out channel was not closed after stop")
		}
	}
}

func TestMailboxPutNeverBlocksWithoutReader(t *testing.T) {
	m := New[int]()
	defer m.Stop()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			m.Put(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("put blocked without a reader")
	}
	if m.Len() < 9999 {
		t.Fatalf("expected backlog to be retained, got %d", m.Len())
	}
}
