package generation

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsTasksInSubmissionOrder(t *testing.T) {
	q := NewQueue()
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var order []int

	first, err := Submit(q, func() int {
		close(started)
		<-release
		mu.Lock()
		order = append(order, 0)
		mu.Unlock()
		return 0
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started
	results := []<-chan int{first}
	for i := 1; i < 5; i++ {
		i := i
		ch, err := Submit(q, func() int {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		results = append(results, ch)
	}
	if waiting := q.Waiting(); waiting != 4 {
		t.Fatalf("expected 4 waiting tasks, got %d", waiting)
	}
	close(release)
	for i, ch := range results {
		select {
		case got := <-ch:
			if got != i {
				t.Fatalf("task %d returned %d", i, got)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for task %d", i)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestQueueNeverOverlapsTasks(t *testing.T) {
	q := NewQueue()
	var mu sync.Mutex
	active, peak := 0, 0
	var chans []<-chan struct{}
	for i := 0; i < 8; i++ {
		ch, err := Submit(q, func() struct{} {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return struct{}{}
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		chans = append(chans, ch)
	}
	for _, ch := range chans {
		<-ch
	}
	if peak != 1 {
		t.Fatalf("expected one task at a time, peak was %d", peak)
	}
}

func TestQueueRestartsAfterIdle(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 3; i++ {
		ch, err := Submit(q, func() int { return i })
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if got := <-ch; got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
}

func TestQueueCloseRejectsNewTasksButFinishesQueued(t *testing.T) {
	q := NewQueue()
	release := make(chan struct{})
	first, _ := Submit(q, func() string {
		<-release
		return "first"
	})
	second, _ := Submit(q, func() string { return "second" })
	q.Close()
	if _, err := Submit(q, func() string { return "late" }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	close(release)
	if got := <-first; got != "first" {
		t.Fatalf("unexpected first result %q", got)
	}
	if got := <-second; got != "second" {
		t.Fatalf("unexpected second result %q", got)
	}
}
