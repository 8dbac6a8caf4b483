package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/duelrank/internal/domain/model"
)

func task(home, guest int64) Task {
	return Task{Match: model.Match{HomeID: home, GuestID: guest, Outcome: model.HomeWon}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Enqueue(ctx, task(1, 2)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue()
	q.Received(got)
	if got.Match.HomeID != 1 || got.Match.GuestID != 2 {
		t.Errorf("unexpected match %+v", got.Match)
	}
	if got.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be stamped")
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if q.Cap() != 2 {
		t.Fatalf("expected capacity 2, got %d", q.Cap())
	}
	for i := int64(1); i <= 2; i++ {
		if err := q.Enqueue(ctx, task(i, i+10)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	if err := q.Enqueue(ctx, task(3, 4)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_InvalidCapacityIgnored(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	if q.Cap() != defaultQueueCapacity {
		t.Errorf("expected default capacity, got %d", q.Cap())
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := q.Enqueue(ctx, task(i, i+10)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, task(7, 8)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	n := 0
	for range q.Dequeue() {
		n++
	}
	if n != 3 {
		t.Errorf("expected 3 pending tasks after close, got %d", n)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A full queue with a cancelled context reports either error; both refuse.
	_ = q.Enqueue(context.Background(), task(1, 2))
	if err := q.Enqueue(ctx, task(3, 4)); err == nil {
		t.Error("expected enqueue to fail")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := q.Enqueue(ctx, task(int64(g+1), int64(j+100))); err != nil {
					t.Errorf("goroutine %d: unexpected error: %v", g, err)
				}
			}
		}(g)
	}

	// Close while producers run must never panic.
	wg.Wait()
	_ = q.Close()

	n := 0
	for range q.Dequeue() {
		n++
	}
	if n != 1000 {
		t.Errorf("expected 1000 tasks, got %d", n)
	}
}
