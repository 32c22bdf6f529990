package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/peelforce/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue[model.RawSample](WithCapacity(2))

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.TryEnqueue(model.RawSample{Timestamp: 1, Raw: 0.5}) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	s := <-q.Dequeue()
	if s.Raw != 0.5 {
		t.Errorf("expected raw 0.5, got %v", s.Raw)
	}

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if q.Cap() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Cap())
	}
}

func TestInMemoryQueue_DropsWhenFull(t *testing.T) {
	q := NewInMemoryQueue[model.RawSample](WithCapacity(2), WithCaptureMetrics())

	for i := 0; i < 2; i++ {
		if !q.TryEnqueue(model.RawSample{Timestamp: float64(i)}) {
			t.Fatalf("expected enqueue %d to succeed", i)
		}
	}

	if q.TryEnqueue(model.RawSample{Timestamp: 2}) {
		t.Error("expected enqueue to fail when full")
	}
	if q.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", q.Dropped())
	}

	// the oldest samples survive
	if first := <-q.Dequeue(); first.Timestamp != 0 {
		t.Errorf("expected oldest sample first, got %v", first.Timestamp)
	}
}

func TestInMemoryQueue_ProducerNeverBlocks(t *testing.T) {
	q := NewInMemoryQueue[model.RawSample](WithCapacity(10))

	const n = 100000
	start := time.Now()
	for i := 0; i < n; i++ {
		q.TryEnqueue(model.RawSample{Timestamp: float64(i)})
	}
	elapsed := time.Since(start)

	if q.Len() != 10 {
		t.Errorf("expected a full queue, got %d", q.Len())
	}
	if q.Dropped() != n-10 {
		t.Errorf("expected %d drops, got %d", n-10, q.Dropped())
	}
	// generous bound: a blocking producer would hang forever here
	if elapsed > 2*time.Second {
		t.Errorf("producer took %v for %d calls", elapsed, n)
	}
}

func TestInMemoryQueue_BlockingEnqueue(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(1))
	ctx := context.Background()

	if err := q.Enqueue(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// full: the second enqueue waits until a consumer makes room
	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, 2) }()

	select {
	case <-done:
		t.Fatal("expected enqueue to block while full")
	case <-time.After(20 * time.Millisecond):
	}

	<-q.Dequeue()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(cctx, 3); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(1))
	if err := q.Enqueue(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(context.Background(), 2) }()
	time.Sleep(10 * time.Millisecond)

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}

	if err := <-blocked; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed for the blocked producer, got %v", err)
	}
	if q.TryEnqueue(3) {
		t.Error("expected enqueue after close to fail")
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	select {
	case <-q.Done():
	default:
		t.Error("expected done channel to be closed")
	}
	if n := q.Drain(); n != 1 {
		t.Errorf("expected to drain 1 item, got %d", n)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(100))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.TryEnqueue(i)
			}
		}()
	}

	received := 0
	stop := make(chan struct{})
	consumed := make(chan int)
	go func() {
		for {
			select {
			case <-q.Dequeue():
				received++
			case <-stop:
				consumed <- received
				return
			}
		}
	}()

	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	close(stop)
	got := <-consumed

	if uint64(got+q.Len())+q.Dropped() != 8000 {
		t.Errorf("accepted plus dropped should equal produced: got %d+%d+%d", got, q.Len(), q.Dropped())
	}
}
