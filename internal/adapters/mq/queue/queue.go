// Package queue provides the bounded queues connecting the acquisition stages.
//
// The data channel is never closed; Close signals consumers through Done so
// that a late producer can never panic on a closed channel.
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/peelforce/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 2000
)

// Queue is a bounded FIFO with a non-blocking and a blocking producer side.
type Queue[T any] interface {
	// TryEnqueue adds v without blocking. It returns false and counts a drop
	// when the queue is full or closed.
	TryEnqueue(v T) bool

	// Enqueue adds v, waiting for space until ctx is done or the queue closes.
	Enqueue(ctx context.Context, v T) error

	// Dequeue returns the receive side of the queue.
	Dequeue() <-chan T

	// Done is closed when the queue is closed.
	Done() <-chan struct{}

	// Len returns the current number of queued items.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Dropped returns the number of items rejected by TryEnqueue.
	Dropped() uint64

	// Close stops accepting new items.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	items      chan T
	done       chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
	dropped    atomic.Uint64
	capacity   int
	instrument bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	o := options{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	q := &InMemoryQueue[T]{
		items:      make(chan T, o.capacity),
		done:       make(chan struct{}),
		capacity:   o.capacity,
		instrument: o.instrument,
	}

	if q.instrument {
		metrics.UpdateQueueCapacity(q.capacity)
		metrics.UpdateQueueSize(0)
		metrics.UpdateQueueUtilization(0.0)
	}
	return q
}

// TryEnqueue adds v if there is room. It never blocks.
func (q *InMemoryQueue[T]) TryEnqueue(v T) bool {
	if q.closed.Load() {
		q.drop()
		return false
	}

	select {
	case q.items <- v:
		if q.instrument {
			metrics.RecordSampleCaptured()
		}
		return true
	default:
		q.drop()
		return false
	}
}

// Enqueue adds v, blocking while the queue is full.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, v T) error {
	if q.closed.Load() {
		return ErrClosed
	}

	select {
	case q.items <- v:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue[T]) drop() {
	q.dropped.Add(1)
	if q.instrument {
		metrics.RecordSampleDropped()
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue[T]) Dequeue() <-chan T {
	return q.items
}

// Done is closed by Close.
func (q *InMemoryQueue[T]) Done() <-chan struct{} {
	return q.done
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	size := len(q.items)
	if q.instrument {
		metrics.UpdateQueueSize(size)
		metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	}
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue[T]) Cap() int {
	return q.capacity
}

// Dropped returns the number of rejected items.
func (q *InMemoryQueue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops accepting new items. Items already queued stay readable.
func (q *InMemoryQueue[T]) Close() error {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Drain discards every queued item and returns how many were removed.
func (q *InMemoryQueue[T]) Drain() int {
	n := 0
	for {
		select {
		case <-q.items:
			n++
		default:
			return n
		}
	}
}
