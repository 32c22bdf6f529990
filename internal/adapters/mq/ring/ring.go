// Package ring holds the most recent raw samples for diagnostics and
// zero-reading capture.
package ring

import (
	"sync"

	"github.com/okian/peelforce/internal/domain/model"
)

const defaultCapacity = 1000

// Buffer is a fixed-capacity ring of raw samples guarded by its own mutex.
type Buffer struct {
	mu    sync.Mutex
	data  []model.RawSample
	next  int
	full  bool
	total uint64
}

// New returns a ring holding up to capacity samples.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer{data: make([]model.RawSample, capacity)}
}

// Append adds a batch, overwriting the oldest samples when full.
func (b *Buffer) Append(batch []model.RawSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range batch {
		b.data[b.next] = s
		b.next++
		if b.next == len(b.data) {
			b.next = 0
			b.full = true
		}
	}
	b.total += uint64(len(batch))
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lenLocked()
}

// Cap returns the ring capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Total returns the number of samples ever appended.
func (b *Buffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Recent returns up to n of the newest samples, oldest first.
// n <= 0 returns everything retained.
func (b *Buffer) Recent(n int) []model.RawSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.lenLocked()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]model.RawSample, n)
	start := b.next - n
	if start < 0 {
		start += len(b.data)
	}
	for i := range n {
		out[i] = b.data[(start+i)%len(b.data)]
	}
	return out
}

// Latest returns the newest sample.
func (b *Buffer) Latest() (model.RawSample, bool) {
	r := b.Recent(1)
	if len(r) == 0 {
		return model.RawSample{}, false
	}
	return r[0], true
}

func (b *Buffer) lenLocked() int {
	if b.full {
		return len(b.data)
	}
	return b.next
}
