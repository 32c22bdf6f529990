package worker

import (
	"context"
	"sync"

	"github.com/okian/peelforce/internal/adapters/mq/queue"
	"github.com/okian/peelforce/internal/domain/model"
)

// DisplayState is the shared display snapshot. Only the publisher writes it.
type DisplayState struct {
	mu      sync.RWMutex
	latest  model.DisplayUpdate
	updates uint64
}

// Update replaces the snapshot.
func (d *DisplayState) Update(u model.DisplayUpdate) {
	d.mu.Lock()
	d.latest = u
	d.updates++
	d.mu.Unlock()
}

// Snapshot returns the latest update and the number of updates applied.
func (d *DisplayState) Snapshot() (model.DisplayUpdate, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest, d.updates
}

// Publisher applies display updates to the display.
type Publisher struct {
	base
	in      queue.Queue[model.DisplayUpdate]
	display Display
}

// NewPublisher creates the publish stage.
func NewPublisher(in queue.Queue[model.DisplayUpdate], display Display, opts ...Option) *Publisher {
	w := &Publisher{in: in, display: display}
	w.init("publisher", opts)
	return w
}

// Run starts the publish loop. Pending updates are discarded on shutdown.
func (w *Publisher) Run(ctx context.Context) {
	defer close(w.done)

	items := w.in.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case u := <-items:
			w.display.Update(u)
		}
	}
}
