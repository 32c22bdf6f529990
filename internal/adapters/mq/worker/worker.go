package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/internal/timeutil"
	"github.com/okian/peelforce/pkg/logger"
)

// Worker is one long-lived pipeline stage.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown signals the worker and waits for it to exit or ctx to expire.
	Shutdown(ctx context.Context) error
}

// Converter turns a raw reading into force; an absent value means uncalibrated.
type Converter interface {
	Convert(raw float64) model.OptFloat
}

// PositionSource supplies the stage position. It is pulled on the capture
// path, so implementations must not block.
type PositionSource interface {
	Position() (float64, bool)
}

// RingAppender retains raw batches for diagnostics.
type RingAppender interface {
	Append(batch []model.RawSample)
}

// SampleSink receives every forwarded sample.
type SampleSink interface {
	AddSample(timestamp float64, position, force model.OptFloat)
}

// Display receives rate-limited display updates.
type Display interface {
	Update(u model.DisplayUpdate)
}

// base carries the shutdown plumbing shared by every worker.
type base struct {
	name   string
	logger logger.Logger
	clock  timeutil.Clock

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}
}

func (b *base) init(name string, opts []Option) {
	b.name = name
	b.clock = timeutil.RealClock{}
	b.shutdown = make(chan struct{})
	b.done = make(chan struct{})
	for _, opt := range opts {
		opt(b)
	}
	b.logger = named(b.logger, b.name)
}

func named(parent logger.Logger, name string) logger.Logger {
	if parent == nil {
		return logger.Get().Named(name)
	}
	return parent.Named(name)
}

// Done is closed once the worker loop has exited.
func (b *base) Done() <-chan struct{} { return b.done }

// Name returns the worker name.
func (b *base) Name() string { return b.name }

func (b *base) signal() {
	b.stopOnce.Do(func() { close(b.shutdown) })
}

// Shutdown signals the worker and waits for it to exit.
func (b *base) Shutdown(ctx context.Context) error {
	b.signal()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		b.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%s shutdown timed out: %w", b.name, ctx.Err())
	}
}
