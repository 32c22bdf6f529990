package worker

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/okian/peelforce/internal/adapters/mq/queue"
	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/pkg/logger"
	"github.com/okian/peelforce/pkg/metrics"
)

// Default batch configuration constants.
const (
	defaultBatchSize       = 10
	defaultBatchMaxWait    = 10 * time.Millisecond
	defaultDisplayInterval = 50 * time.Millisecond
	defaultDisplayTrigger  = 0.001
)

// BatchConfig tunes the batch processor.
type BatchConfig struct {
	Size            int
	MaxWait         time.Duration
	DisplayTrigger  float64 // N of change needed for a calibrated display update
	DisplayInterval time.Duration
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.Size <= 0 {
		c.Size = defaultBatchSize
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultBatchMaxWait
	}
	if c.DisplayInterval <= 0 {
		c.DisplayInterval = defaultDisplayInterval
	}
	if c.DisplayTrigger < 0 {
		c.DisplayTrigger = defaultDisplayTrigger
	}
	return c
}

// BatchProcessor drains the capture queue in small batches, feeds the ring,
// decides display updates and forwards every sample to the logging queue.
type BatchProcessor struct {
	base
	cfg BatchConfig

	capture  <-chan model.RawSample
	ring     RingAppender
	conv     Converter
	forward  queue.Queue[model.ForceSample]
	display  queue.Queue[model.DisplayUpdate]
	captureQ queue.Queue[model.RawSample]

	processed atomic.Uint64

	// display rate limiting, owned by the Run goroutine
	lastDisplay time.Time
	lastForce   float64
	haveForce   bool
}

// NewBatchProcessor wires the batch stage.
func NewBatchProcessor(
	capture queue.Queue[model.RawSample],
	ring RingAppender,
	conv Converter,
	forward queue.Queue[model.ForceSample],
	display queue.Queue[model.DisplayUpdate],
	cfg BatchConfig,
	opts ...Option,
) *BatchProcessor {
	w := &BatchProcessor{
		cfg:      cfg.withDefaults(),
		capture:  capture.Dequeue(),
		captureQ: capture,
		ring:     ring,
		conv:     conv,
		forward:  forward,
		display:  display,
	}
	w.init("batch-processor", opts)
	return w
}

// Processed returns the number of samples drained so far.
func (w *BatchProcessor) Processed() uint64 { return w.processed.Load() }

// Run starts the batch loop.
func (w *BatchProcessor) Run(ctx context.Context) {
	defer close(w.done)

	batch := make([]model.RawSample, 0, w.cfg.Size)
	for {
		var ok bool
		batch, ok = w.collect(ctx, batch[:0])
		if len(batch) > 0 {
			w.process(ctx, batch)
		}
		if !ok {
			if n := w.captureQ.Len(); n > 0 {
				w.logger.Debug(ctx, "discarding queued samples at shutdown", logger.Int("count", n))
			}
			return
		}
	}
}

// collect waits for the first sample, then gathers up to Size samples or
// until MaxWait elapses. It returns false once the worker should stop.
func (w *BatchProcessor) collect(ctx context.Context, batch []model.RawSample) ([]model.RawSample, bool) {
	select {
	case <-ctx.Done():
		return batch, false
	case <-w.shutdown:
		return batch, false
	case s := <-w.capture:
		batch = append(batch, s)
	}

	timer := time.NewTimer(w.cfg.MaxWait)
	defer timer.Stop()
	for len(batch) < w.cfg.Size {
		select {
		case s := <-w.capture:
			batch = append(batch, s)
		case <-timer.C:
			return batch, true
		case <-ctx.Done():
			return batch, false
		case <-w.shutdown:
			return batch, false
		}
	}
	return batch, true
}

func (w *BatchProcessor) process(ctx context.Context, batch []model.RawSample) {
	w.processed.Add(uint64(len(batch)))
	metrics.RecordBatch(len(batch))

	w.ring.Append(batch)

	newest := batch[len(batch)-1]
	w.maybeDisplay(newest)

	for i, s := range batch {
		fs := model.ForceSample{
			Timestamp: s.Timestamp,
			Position:  s.Position,
			Force:     w.conv.Convert(s.Raw),
		}
		if err := w.forward.Enqueue(ctx, fs); err != nil {
			metrics.RecordForwardDropped(len(batch) - i)
			metrics.RecordSamplesForwarded(i)
			return
		}
	}
	metrics.RecordSamplesForwarded(len(batch))
}

// maybeDisplay emits a display update when calibrated and the force moved by
// at least the trigger and the interval elapsed, or when uncalibrated and the
// interval alone elapsed.
func (w *BatchProcessor) maybeDisplay(newest model.RawSample) {
	force := w.conv.Convert(newest.Raw)
	now := w.clock.Now()
	intervalDue := w.lastDisplay.IsZero() || now.Sub(w.lastDisplay) >= w.cfg.DisplayInterval

	notify := intervalDue
	if force.Valid && w.haveForce {
		notify = intervalDue && math.Abs(force.V-w.lastForce) >= w.cfg.DisplayTrigger
	}
	if !notify {
		return
	}

	u := model.DisplayUpdate{
		Timestamp:  newest.Timestamp,
		Raw:        newest.Raw,
		Force:      force,
		Position:   newest.Position,
		Calibrated: force.Valid,
	}
	if !w.display.TryEnqueue(u) {
		metrics.RecordDisplayDropped()
		return
	}
	metrics.RecordDisplayNotification()
	w.lastDisplay = now
	w.lastForce, w.haveForce = force.V, force.Valid
}
