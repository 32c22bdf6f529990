package worker

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/okian/peelforce/pkg/logger"
	"github.com/okian/peelforce/pkg/metrics"
)

const defaultMonitorInterval = time.Second

// Monitor samples the processed-sample counter on a fixed interval and
// reports the achieved throughput. It never gates the pipeline.
type Monitor struct {
	base
	interval time.Duration
	counter  func() uint64
	dropped  func() uint64
	queueLen func() int

	hz atomic.Uint64 // float64 bits
}

// NewMonitor creates the throughput monitor. dropped and queueLen may be nil.
func NewMonitor(interval time.Duration, counter, dropped func() uint64, queueLen func() int, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	w := &Monitor{
		interval: interval,
		counter:  counter,
		dropped:  dropped,
		queueLen: queueLen,
	}
	w.init("monitor", opts)
	return w
}

// Hz returns the last measured throughput.
func (w *Monitor) Hz() float64 {
	return math.Float64frombits(w.hz.Load())
}

// Run starts the monitor loop.
func (w *Monitor) Run(ctx context.Context) {
	defer close(w.done)

	lastCount, lastDropped := w.counter(), w.droppedCount()
	lastTick := w.clock.Now()

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case now := <-ticker.C():
			count, dropped := w.counter(), w.droppedCount()
			if elapsed := now.Sub(lastTick).Seconds(); elapsed > 0 {
				hz := float64(count-lastCount) / elapsed
				w.hz.Store(math.Float64bits(hz))
				metrics.UpdateThroughputHz(hz)
			}
			if w.queueLen != nil {
				w.queueLen()
			}
			if dropped > lastDropped {
				w.logger.Debug(ctx, "capture queue dropped samples",
					logger.Int64("dropped", int64(dropped-lastDropped)),
					logger.Float64("hz", w.Hz()),
				)
			}
			lastCount, lastDropped, lastTick = count, dropped, now
		}
	}
}

func (w *Monitor) droppedCount() uint64 {
	if w.dropped == nil {
		return 0
	}
	return w.dropped()
}
