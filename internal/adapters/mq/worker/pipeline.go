package worker

import (
	"context"
	"time"

	"github.com/okian/peelforce/internal/adapters/mq/queue"
	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/pkg/logger"
)

// Default pipeline configuration constants.
const (
	defaultJoinTimeout = 2 * time.Second
)

// PipelineConfig sizes the queues and tunes the stages.
type PipelineConfig struct {
	CaptureQueueSize int
	LoggingQueueSize int
	DisplayQueueSize int
	Batch            BatchConfig
	MonitorInterval  time.Duration
	JoinTimeout      time.Duration
}

// Pipeline owns the capture, logging and display queues and the four stages.
type Pipeline struct {
	capture *queue.InMemoryQueue[model.RawSample]
	logging *queue.InMemoryQueue[model.ForceSample]
	display *queue.InMemoryQueue[model.DisplayUpdate]

	batcher   *BatchProcessor
	consumer  *LoggingConsumer
	publisher *Publisher
	monitor   *Monitor

	pos         PositionSource
	cancel      context.CancelFunc
	joinTimeout time.Duration
	logger      logger.Logger
}

// NewPipeline wires the stages. opts apply to every stage.
func NewPipeline(cfg PipelineConfig, ring RingAppender, conv Converter, pos PositionSource,
	sink SampleSink, display Display, opts ...Option,
) *Pipeline {
	p := &Pipeline{
		capture:     queue.NewInMemoryQueue[model.RawSample](queue.WithCapacity(cfg.CaptureQueueSize), queue.WithCaptureMetrics()),
		logging:     queue.NewInMemoryQueue[model.ForceSample](queue.WithCapacity(cfg.LoggingQueueSize)),
		display:     queue.NewInMemoryQueue[model.DisplayUpdate](queue.WithCapacity(cfg.DisplayQueueSize)),
		pos:         pos,
		joinTimeout: cfg.JoinTimeout,
	}
	var b base
	for _, opt := range opts {
		opt(&b)
	}
	p.logger = named(b.logger, "pipeline")
	if p.joinTimeout <= 0 {
		p.joinTimeout = defaultJoinTimeout
	}

	p.batcher = NewBatchProcessor(p.capture, ring, conv, p.logging, p.display, cfg.Batch, opts...)
	p.consumer = NewLoggingConsumer(p.logging, sink, opts...)
	p.publisher = NewPublisher(p.display, display, opts...)
	p.monitor = NewMonitor(cfg.MonitorInterval, p.batcher.Processed, p.capture.Dropped, p.capture.Len, opts...)
	return p
}

// Capture is the hardware callback entry point: O(1) and never blocking.
// The stage position is paired with the reading here, at sample time.
// It returns false when the sample was dropped.
func (p *Pipeline) Capture(timestamp, raw float64) bool {
	return p.capture.TryEnqueue(model.RawSample{Timestamp: timestamp, Raw: raw, Position: positionOf(p.pos)})
}

func positionOf(src PositionSource) model.OptFloat {
	if src == nil {
		return model.None()
	}
	if v, ok := src.Position(); ok {
		return model.Some(v)
	}
	return model.None()
}

// Start launches every stage.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers() {
		go w.Run(ctx)
	}
}

// Stop signals every stage and waits at most the join timeout in total.
// Queued samples that were not consumed in time are discarded.
func (p *Pipeline) Stop(ctx context.Context) {
	_ = p.capture.Close()

	joinCtx, cancel := context.WithTimeout(ctx, p.joinTimeout)
	defer cancel()

	// the batcher goes first so its last batch can still reach the consumer
	if err := p.batcher.Shutdown(joinCtx); err != nil {
		p.logger.Warn(ctx, "batch processor did not stop in time", logger.Error(err))
	}
	for _, w := range []Worker{p.consumer, p.publisher, p.monitor} {
		if err := w.Shutdown(joinCtx); err != nil {
			p.logger.Warn(ctx, "worker did not stop in time", logger.Error(err))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	_ = p.logging.Close()
	_ = p.display.Close()

	if n := p.capture.Drain(); n > 0 {
		p.logger.Info(ctx, "discarded unprocessed samples", logger.Int("count", n))
	}
}

// Stats reports pipeline counters.
type Stats struct {
	QueueLen      int
	QueueCap      int
	Dropped       uint64
	Processed     uint64
	LoggingQueued int
	ThroughputHz  float64
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		QueueLen:      p.capture.Len(),
		QueueCap:      p.capture.Cap(),
		Dropped:       p.capture.Dropped(),
		Processed:     p.batcher.Processed(),
		LoggingQueued: p.logging.Len(),
		ThroughputHz:  p.monitor.Hz(),
	}
}

func (p *Pipeline) workers() []Worker {
	return []Worker{p.batcher, p.consumer, p.publisher, p.monitor}
}
