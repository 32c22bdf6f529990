package worker

import (
	"context"

	"github.com/okian/peelforce/internal/adapters/mq/queue"
	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/pkg/logger"
)

// LoggingConsumer hands every forwarded sample, in capture order, to the sink.
type LoggingConsumer struct {
	base
	in   queue.Queue[model.ForceSample]
	sink SampleSink
}

// NewLoggingConsumer creates the full-rate consumer.
func NewLoggingConsumer(in queue.Queue[model.ForceSample], sink SampleSink, opts ...Option) *LoggingConsumer {
	w := &LoggingConsumer{in: in, sink: sink}
	w.init("logging-consumer", opts)
	return w
}

// Run starts the consumer loop. On shutdown it flushes what is already
// queued without waiting for more.
func (w *LoggingConsumer) Run(ctx context.Context) {
	defer close(w.done)

	items := w.in.Dequeue()
	for {
		select {
		case <-ctx.Done():
			w.flush(ctx, items)
			return
		case <-w.shutdown:
			w.flush(ctx, items)
			return
		case s := <-items:
			w.sink.AddSample(s.Timestamp, s.Position, s.Force)
		}
	}
}

func (w *LoggingConsumer) flush(ctx context.Context, items <-chan model.ForceSample) {
	n := 0
	for {
		select {
		case s := <-items:
			w.sink.AddSample(s.Timestamp, s.Position, s.Force)
			n++
		default:
			if n > 0 {
				w.logger.Debug(ctx, "flushed queued samples", logger.Int("count", n))
			}
			return
		}
	}
}
