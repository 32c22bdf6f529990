package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*options)

type options struct {
	capacity   int
	instrument bool
}

// WithCapacity sets the maximum number of buffered items.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithCaptureMetrics reports accepted and dropped items, queue size and
// utilization through the acquisition metrics.
func WithCaptureMetrics() Option {
	return func(o *options) {
		o.instrument = true
	}
}
