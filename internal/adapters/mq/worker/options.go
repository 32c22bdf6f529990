// Package worker runs the long-lived stages of the acquisition pipeline.
package worker

import (
	"github.com/okian/peelforce/internal/timeutil"
	"github.com/okian/peelforce/pkg/logger"
)

// Option applies a configuration option to a worker.
type Option func(*base)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(b *base) {
		if name != "" {
			b.name = name
		}
	}
}

// WithLogger sets the parent logger; the worker name is appended to it.
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock sets the clock used for rate limiting and throughput.
func WithClock(c timeutil.Clock) Option {
	return func(b *base) {
		if c != nil {
			b.clock = c
		}
	}
}
