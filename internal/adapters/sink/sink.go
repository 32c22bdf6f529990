// Package sink persists completed peel results.
package sink

import (
	"context"
	"errors"

	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/pkg/logger"
	"github.com/okian/peelforce/pkg/metrics"
)

// Sink receives one result per completed session.
type Sink interface {
	Name() string
	Append(ctx context.Context, r model.PeelResult) error
	Close() error
}

// Multi fans a result out to several sinks. A failing sink does not stop
// the others.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks, skipping nil entries.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Append writes r to every sink and joins their errors.
func (m *Multi) Append(ctx context.Context, r model.PeelResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, r); err != nil {
			metrics.RecordSinkError(s.Name())
			logger.Get().Error(ctx, "sink append failed",
				logger.String("sink", s.Name()),
				logger.Int64("layer_id", r.Metrics.LayerID),
				logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
