package service

import (
	"github.com/okian/peelforce/internal/adapters/sink"
	"github.com/okian/peelforce/internal/adapters/source"
	"github.com/okian/peelforce/internal/config"
	"github.com/okian/peelforce/internal/timeutil"
	"github.com/okian/peelforce/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults from config.New are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSource replaces the configured sample source.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithSinks replaces the configured metrics sinks.
func WithSinks(sinks ...sink.Sink) Option {
	return func(s *Service) {
		s.customSinks = sinks
		s.hasCustomSinks = true
	}
}

// WithClock sets the clock used for timestamps and rate limiting.
func WithClock(c timeutil.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}
