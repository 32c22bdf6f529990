package session

import "time"

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithAnalyzer sets the curve analyzer invoked on stop.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Session) {
		if a != nil {
			s.analyzer = a
		}
	}
}

// WithIDGenerator sets the generator for per-session identifiers.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithNow sets the wall clock used to stamp completed results.
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInitialCapacity preallocates the sample buffers.
func WithInitialCapacity(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.capacity = n
		}
	}
}
