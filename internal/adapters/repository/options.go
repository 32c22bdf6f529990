package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithHistory sets how many results are kept.
func WithHistory(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.history = n
		}
	}
}

// WithCurveHistory sets how many of the newest results keep their full
// trace. Older results keep metrics only.
func WithCurveHistory(n int) Option {
	return func(s *MemoryStore) {
		if n >= 0 {
			s.curves = n
		}
	}
}
