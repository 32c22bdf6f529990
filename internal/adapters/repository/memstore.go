package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/peelforce/internal/domain/model"
)

const (
	defaultHistory      = 256
	defaultCurveHistory = 16
)

// MemoryStore is a bounded, in-memory Store. Results are kept in arrival
// order; queries walk newest first.
type MemoryStore struct {
	mu      sync.RWMutex
	results []model.PeelResult
	history int
	curves  int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{history: defaultHistory, curves: defaultCurveHistory}
	for _, opt := range opts {
		opt(s)
	}
	s.results = make([]model.PeelResult, 0, s.history)
	return s
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, r model.PeelResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.results) == s.history {
		copy(s.results, s.results[1:])
		s.results = s.results[:len(s.results)-1]
	}
	s.results = append(s.results, r)

	// Drop the trace of the result that just fell out of the curve window.
	if old := len(s.results) - 1 - s.curves; old >= 0 {
		s.results[old].Curve = model.Curve{}
	}
	return nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context, n int) ([]model.PeelResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n = min(n, len(s.results))
	out := make([]model.PeelResult, 0, n)
	for i := len(s.results) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.results[i])
	}
	return out, nil
}

// ByLayer implements Store.
func (s *MemoryStore) ByLayer(_ context.Context, layerID int64) ([]model.PeelResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PeelResult
	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].Metrics.LayerID == layerID {
			out = append(out, s.results[i])
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: layer %d", ErrNotFound, layerID)
	}
	return out, nil
}

// Session implements Store.
func (s *MemoryStore) Session(_ context.Context, sessionID string) (model.PeelResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].Metrics.SessionID == sessionID {
			return s.results[i], nil
		}
	}
	return model.PeelResult{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
