// Package session buffers the force samples of one layer between an explicit
// start and stop signal and hands them to the curve analysis on stop.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/peelforce/internal/domain/analysis"
	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/pkg/metrics"
)

// minSamples is the smallest buffer handed to the analyzer.
const minSamples = 2

// Analyzer computes the metrics of one buffered event.
type Analyzer interface {
	Analyze(layerID int64, times, positions, forces []float64) model.AdhesionMetrics
}

// Status is a point-in-time view of the session.
type Status struct {
	SessionID string
	LayerID   int64
	Armed     bool
	Samples   int
	InBand    int
	BandStart model.OptFloat
	BandEnd   model.OptFloat
}

// Session is the layer monitoring window. All mutation happens under one
// mutex; AddSample only appends.
type Session struct {
	analyzer Analyzer
	newID    func() string
	now      func() time.Time
	capacity int

	mu        sync.Mutex
	armed     bool
	id        string
	layerID   int64
	bandStart model.OptFloat
	bandEnd   model.OptFloat
	times     []float64
	positions []float64
	forces    []float64
	bandPos   []float64
	bandForce []float64
}

// New creates a disarmed session.
func New(opts ...Option) *Session {
	s := &Session{
		analyzer: analysis.New(analysis.DefaultParams()),
		newID:    uuid.NewString,
		now:      time.Now,
		capacity: 4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start clears any buffered data and arms the session for layerID. The band
// is used only to collect in-band samples for display and may be given in
// either order. It returns the new session identifier.
func (s *Session) Start(layerID int64, bandStart, bandEnd model.OptFloat) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.id = s.newID()
	s.layerID = layerID
	s.bandStart, s.bandEnd = bandStart, bandEnd
	s.armed = true
	metrics.RecordSessionStarted()
	return s.id
}

// AddSample appends one sample while armed; it is a no-op otherwise.
// Missing position or force values are buffered as NaN and dropped by the
// analysis.
func (s *Session) AddSample(timestamp float64, position, force model.OptFloat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return
	}
	pos, f := position.OrNaN(), force.OrNaN()
	s.times = append(s.times, timestamp)
	s.positions = append(s.positions, pos)
	s.forces = append(s.forces, f)

	if position.Valid && s.inBandLocked(pos) {
		s.bandPos = append(s.bandPos, pos)
		s.bandForce = append(s.bandForce, f)
	}
}

// Stop disarms the session and analyzes the buffered samples. It returns
// false when fewer than two samples were buffered. Buffers are cleared in
// every case.
func (s *Session) Stop() (model.PeelResult, bool) {
	s.mu.Lock()
	wasArmed := s.armed
	s.armed = false
	curve := model.Curve{
		Times:         s.times,
		Positions:     s.positions,
		Forces:        s.forces,
		BandStart:     s.bandStart,
		BandEnd:       s.bandEnd,
		BandPositions: s.bandPos,
		BandForces:    s.bandForce,
	}
	id, layer := s.id, s.layerID
	s.times, s.positions, s.forces, s.bandPos, s.bandForce = nil, nil, nil, nil, nil
	s.mu.Unlock()

	if !wasArmed || curve.Len() < minSamples {
		if wasArmed {
			metrics.RecordSessionEmpty()
		}
		return model.PeelResult{}, false
	}

	started := time.Now()
	m := s.analyzer.Analyze(layer, curve.Times, curve.Positions, curve.Forces)
	metrics.RecordAnalysisLatency(float64(time.Since(started).Microseconds()) / 1000)
	m.SessionID = id
	m.CompletedAt = s.now()
	metrics.RecordSessionCompleted(curve.Len())

	return model.PeelResult{Metrics: m, Curve: curve}, true
}

// Armed reports whether samples are being buffered.
func (s *Session) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID: s.id,
		LayerID:   s.layerID,
		Armed:     s.armed,
		Samples:   len(s.times),
		InBand:    len(s.bandPos),
		BandStart: s.bandStart,
		BandEnd:   s.bandEnd,
	}
}

func (s *Session) resetLocked() {
	s.times = make([]float64, 0, s.capacity)
	s.positions = make([]float64, 0, s.capacity)
	s.forces = make([]float64, 0, s.capacity)
	s.bandPos = nil
	s.bandForce = nil
}

func (s *Session) inBandLocked(pos float64) bool {
	if !s.bandStart.Valid || !s.bandEnd.Valid {
		return false
	}
	lo, hi := math.Min(s.bandStart.V, s.bandEnd.V), math.Max(s.bandStart.V, s.bandEnd.V)
	return pos >= lo && pos <= hi
}
