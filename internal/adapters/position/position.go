// Package position supplies the motion-stage position paired with each sample.
package position

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/okian/peelforce/internal/timeutil"
)

// Source returns the current stage position in mm, or false when unknown.
type Source interface {
	Position() (float64, bool)
}

// Manual holds a position pushed by the motion controller.
type Manual struct {
	bits  atomic.Uint64
	valid atomic.Bool
}

// NewManual returns a Manual with no position.
func NewManual() *Manual { return &Manual{} }

// Set stores the current position.
func (m *Manual) Set(mm float64) {
	if math.IsNaN(mm) || math.IsInf(mm, 0) {
		m.Clear()
		return
	}
	m.bits.Store(math.Float64bits(mm))
	m.valid.Store(true)
}

// Clear forgets the position.
func (m *Manual) Clear() { m.valid.Store(false) }

// Position returns the last stored position.
func (m *Manual) Position() (float64, bool) {
	if !m.valid.Load() {
		return 0, false
	}
	return math.Float64frombits(m.bits.Load()), true
}

// Stage simulates a stage sweeping back and forth between two positions at
// constant speed. It starts at From moving towards To.
type Stage struct {
	clock timeutil.Clock
	start time.Time
	from  float64
	to    float64
	speed float64 // mm/s
}

// NewStage returns a simulated stage. A non-positive speed keeps it at from.
func NewStage(clock timeutil.Clock, from, to, speed float64) *Stage {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Stage{clock: clock, start: clock.Now(), from: from, to: to, speed: speed}
}

// Position returns the simulated position.
func (s *Stage) Position() (float64, bool) {
	return s.At(s.clock.Since(s.start).Seconds()), true
}

// At returns the position t seconds after the sweep started.
func (s *Stage) At(t float64) float64 {
	span := math.Abs(s.to - s.from)
	if s.speed <= 0 || span == 0 {
		return s.from
	}
	dir := 1.0
	if s.to < s.from {
		dir = -1
	}
	travel := math.Mod(s.speed*t, 2*span)
	if travel > span {
		travel = 2*span - travel
	}
	return s.from + dir*travel
}

// Span returns the sweep end points.
func (s *Stage) Span() (from, to float64) { return s.from, s.to }

// Fallback reports the first known position of its sources.
type Fallback []Source

// Position implements Source.
func (f Fallback) Position() (float64, bool) {
	for _, s := range f {
		if s == nil {
			continue
		}
		if x, ok := s.Position(); ok {
			return x, true
		}
	}
	return 0, false
}
