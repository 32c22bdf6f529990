// Package analysis locates the phases of a peel force curve and derives the
// adhesion metrics of one event.
//
// Analysis is a pure function of the buffered arrays. Insufficient input
// yields the empty result, and a numerical failure in one derived field
// zeroes that field only.
package analysis

import (
	"math"
	"slices"

	"github.com/okian/peelforce/internal/domain/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Engine runs the curve analysis with a fixed parameter set.
type Engine struct {
	p Params
}

// New returns an engine using p. Invalid parameters fall back to the defaults.
func New(p Params) *Engine {
	if p.Validate() != nil {
		p = DefaultParams()
	}
	return &Engine{p: p}
}

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.p }

// Phases are the located indices into the cleaned series.
type Phases struct {
	PreInit int
	Peak    int
	Lifting int
	End     int
}

// Analyze computes the adhesion metrics of one session. times are seconds,
// positions mm and forces N. Arrays of unequal length are truncated to the
// shortest one.
func (e *Engine) Analyze(layerID int64, times, positions, forces []float64) model.AdhesionMetrics {
	m := model.AdhesionMetrics{LayerID: layerID}

	t, x, f := clean(times, positions, forces)
	if len(t) < e.p.MinPoints {
		return m
	}

	s := e.p.Smooth(f)
	ph := e.locate(s, x)
	base := s[ph.End]
	pre, pk, end := ph.PreInit, ph.Peak, ph.End

	m.SampleCount = len(t)
	m.PreInitiationIndex, m.PeakIndex, m.PropagationEndIndex = pre, pk, end

	m.PeakForceN = s[pk]
	m.PeakPositionMM = x[pk]
	m.PeakTimeS = t[pk]
	m.BaselineForceN = base

	m.PreInitiationPositionMM = x[pre]
	m.PreInitiationTimeS = t[pre]
	m.PreInitiationDurationS = t[pk] - t[pre]
	m.PreInitiationDistanceMM = math.Abs(x[pk] - x[pre])

	m.PropagationEndPositionMM = x[end]
	m.PropagationEndTimeS = t[end]
	m.PropagationDurationS = t[end] - t[pk]
	m.PropagationDistanceMM = math.Abs(x[end] - x[pk])

	m.TotalPeelDurationS = t[end] - t[pre]
	m.TotalPeelDistanceMM = math.Abs(x[end] - x[pre])

	e.work(&m, x[pre:end+1], f[pre:end+1], base)

	m.MaxLoadingRateNPerS = safe(func() float64 { return maxRate(t[pre:pk+1], s[pre:pk+1], false) })
	m.MaxUnloadingRateNPerS = safe(func() float64 { return maxRate(t[pk:end+1], s[pk:end+1], true) })

	m.NoiseStdN = safe(func() float64 {
		resid := make([]float64, len(f))
		floats.SubTo(resid, f, s)
		_, std := stat.PopMeanStdDev(resid, nil)
		return std
	})
	if m.NoiseStdN > 0 {
		m.SignalToNoiseRatio = (m.PeakForceN - base) / m.NoiseStdN
	} else {
		m.SignalToNoiseRatio = math.Inf(1)
	}
	return m
}

// Locate returns the phase indices of an already cleaned and smoothed series.
func (e *Engine) Locate(smoothed, positions []float64) Phases {
	if len(smoothed) == 0 || len(smoothed) != len(positions) {
		return Phases{}
	}
	return e.locate(smoothed, positions)
}

func (e *Engine) locate(s, x []float64) Phases {
	pk := argmax(s)
	lift := liftingIndex(x, pk)
	end := e.propagationEnd(s, pk, lift)
	pre := e.preInitiation(s, pk, s[end])
	return Phases{PreInit: pre, Peak: pk, Lifting: lift, End: end}
}

// liftingIndex is the index after the peak whose position is furthest from
// the peak position. A series that never moves after the peak lifts at its
// last sample.
func liftingIndex(x []float64, pk int) int {
	ref := x[pk]
	lift, best := pk, 0.0
	for i := pk; i < len(x); i++ {
		if d := math.Abs(x[i] - ref); d > best {
			best, lift = d, i
		}
	}
	if lift == pk {
		lift = len(x) - 1
	}
	return lift
}

// propagationEnd scans the second derivative of [pk, lift] forward from its
// maximum for the first point where curvature has vanished or changed sign.
func (e *Engine) propagationEnd(s []float64, pk, lift int) int {
	sub := s[pk : lift+1]
	if len(sub) < 3 {
		return lift
	}
	d2 := gradient(gradient(sub))
	mc := argmax(d2)
	last := len(d2) - 1
	tol := e.p.CurvatureFraction * d2[mc]
	for j := mc + 1; j < last; j++ {
		if d2[j] <= 0 || math.Abs(d2[j]) < tol {
			return pk + j
		}
	}
	fallback := mc + int(math.Ceil(e.p.FallbackFraction*float64(last-mc)))
	return pk + min(fallback, last)
}

// preInitiation walks back from the peak for the last sample at or below
// the baseline plus threshold; the sample after it starts pre-initiation.
func (e *Engine) preInitiation(s []float64, pk int, base float64) int {
	bound := max(0, pk-e.p.PreInitMaxLookback)
	level := base + e.p.PreInitThresholdN
	for i := pk - 1; i >= bound; i-- {
		if s[i] <= level {
			return i + 1
		}
	}
	return bound
}

// work integrates raw and baseline-corrected force over position. Positions
// are converted to metres and results reported in millijoules.
func (e *Engine) work(m *model.AdhesionMetrics, xmm, f []float64, base float64) {
	n := len(xmm)
	xs := make([]float64, n)
	raw := slices.Clone(f)
	floats.ScaleTo(xs, 1e-3, xmm)

	if !slices.IsSorted(xs) {
		order := make([]int, n)
		floats.Argsort(xs, order)
		for i, j := range order {
			raw[i] = f[j]
		}
	}

	corr := make([]float64, n)
	pos := make([]float64, n)
	neg := make([]float64, n)
	for i, v := range raw {
		c := v - base
		corr[i] = c
		pos[i] = math.Max(c, 0)
		neg[i] = math.Abs(math.Min(c, 0))
	}

	const toMJ = 1e3
	m.WorkOfAdhesionMJ = toMJ * trapezoid(xs, raw)
	m.WorkOfAdhesionCorrectedMJ = toMJ * trapezoid(xs, corr)
	adhesion := toMJ * trapezoid(xs, pos)
	m.EnergyDissipationMJ = toMJ * trapezoid(xs, neg)
	m.TotalEnergyMJ = adhesion + m.EnergyDissipationMJ
	if m.TotalPeelDistanceMM > 0 {
		m.EnergyDensityMJPerMM = m.WorkOfAdhesionCorrectedMJ / m.TotalPeelDistanceMM
	}
}

// maxRate returns the largest df/dt, or the largest |df/dt| when abs is set,
// skipping steps with no elapsed time.
func maxRate(t, f []float64, abs bool) float64 {
	best, seen := math.Inf(-1), false
	for i := 1; i < len(t); i++ {
		dt := t[i] - t[i-1]
		if dt == 0 {
			continue
		}
		r := (f[i] - f[i-1]) / dt
		if abs {
			r = math.Abs(r)
		}
		if r > best {
			best, seen = r, true
		}
	}
	if !seen {
		return 0
	}
	return best
}

func trapezoid(x, y []float64) float64 {
	return safe(func() float64 {
		if len(x) < 2 {
			return 0
		}
		return integrate.Trapezoidal(x, y)
	})
}

// safe evaluates one derived field, substituting zero for a panic or a NaN.
func safe(fn func() float64) (v float64) {
	defer func() {
		if recover() != nil {
			v = 0
		}
	}()
	v = fn()
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// argmax returns the first index of the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// clean keeps the indices where time, position and force are all finite.
func clean(times, positions, forces []float64) (t, x, f []float64) {
	n := min(len(times), len(positions), len(forces))
	t = make([]float64, 0, n)
	x = make([]float64, 0, n)
	f = make([]float64, 0, n)
	for i := range n {
		if finite(times[i]) && finite(positions[i]) && finite(forces[i]) {
			t = append(t, times[i])
			x = append(x, positions[i])
			f = append(f, forces[i])
		}
	}
	return t, x, f
}
