// Package calibration converts raw load-cell readings into force.
//
// The gain/offset pair is swapped as one immutable value, so readers on the
// acquisition path never observe a half-installed calibration.
package calibration

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/okian/peelforce/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Unit owns the calibration state of one load cell.
type Unit struct {
	state atomic.Pointer[model.CalibrationState]

	// mu serializes the two-point workflow; readers never take it.
	mu   sync.Mutex
	zero model.OptFloat
}

// New returns an uncalibrated unit.
func New() *Unit {
	u := &Unit{}
	u.state.Store(&model.CalibrationState{})
	return u
}

// State returns a snapshot of the current calibration.
func (u *Unit) State() model.CalibrationState {
	return *u.state.Load()
}

// Calibrated reports whether a complete gain/offset pair is installed.
func (u *Unit) Calibrated() bool {
	return u.state.Load().Calibrated()
}

// Convert returns the force for raw, or None when uncalibrated.
func (u *Unit) Convert(raw float64) model.OptFloat {
	return u.state.Load().Force(raw)
}

// Install replaces the calibration with the given pair.
func (u *Unit) Install(gain, offset float64) error {
	if !finite(gain) || !finite(offset) || gain == 0 {
		return fmt.Errorf("%w: gain=%v offset=%v", ErrDegenerateCalibration, gain, offset)
	}
	u.state.Store(&model.CalibrationState{Gain: model.Some(gain), Offset: model.Some(offset)})
	return nil
}

// Reset discards the calibration and any pending zero reading.
func (u *Unit) Reset() {
	u.mu.Lock()
	u.zero = model.None()
	u.mu.Unlock()
	u.state.Store(&model.CalibrationState{})
}

// CaptureZero records the unloaded reading for a two-point calibration.
func (u *Unit) CaptureZero(zeroRaw float64) error {
	if !finite(zeroRaw) {
		return fmt.Errorf("%w: zero=%v", ErrDegenerateCalibration, zeroRaw)
	}
	u.mu.Lock()
	u.zero = model.Some(zeroRaw)
	u.mu.Unlock()
	return nil
}

// PendingZero returns the captured zero reading, if any.
func (u *Unit) PendingZero() model.OptFloat {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.zero
}

// CaptureLoad completes the two-point calibration with a reading taken under
// knownForceN newtons and installs the resulting gain and offset.
func (u *Unit) CaptureLoad(loadRaw, knownForceN float64) (model.CalibrationState, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.zero.Valid {
		return model.CalibrationState{}, ErrNoZero
	}
	delta := loadRaw - u.zero.V
	if !finite(loadRaw) || !finite(knownForceN) || knownForceN == 0 || delta == 0 {
		return model.CalibrationState{}, fmt.Errorf("%w: zero=%v load=%v force=%v",
			ErrDegenerateCalibration, u.zero.V, loadRaw, knownForceN)
	}
	if err := u.Install(knownForceN/delta, u.zero.V); err != nil {
		return model.CalibrationState{}, err
	}
	u.zero = model.None()
	return u.State(), nil
}

// Tare moves the offset to zeroRaw while keeping the installed gain.
func (u *Unit) Tare(zeroRaw float64) error {
	cur := u.State()
	if !cur.Calibrated() {
		return ErrNotCalibrated
	}
	return u.Install(cur.Gain.V, zeroRaw)
}

// MeanRaw averages the raw values of a reading window.
func MeanRaw(samples []model.RawSample) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	xs := make([]float64, 0, len(samples))
	for _, s := range samples {
		if finite(s.Raw) {
			xs = append(xs, s.Raw)
		}
	}
	if len(xs) == 0 {
		return 0, ErrNoSamples
	}
	return stat.Mean(xs, nil), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
