package calibration

import "errors"

var (
	// ErrNotCalibrated is returned by operations that need an installed calibration.
	ErrNotCalibrated = errors.New("calibration: not calibrated")
	// ErrNoZero is returned when a load reading is captured before a zero reading.
	ErrNoZero = errors.New("calibration: zero reading not captured")
	// ErrDegenerateCalibration is returned when the readings cannot define a gain.
	ErrDegenerateCalibration = errors.New("calibration: degenerate readings")
	// ErrInvalidRecord is returned for malformed or incomplete saved records.
	ErrInvalidRecord = errors.New("calibration: invalid record")
	// ErrNoSamples is returned when averaging an empty reading window.
	ErrNoSamples = errors.New("calibration: no samples")
)
