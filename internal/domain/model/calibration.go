package model

// CalibrationState holds the two-point linear calibration of the load cell.
// Calibrated reports true only when both gain and offset are present.
type CalibrationState struct {
	Gain   OptFloat // N per raw unit
	Offset OptFloat // raw reading at zero load
}

// Calibrated reports whether raw readings can be converted to force.
func (c CalibrationState) Calibrated() bool {
	return c.Gain.Valid && c.Offset.Valid
}

// Force converts a raw reading to newtons, or returns None when uncalibrated.
func (c CalibrationState) Force(raw float64) OptFloat {
	if !c.Calibrated() {
		return None()
	}
	return Some(c.Gain.V * (raw - c.Offset.V))
}
