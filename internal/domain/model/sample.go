// Package model contains domain models passed between layers.
package model

import "math"

// OptFloat is a float64 that may be absent.
type OptFloat struct {
	V     float64
	Valid bool
}

// Some wraps v as a present value.
func Some(v float64) OptFloat { return OptFloat{V: v, Valid: true} }

// None is the absent value.
func None() OptFloat { return OptFloat{} }

// OrNaN returns the value, or NaN when absent.
func (o OptFloat) OrNaN() float64 {
	if !o.Valid {
		return math.NaN()
	}
	return o.V
}

// RawSample is one reading delivered by the hardware callback, paired with
// the stage position pulled at capture time.
type RawSample struct {
	Timestamp float64  // monotonic seconds
	Raw       float64  // amplifier output, volts or counts
	Position  OptFloat // mm
}

// ForceSample is a calibrated reading paired with the stage position at sample time.
type ForceSample struct {
	Timestamp float64
	Position  OptFloat // mm
	Force     OptFloat // N, absent until calibrated
}

// DisplayUpdate is the rate-limited snapshot handed to the publisher.
type DisplayUpdate struct {
	Timestamp  float64
	Raw        float64
	Force      OptFloat
	Position   OptFloat
	Calibrated bool
}
