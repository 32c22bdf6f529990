package model

// Curve is the buffered force/position trace of one peel event.
type Curve struct {
	Times     []float64
	Positions []float64 // mm, NaN where the stage position was unavailable
	Forces    []float64 // N, NaN where the cell was uncalibrated

	// In-band samples, kept for visualization only.
	BandStart     OptFloat
	BandEnd       OptFloat
	BandPositions []float64
	BandForces    []float64
}

// Len returns the number of buffered samples.
func (c Curve) Len() int { return len(c.Times) }

// PeelResult pairs the metrics of a completed session with the trace they came from.
type PeelResult struct {
	Metrics AdhesionMetrics
	Curve   Curve
}
