package analysis

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("analysis: invalid parameters")

// Params are the fixed tunables of the curve analysis.
type Params struct {
	MedianKernel       int     `koanf:"median_kernel"`        // odd
	SavgolWindow       int     `koanf:"savgol_window"`        // odd, > SavgolOrder
	SavgolOrder        int     `koanf:"savgol_order"`         // polynomial order
	MinPoints          int     `koanf:"min_points"`           // valid samples required for a result
	PreInitThresholdN  float64 `koanf:"preinit_threshold_n"`  // N above baseline
	PreInitMaxLookback int     `koanf:"preinit_max_lookback"` // samples scanned back from the peak
	CurvatureFraction  float64 `koanf:"curvature_fraction"`   // of the max second derivative
	FallbackFraction   float64 `koanf:"fallback_fraction"`    // of the distance to the lifting point
}

// DefaultParams returns the calibrated defaults.
func DefaultParams() Params {
	return Params{
		MedianKernel:       5,
		SavgolWindow:       9,
		SavgolOrder:        2,
		MinPoints:          10,
		PreInitThresholdN:  0.002,
		PreInitMaxLookback: 300,
		CurvatureFraction:  0.05,
		FallbackFraction:   0.67,
	}
}

// Validate checks the parameter invariants.
func (p Params) Validate() error {
	switch {
	case p.MedianKernel < 1 || p.MedianKernel%2 == 0:
		return fmt.Errorf("%w: median kernel must be odd and positive, got %d", ErrInvalidParams, p.MedianKernel)
	case p.SavgolWindow < 1 || p.SavgolWindow%2 == 0:
		return fmt.Errorf("%w: savgol window must be odd and positive, got %d", ErrInvalidParams, p.SavgolWindow)
	case p.SavgolOrder < 0 || p.SavgolOrder >= p.SavgolWindow:
		return fmt.Errorf("%w: savgol order %d must be below window %d", ErrInvalidParams, p.SavgolOrder, p.SavgolWindow)
	case p.MinPoints < 2:
		return fmt.Errorf("%w: min points must be at least 2, got %d", ErrInvalidParams, p.MinPoints)
	case p.PreInitThresholdN < 0:
		return fmt.Errorf("%w: negative pre-initiation threshold", ErrInvalidParams)
	case p.PreInitMaxLookback < 1:
		return fmt.Errorf("%w: pre-initiation lookback must be positive", ErrInvalidParams)
	case p.CurvatureFraction <= 0 || p.CurvatureFraction >= 1:
		return fmt.Errorf("%w: curvature fraction must be in (0,1)", ErrInvalidParams)
	case p.FallbackFraction <= 0 || p.FallbackFraction > 1:
		return fmt.Errorf("%w: fallback fraction must be in (0,1]", ErrInvalidParams)
	}
	return nil
}
