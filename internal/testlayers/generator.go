package testlayers

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/okian/peelforce/pkg/logger"
)

// Peel shape, as fractions of the sweep.
const (
	sweepMM      = 1.0
	startMM      = 10.0
	durationS    = 2.0
	peakAt       = 0.4
	peakWidth    = 0.08
	baselineN    = 0.01
	minPeakN     = 0.05
	peakRangeN   = 0.45
	noiseN       = 0.0005
	bandFromFrac = 0.3
	bandToFrac   = 0.5
)

// generateLayers creates NumLayers reproducible peel traces.
func generateLayers(ctx context.Context, config *Config, stats *Stats) ([]Layer, error) {
	if config.NumLayers <= 0 || config.Samples < 2 {
		return nil, fmt.Errorf("need at least one layer of two samples, got %d x %d", config.NumLayers, config.Samples)
	}
	logger.Get().Info(ctx, "generating layers", logger.Int("layers", config.NumLayers), logger.Int("samples", config.Samples))

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	layers := make([]Layer, config.NumLayers)
	for i := range layers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during layer generation: %w", err)
		}
		layers[i] = generateSingleLayer(rng, int64(i+1), config.Samples)
	}

	stats.LayersGenerated = len(layers)
	logger.Get().Info(ctx, "generated layers successfully", logger.Int("count", len(layers)))
	return layers, nil
}

// generateSingleLayer shapes a gaussian peel of a random height over a flat
// baseline with small gaussian noise.
func generateSingleLayer(rng *rand.Rand, layerID int64, n int) Layer {
	peak := minPeakN + rng.Float64()*peakRangeN
	l := Layer{
		LayerID:   layerID,
		BandStart: startMM + bandFromFrac*sweepMM,
		BandEnd:   startMM + bandToFrac*sweepMM,
		PeakN:     peak,
		Samples:   make([]Sample, n),
	}
	for i := range l.Samples {
		x := float64(i) / float64(n-1)
		f := baselineN + (peak-baselineN)*math.Exp(-math.Pow((x-peakAt)/peakWidth, 2))
		l.Samples[i] = Sample{
			T:          x * durationS,
			PositionMM: startMM + x*sweepMM,
			ForceN:     f + rng.NormFloat64()*noiseN,
		}
	}
	return l
}
