package testlayers

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/peelforce/pkg/logger"
)

const peakMetric = "peak_force_N"

// verifyResults checks every retrieved result against the layer it came from
// and against the copy returned on stop.
func verifyResults(ctx context.Context, config *Config, layers []Layer, stopped, retrieved map[int64]Result, latest []Result, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results", logger.Int("count", len(retrieved)))

	var problems []string
	for _, l := range layers {
		got, ok := retrieved[l.LayerID]
		if !ok {
			continue
		}
		if err := verifyLayer(l, stopped[l.LayerID], got); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		stats.ResultsVerified++
	}

	if err := verifyLatestOrder(latest); err != nil {
		problems = append(problems, err.Error())
	}

	if config.Verbose {
		displayPeaks(ctx, layers, retrieved)
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		for _, p := range problems {
			logger.Get().Error(ctx, "verification problem", logger.String("problem", p))
		}
		return fmt.Errorf("%d results failed verification", len(problems))
	}
	logger.Get().Info(ctx, "all results verified", logger.Int("verified", stats.ResultsVerified))
	return nil
}

func verifyLayer(l Layer, stopped, got Result) error {
	if got.SessionID != stopped.SessionID {
		return fmt.Errorf("layer %d: session %s, stop reported %s", l.LayerID, got.SessionID, stopped.SessionID)
	}
	if got.SampleCount == 0 || got.SampleCount > len(l.Samples) {
		return fmt.Errorf("layer %d: sample count %d of %d", l.LayerID, got.SampleCount, len(l.Samples))
	}
	peak := got.Metrics[peakMetric]
	if peak == nil {
		return fmt.Errorf("layer %d: no peak force", l.LayerID)
	}
	if math.Abs(*peak-l.PeakN) > peakTolerance*l.PeakN {
		return fmt.Errorf("layer %d: peak %.4f N, generated %.4f N", l.LayerID, *peak, l.PeakN)
	}
	return nil
}

// verifyLatestOrder checks that the listing is newest first. Layers are
// monitored in increasing id order.
func verifyLatestOrder(latest []Result) error {
	for i := 1; i < len(latest); i++ {
		if latest[i].LayerID > latest[i-1].LayerID {
			return fmt.Errorf("latest results out of order at %d: layer %d after %d", i, latest[i].LayerID, latest[i-1].LayerID)
		}
	}
	return nil
}

func displayPeaks(ctx context.Context, layers []Layer, retrieved map[int64]Result) {
	for _, l := range layers {
		r, ok := retrieved[l.LayerID]
		if !ok || r.Metrics[peakMetric] == nil {
			continue
		}
		logger.Get().Info(ctx, "layer peak",
			logger.Int64("layer_id", l.LayerID),
			logger.Float64("generated_n", l.PeakN),
			logger.Float64("reported_n", *r.Metrics[peakMetric]))
	}
}
