package model

import "time"

// AdhesionMetrics is the analysis result of one peel event.
// A zero SampleCount marks the empty result produced for insufficient data.
type AdhesionMetrics struct {
	LayerID     int64
	SessionID   string
	CompletedAt time.Time

	PeakForceN     float64
	PeakPositionMM float64
	PeakTimeS      float64
	BaselineForceN float64

	PreInitiationPositionMM float64
	PreInitiationTimeS      float64
	PreInitiationDurationS  float64
	PreInitiationDistanceMM float64

	PropagationEndPositionMM float64
	PropagationEndTimeS      float64
	PropagationDurationS     float64
	PropagationDistanceMM    float64

	TotalPeelDurationS  float64
	TotalPeelDistanceMM float64

	WorkOfAdhesionMJ          float64
	WorkOfAdhesionCorrectedMJ float64
	EnergyDissipationMJ       float64
	TotalEnergyMJ             float64
	EnergyDensityMJPerMM      float64

	MaxLoadingRateNPerS   float64
	MaxUnloadingRateNPerS float64

	NoiseStdN          float64
	SignalToNoiseRatio float64

	PreInitiationIndex  int
	PeakIndex           int
	PropagationEndIndex int
	SampleCount         int
}

// IsEmpty reports whether m is the insufficient-data result.
func (m AdhesionMetrics) IsEmpty() bool { return m.SampleCount == 0 }

// Field is one named numeric column of AdhesionMetrics.
type Field struct {
	Name  string
	Value float64
}

// MetricColumns lists the persisted column names in output order.
var MetricColumns = []string{ //nolint:gochecknoglobals // fixed column order shared by sinks
	"layer_id",
	"peak_force_N",
	"peak_position_mm",
	"peak_time_s",
	"baseline_force_N",
	"pre_initiation_position_mm",
	"pre_initiation_time_s",
	"pre_initiation_duration_s",
	"pre_initiation_distance_mm",
	"propagation_end_position_mm",
	"propagation_end_time_s",
	"propagation_duration_s",
	"propagation_distance_mm",
	"total_peel_duration_s",
	"total_peel_distance_mm",
	"work_of_adhesion_mJ",
	"work_of_adhesion_corrected_mJ",
	"energy_dissipation_mJ",
	"total_energy_mJ",
	"energy_density_mJ_per_mm",
	"max_loading_rate_N_per_s",
	"max_unloading_rate_N_per_s",
	"noise_std_N",
	"signal_to_noise_ratio",
}

// Fields returns the numeric fields after layer_id, in MetricColumns order.
func (m AdhesionMetrics) Fields() []Field {
	values := []float64{
		m.PeakForceN,
		m.PeakPositionMM,
		m.PeakTimeS,
		m.BaselineForceN,
		m.PreInitiationPositionMM,
		m.PreInitiationTimeS,
		m.PreInitiationDurationS,
		m.PreInitiationDistanceMM,
		m.PropagationEndPositionMM,
		m.PropagationEndTimeS,
		m.PropagationDurationS,
		m.PropagationDistanceMM,
		m.TotalPeelDurationS,
		m.TotalPeelDistanceMM,
		m.WorkOfAdhesionMJ,
		m.WorkOfAdhesionCorrectedMJ,
		m.EnergyDissipationMJ,
		m.TotalEnergyMJ,
		m.EnergyDensityMJPerMM,
		m.MaxLoadingRateNPerS,
		m.MaxUnloadingRateNPerS,
		m.NoiseStdN,
		m.SignalToNoiseRatio,
	}
	out := make([]Field, len(values))
	for i, v := range values {
		out[i] = Field{Name: MetricColumns[i+1], Value: v}
	}
	return out
}
