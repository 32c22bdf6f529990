// Package testlayers drives a running acquisition service over HTTP with
// synthetic peel layers and verifies the analysis it reports.
package testlayers

import "time"

// Config holds configuration for the layer test
type Config struct {
	BaseURL    string        // Base URL of the service
	NumLayers  int           // Number of layers to monitor
	Samples    int           // Samples per layer
	ChunkSize  int           // Samples per /monitoring/samples request
	Workers    int           // Concurrent result fetchers
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Generator seed
	OutputFile string        // Output file for generated layers
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Sample is one externally acquired sample as the API accepts it.
type Sample struct {
	T          float64 `json:"t"`
	PositionMM float64 `json:"position_mm"`
	ForceN     float64 `json:"force_n"`
}

// Layer is one generated peel with the peak it was shaped around.
type Layer struct {
	LayerID   int64    `json:"layer_id"`
	BandStart float64  `json:"band_start_mm"`
	BandEnd   float64  `json:"band_end_mm"`
	PeakN     float64  `json:"peak_force_n"`
	Samples   []Sample `json:"samples"`
}

// Result is the metrics document returned by the service.
type Result struct {
	LayerID     int64               `json:"layer_id"`
	SessionID   string              `json:"session_id"`
	SampleCount int                 `json:"sample_count"`
	Metrics     map[string]*float64 `json:"metrics"`
}

// StopResponse represents the response from /monitoring/stop
type StopResponse struct {
	Status string  `json:"status"`
	Result *Result `json:"result"`
}

// StatusResponse represents the monitoring status document
type StatusResponse struct {
	SessionID string `json:"session_id"`
	LayerID   int64  `json:"layer_id"`
	Armed     bool   `json:"armed"`
	Samples   int    `json:"samples"`
}

// Stats holds test statistics
type Stats struct {
	LayersGenerated  int
	LayersCompleted  int
	LayersEmpty      int
	LayersFailed     int
	SamplesSubmitted int
	ResultsRetrieved int
	ResultsVerified  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
