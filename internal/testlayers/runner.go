package testlayers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/peelforce/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0640
)

// Run executes the complete layer test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting peelforce layer test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("layers", config.NumLayers),
		logger.Int("samples", config.Samples),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate layers
	layers, err := generateLayers(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("layer generation failed: %w", err)
	}

	// Step 3: Monitor every layer
	stopped, err := monitorLayers(ctx, config, layers, stats)
	if err != nil {
		return fmt.Errorf("layer monitoring failed: %w", err)
	}

	// Step 4: Retrieve results concurrently
	retrieved, err := retrieveResults(ctx, config, stopped, stats)
	if err != nil {
		return fmt.Errorf("result retrieval failed: %w", err)
	}

	// Step 5: Latest listing
	latest, err := getLatest(ctx, config, len(layers))
	if err != nil {
		return err
	}

	// Step 6: Verify results
	if err := verifyResults(ctx, config, layers, stopped, retrieved, latest, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save layers to file
	if config.OutputFile != "-" {
		if err := saveLayersToFile(ctx, config, layers); err != nil {
			logger.Get().Warn(ctx, "failed to save layers to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running and not mid-session.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if err := decodeResponse(resp, http.StatusOK, nil); err != nil {
		return err
	}

	var status StatusResponse
	if err := client.getJSON(ctx, config.BaseURL+"/monitoring", http.StatusOK, &status); err != nil {
		return fmt.Errorf("monitoring status: %w", err)
	}
	if status.Armed {
		return fmt.Errorf("layer %d is being monitored", status.LayerID)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveLayersToFile saves the generated layers to a JSON file.
func saveLayersToFile(ctx context.Context, config *Config, layers []Layer) error {
	if len(layers) == 0 {
		return fmt.Errorf("no layers to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_layers_" + timestamp + ".json"
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(layers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal layers: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "layers saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, samplesPerSecond float64

	if stats.LayersGenerated > 0 {
		successRate = float64(stats.ResultsVerified) / float64(stats.LayersGenerated) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		samplesPerSecond = float64(stats.SamplesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("layersGenerated", stats.LayersGenerated),
		logger.Int("layersCompleted", stats.LayersCompleted),
		logger.Int("layersEmpty", stats.LayersEmpty),
		logger.Int("layersFailed", stats.LayersFailed),
		logger.Int("samplesSubmitted", stats.SamplesSubmitted),
		logger.Int("resultsRetrieved", stats.ResultsRetrieved),
		logger.Int("resultsVerified", stats.ResultsVerified),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("samplesPerSecond", samplesPerSecond))
}
