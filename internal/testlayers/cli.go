package testlayers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/peelforce/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file), "text"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the layer test tool.
func ShowHelp() {
	os.Stdout.WriteString(`peelforce Layer Test Tool
=========================

Drives a running peelforce service with synthetic peel layers over HTTP and
checks the adhesion metrics it reports.

Usage:
  go run ./cmd/test-layers [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -layers int
        Number of layers to monitor (default 20)
  -samples int
        Samples per layer (default 2000)
  -chunk int
        Samples per request (default 250)
  -workers int
        Number of concurrent result fetchers (default CPU cores * 2)
  -seed uint
        Generator seed (default 1)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated layers (default: generated_layers_TIMESTAMP.json)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/test-layers -layers 50 -samples 5000
  go run ./cmd/test-layers -url http://bench:9080 -verbose
`)
}
