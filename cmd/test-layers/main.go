package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/peelforce/internal/testlayers"
)

// Default configuration constants.
const (
	defaultNumLayers   = 20
	defaultSamples     = 2000
	defaultChunkSize   = 250
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numLayers  = flag.Int("layers", defaultNumLayers, "Number of layers to monitor")
		samples    = flag.Int("samples", defaultSamples, "Samples per layer")
		chunk      = flag.Int("chunk", defaultChunkSize, "Samples per request")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent result fetchers")
		seed       = flag.Uint64("seed", 1, "Generator seed")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated layers (default: generated_layers_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testlayers.ShowHelp()
		return
	}

	if err := testlayers.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testlayers.Config{
		BaseURL:    *baseURL,
		NumLayers:  *numLayers,
		Samples:    *samples,
		ChunkSize:  *chunk,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := testlayers.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
