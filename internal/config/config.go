// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and PEEL_ environment variables over them.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/peelforce/internal/domain/analysis"
)

// Source kinds.
const (
	SourceSimulated = "simulated"
	SourceSerial    = "serial"
	SourceNone      = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the capture queue fed by the hardware callback.
	QueueSize int `koanf:"queue_size"`

	// BatchSize and BatchMaxWaitMS shape the batch processor.
	BatchSize      int `koanf:"batch_size"`
	BatchMaxWaitMS int `koanf:"batch_max_wait_ms"`

	// RingSize is the capacity of the raw diagnostics ring.
	RingSize int `koanf:"ring_size"`

	// LoggingQueueSize and DisplayQueueSize bound the consumer queues.
	LoggingQueueSize int `koanf:"logging_queue_size"`
	DisplayQueueSize int `koanf:"display_queue_size"`

	// DisplayTriggerN is the force change that makes a display update due.
	DisplayTriggerN float64 `koanf:"display_trigger_n"`

	// DisplayIntervalMS is the minimum time between display updates.
	DisplayIntervalMS int `koanf:"display_interval_ms"`

	// MonitorIntervalMS is the throughput sampling period.
	MonitorIntervalMS int `koanf:"monitor_interval_ms"`

	// ShutdownTimeoutMS bounds the worker join on stop.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// Source selects the sample source: simulated, serial or none.
	Source string `koanf:"source"`

	// Serial port settings, used when Source is serial.
	SerialPort     string `koanf:"serial_port"`
	SerialBaudRate int    `koanf:"serial_baud_rate"`
	SerialDataBits int    `koanf:"serial_data_bits"`
	SerialStopBits int    `koanf:"serial_stop_bits"`
	SerialParity   string `koanf:"serial_parity"`

	// SampleIntervalMS is the driver sample interval requested at start.
	SampleIntervalMS int `koanf:"sample_interval_ms"`

	// CalibrationFile is loaded at start when present and saved after
	// every calibration change.
	CalibrationFile string `koanf:"calibration_file"`

	// Sink targets; empty disables the sink.
	MetricsCSVPath string `koanf:"metrics_csv_path"`
	MetricsDBPath  string `koanf:"metrics_db_path"`
	PlotDir        string `koanf:"plot_dir"`

	// ResultHistory is the number of results kept for the query API.
	ResultHistory int `koanf:"result_history"`

	// Analysis holds the curve analysis tunables.
	Analysis analysis.Params `koanf:"analysis"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         2000,
		BatchSize:         10,
		BatchMaxWaitMS:    10,
		RingSize:          1000,
		LoggingQueueSize:  20_000,
		DisplayQueueSize:  64,
		DisplayTriggerN:   0.001,
		DisplayIntervalMS: 50,
		MonitorIntervalMS: 1000,
		ShutdownTimeoutMS: 2000,
		Source:            SourceSimulated,
		SerialBaudRate:    115200,
		SerialDataBits:    8,
		SerialStopBits:    1,
		SerialParity:      "N",
		SampleIntervalMS:  1,
		MetricsCSVPath:    "adhesion_metrics.csv",
		ResultHistory:     256,
		Analysis:          analysis.DefaultParams(),
	}
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"queue_size", c.QueueSize},
		{"batch_size", c.BatchSize},
		{"batch_max_wait_ms", c.BatchMaxWaitMS},
		{"ring_size", c.RingSize},
		{"logging_queue_size", c.LoggingQueueSize},
		{"display_queue_size", c.DisplayQueueSize},
		{"display_interval_ms", c.DisplayIntervalMS},
		{"monitor_interval_ms", c.MonitorIntervalMS},
		{"shutdown_timeout_ms", c.ShutdownTimeoutMS},
		{"sample_interval_ms", c.SampleIntervalMS},
		{"result_history", c.ResultHistory},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}

	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.DisplayTriggerN < 0 {
		return fmt.Errorf("%w: display_trigger_n must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.Source {
	case SourceSimulated, SourceNone:
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("%w: serial_port is required for the serial source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// BatchMaxWait returns BatchMaxWaitMS as a duration.
func (c *Config) BatchMaxWait() time.Duration { return ms(c.BatchMaxWaitMS) }

// DisplayInterval returns DisplayIntervalMS as a duration.
func (c *Config) DisplayInterval() time.Duration { return ms(c.DisplayIntervalMS) }

// MonitorInterval returns MonitorIntervalMS as a duration.
func (c *Config) MonitorInterval() time.Duration { return ms(c.MonitorIntervalMS) }

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration { return ms(c.ShutdownTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
