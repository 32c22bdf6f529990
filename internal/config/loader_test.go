package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/peelforce/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PEEL_ADDR", ":8080")
			_ = os.Setenv("PEEL_QUEUE_SIZE", "4000")
			_ = os.Setenv("PEEL_DISPLAY_TRIGGER_N", "0.005")
			_ = os.Setenv("PEEL_SOURCE", "none")
			_ = os.Setenv("PEEL_ANALYSIS__MEDIAN_KERNEL", "7")
			_ = os.Setenv("PEEL_ANALYSIS__PREINIT_THRESHOLD_N", "0.004")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 4000)
				convey.So(cfg.DisplayTriggerN, convey.ShouldEqual, 0.005)
				convey.So(cfg.Source, convey.ShouldEqual, config.SourceNone)
				convey.So(cfg.Analysis.MedianKernel, convey.ShouldEqual, 7)
				convey.So(cfg.Analysis.PreInitThresholdN, convey.ShouldEqual, 0.004)
				convey.So(cfg.Analysis.SavgolWindow, convey.ShouldEqual, 9)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfig(t, `
addr: ":9090"
batch_size: 20
source: serial
serial_port: /dev/ttyACM0
serial_parity: E
metrics_db_path: /tmp/peel.db
analysis:
  savgol_window: 11
  savgol_order: 3
`)
			_ = os.Setenv("PEEL_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 20)
				convey.So(cfg.Source, convey.ShouldEqual, config.SourceSerial)
				convey.So(cfg.SerialPort, convey.ShouldEqual, "/dev/ttyACM0")
				convey.So(cfg.SerialParity, convey.ShouldEqual, "E")
				convey.So(cfg.MetricsDBPath, convey.ShouldEqual, "/tmp/peel.db")
				convey.So(cfg.Analysis.SavgolWindow, convey.ShouldEqual, 11)
				convey.So(cfg.Analysis.SavgolOrder, convey.ShouldEqual, 3)
				convey.So(cfg.Analysis.MedianKernel, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When env and file both set a key", func() {
			path := writeConfig(t, "addr: \":9090\"\nbatch_size: 20\n")
			_ = os.Setenv("PEEL_CONFIG", path)
			_ = os.Setenv("PEEL_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When the config file is missing", func() {
			_ = os.Setenv("PEEL_CONFIG", "/non/existent/file.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail with a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value cannot be parsed", func() {
			_ = os.Setenv("PEEL_QUEUE_SIZE", "invalid")

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail with a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a loaded value is invalid", func() {
			_ = os.Setenv("PEEL_ANALYSIS__SAVGOL_WINDOW", "8")

			_, err := config.Load(ctx)

			convey.Convey("Then validation should reject it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "peelforce.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
