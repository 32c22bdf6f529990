package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/peelforce/internal/config"
	"github.com/okian/peelforce/internal/domain/analysis"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 2000)
			convey.So(cfg.BatchSize, convey.ShouldEqual, 10)
			convey.So(cfg.RingSize, convey.ShouldEqual, 1000)
			convey.So(cfg.DisplayTriggerN, convey.ShouldEqual, 0.001)
			convey.So(cfg.Source, convey.ShouldEqual, config.SourceSimulated)
			convey.So(cfg.ResultHistory, convey.ShouldEqual, 256)
			convey.So(cfg.Analysis, convey.ShouldResemble, analysis.DefaultParams())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then durations should be derived from the millisecond fields", func() {
			convey.So(cfg.BatchMaxWait(), convey.ShouldEqual, 10*time.Millisecond)
			convey.So(cfg.DisplayInterval(), convey.ShouldEqual, 50*time.Millisecond)
			convey.So(cfg.MonitorInterval(), convey.ShouldEqual, time.Second)
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 2*time.Second)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs that break an invariant", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"negative batch", func(c *config.Config) { c.BatchSize = -1 }},
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"negative trigger", func(c *config.Config) { c.DisplayTriggerN = -0.1 }},
			{"unknown format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"unknown source", func(c *config.Config) { c.Source = "usb" }},
			{"serial without port", func(c *config.Config) { c.Source = config.SourceSerial }},
			{"even median kernel", func(c *config.Config) { c.Analysis.MedianKernel = 4 }},
			{"savgol order too big", func(c *config.Config) { c.Analysis.SavgolOrder = 9 }},
			{"zero history", func(c *config.Config) { c.ResultHistory = 0 }},
		}

		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" should be rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then analysis errors should stay inspectable", func() {
			cfg := config.New()
			cfg.Analysis.SavgolWindow = 8
			convey.So(errors.Is(cfg.Validate(), analysis.ErrInvalidParams), convey.ShouldBeTrue)
		})

		convey.Convey("Then a serial source with a port should pass", func() {
			cfg := config.New()
			cfg.Source = config.SourceSerial
			cfg.SerialPort = "/dev/ttyUSB0"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
