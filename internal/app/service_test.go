package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/peelforce/internal/app"
	"github.com/okian/peelforce/internal/config"
	"github.com/okian/peelforce/internal/domain/calibration"
	"github.com/okian/peelforce/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// testConfig returns a config with no hardware and every file under dir.
func testConfig(dir string) *config.Config {
	cfg := config.New()
	cfg.Source = config.SourceNone
	cfg.MetricsCSVPath = filepath.Join(dir, "metrics.csv")
	cfg.MetricsDBPath = filepath.Join(dir, "metrics.db")
	cfg.PlotDir = filepath.Join(dir, "plots")
	cfg.CalibrationFile = filepath.Join(dir, "calibration.env")
	cfg.ShutdownTimeoutMS = 2000
	return cfg
}

// eventually polls cond until it holds or two seconds pass.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func captureN(svc *service.Service, raw float64, n int, from float64) {
	for i := 0; i < n; i++ {
		svc.Capture(from+float64(i)*0.001, raw)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given two new services", t, func() {
		a := service.New()
		b := service.New(service.WithConfig(testConfig(t.TempDir())))

		Convey("Then each should carry its own run id", func() {
			So(a.RunID(), ShouldNotBeEmpty)
			So(a.RunID(), ShouldNotEqual, b.RunID())
		})

		Convey("Then nothing should be captured before start", func() {
			So(a.Capture(0, 1), ShouldBeFalse)
			So(a.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service without hardware", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		svc := service.New(service.WithConfig(testConfig(dir)))

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)

			Convey("Then a second start should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("Then stats should report the running pipeline", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["source"], ShouldEqual, config.SourceNone)
				So(stats["queue_capacity"], ShouldEqual, 2000)
				So(stats["calibrated"], ShouldEqual, false)
			})

			Convey("Then captured readings should reach the raw ring", func() {
				captureN(svc, 0.5, 25, 0)
				So(eventually(func() bool { return len(svc.Recent(100)) == 25 }), ShouldBeTrue)
				So(svc.Recent(1)[0].Raw, ShouldEqual, 0.5)
			})

			Convey("Then the sqlite database should be created", func() {
				_, err := os.Stat(filepath.Join(dir, "metrics.db"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When stopping a started service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop(ctx)

			Convey("Then it should report stopped and refuse readings", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Capture(0, 1), ShouldBeFalse)
			})

			Convey("Then stopping again should be harmless", func() {
				So(func() { svc.Stop(ctx) }, ShouldNotPanic)
			})
		})

		Convey("When the metrics database cannot be opened", func() {
			cfg := testConfig(dir)
			cfg.MetricsDBPath = filepath.Join(dir, "missing", "dir", "metrics.db")
			bad := service.New(service.WithConfig(cfg))

			Convey("Then start should fail", func() {
				So(bad.Start(ctx), ShouldNotBeNil)
			})
		})
	})
}

func TestService_Calibration(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		cfg := testConfig(dir)
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When capturing without any readings", func() {
			_, err := svc.CaptureZero(ctx, 20)

			Convey("Then it should report missing samples", func() {
				So(errors.Is(err, calibration.ErrNoSamples), ShouldBeTrue)
			})
		})

		Convey("When running a two-point calibration", func() {
			captureN(svc, 1.0, 20, 0)
			So(eventually(func() bool { return len(svc.Recent(20)) == 20 }), ShouldBeTrue)
			zero, err := svc.CaptureZero(ctx, 20)
			So(err, ShouldBeNil)
			So(zero, ShouldAlmostEqual, 1.0)
			So(svc.PendingZero().Valid, ShouldBeTrue)

			captureN(svc, 3.0, 20, 1)
			So(eventually(func() bool { return svc.Recent(1)[0].Raw == 3.0 && len(svc.Recent(40)) == 40 }), ShouldBeTrue)
			st, err := svc.CaptureLoad(ctx, 2.0, 20)

			Convey("Then gain and offset should follow the two readings", func() {
				So(err, ShouldBeNil)
				So(st.Gain.V, ShouldAlmostEqual, 1.0)
				So(st.Offset.V, ShouldAlmostEqual, 1.0)
				So(svc.Calibration().Calibrated(), ShouldBeTrue)
				So(svc.GetStats()["calibrated"], ShouldEqual, true)
			})

			Convey("Then the calibration should be saved and reloaded by a new service", func() {
				_, err := os.Stat(cfg.CalibrationFile)
				So(err, ShouldBeNil)

				otherCfg := testConfig(t.TempDir())
				otherCfg.CalibrationFile = cfg.CalibrationFile
				other := service.New(service.WithConfig(otherCfg))
				So(other.Start(ctx), ShouldBeNil)
				defer other.Stop(ctx)
				So(other.Calibration().Gain.V, ShouldAlmostEqual, 1.0)
				So(other.Calibration().Offset.V, ShouldAlmostEqual, 1.0)
			})

			Convey("Then tare should move only the offset", func() {
				captureN(svc, 1.5, 20, 2)
				So(eventually(func() bool { return svc.Recent(1)[0].Raw == 1.5 && len(svc.Recent(60)) == 60 }), ShouldBeTrue)
				st, err := svc.Tare(ctx, 20)
				So(err, ShouldBeNil)
				So(st.Gain.V, ShouldAlmostEqual, 1.0)
				So(st.Offset.V, ShouldAlmostEqual, 1.5)
			})

			Convey("Then a reset should drop both the state and the saved record", func() {
				st := svc.ResetCalibration(ctx)
				So(st.Calibrated(), ShouldBeFalse)
				So(svc.PendingZero().Valid, ShouldBeFalse)
				So(svc.GetStats()["calibrated"], ShouldEqual, false)
				_, err := os.Stat(cfg.CalibrationFile)
				So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			})
		})

		Convey("When installing a known calibration", func() {
			st, err := svc.InstallCalibration(ctx, 0.05, 0.5)

			Convey("Then it should be active", func() {
				So(err, ShouldBeNil)
				So(st.Gain.V, ShouldEqual, 0.05)
				So(svc.Calibration().Offset.V, ShouldEqual, 0.5)
			})
		})

		Convey("When installing a zero gain", func() {
			_, err := svc.InstallCalibration(ctx, 0, 0.5)

			Convey("Then it should be rejected", func() {
				So(err, ShouldNotBeNil)
				So(svc.Calibration().Calibrated(), ShouldBeFalse)
			})
		})
	})
}
