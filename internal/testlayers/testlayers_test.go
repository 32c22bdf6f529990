package testlayers

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/peelforce/internal/adapters/http/api"
	service "github.com/okian/peelforce/internal/app"
	"github.com/okian/peelforce/internal/config"
	"github.com/okian/peelforce/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// liveService serves the control API of a started service without hardware.
func liveService(t *testing.T) *httptest.Server {
	cfg := config.New()
	cfg.Source = config.SourceNone
	cfg.MetricsCSVPath = filepath.Join(t.TempDir(), "metrics.csv")
	svc := service.New(service.WithConfig(cfg))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Stop(context.Background()) })

	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(t *testing.T, baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		NumLayers:  3,
		Samples:    400,
		ChunkSize:  150,
		Workers:    2,
		Timeout:    5 * time.Second,
		Seed:       7,
		OutputFile: filepath.Join(t.TempDir(), "out", "layers.json"),
	}
}

func TestGenerateLayers(t *testing.T) {
	Convey("Given a generator config", t, func() {
		ctx := context.Background()
		cfg := &Config{NumLayers: 4, Samples: 100, Seed: 3}

		Convey("When generating layers twice with the same seed", func() {
			a, err := generateLayers(ctx, cfg, &Stats{})
			So(err, ShouldBeNil)
			b, err := generateLayers(ctx, cfg, &Stats{})
			So(err, ShouldBeNil)

			Convey("Then they should be identical and well formed", func() {
				So(a, ShouldResemble, b)
				So(a, ShouldHaveLength, 4)
				So(a[0].LayerID, ShouldEqual, 1)
				So(a[0].Samples, ShouldHaveLength, 100)
				So(a[0].Samples[99].PositionMM, ShouldAlmostEqual, startMM+sweepMM)
				So(a[0].PeakN, ShouldBeBetween, minPeakN, minPeakN+peakRangeN)
			})
		})

		Convey("When asking for too few samples", func() {
			_, err := generateLayers(ctx, &Config{NumLayers: 1, Samples: 1}, &Stats{})

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestVerifyLayer(t *testing.T) {
	Convey("Given a generated layer", t, func() {
		l := generateSingleLayer(rand.New(rand.NewPCG(1, 2)), 5, 50)
		peak := l.PeakN
		good := Result{LayerID: 5, SessionID: "s", SampleCount: 50, Metrics: map[string]*float64{peakMetric: &peak}}

		Convey("Then a matching result should verify", func() {
			So(verifyLayer(l, good, good), ShouldBeNil)
		})

		Convey("Then a result with a distant peak should not", func() {
			far := peak * 2
			bad := good
			bad.Metrics = map[string]*float64{peakMetric: &far}
			So(verifyLayer(l, good, bad), ShouldNotBeNil)
		})

		Convey("Then a result without a peak should not", func() {
			bad := good
			bad.Metrics = map[string]*float64{peakMetric: nil}
			So(verifyLayer(l, good, bad), ShouldNotBeNil)
		})

		Convey("Then a session mismatch should not", func() {
			other := good
			other.SessionID = "t"
			So(verifyLayer(l, other, good), ShouldNotBeNil)
		})
	})

	Convey("Given latest listings", t, func() {
		So(verifyLatestOrder([]Result{{LayerID: 3}, {LayerID: 2}, {LayerID: 1}}), ShouldBeNil)
		So(verifyLatestOrder([]Result{{LayerID: 1}, {LayerID: 2}}), ShouldNotBeNil)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a live service", t, func() {
		ts := liveService(t)
		ctx := context.Background()

		Convey("When running the layer test", func() {
			cfg := testConfig(t, ts.URL)
			err := Run(ctx, cfg)

			Convey("Then every layer should verify", func() {
				So(err, ShouldBeNil)
			})

			Convey("Then the generated layers should be saved", func() {
				data, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var layers []Layer
				So(json.Unmarshal(data, &layers), ShouldBeNil)
				So(layers, ShouldHaveLength, 3)
			})
		})

		Convey("When the service is already monitoring", func() {
			client := newHTTPClient(time.Second)
			So(client.postJSON(ctx, ts.URL+"/monitoring/start", map[string]any{"layer_id": 99}, http.StatusOK, nil), ShouldBeNil)

			Convey("Then the health check should refuse to run", func() {
				So(Run(ctx, testConfig(t, ts.URL)), ShouldNotBeNil)
			})
		})
	})

	Convey("Given no service", t, func() {
		Convey("Then the run should fail fast", func() {
			cfg := testConfig(t, "http://127.0.0.1:1")
			cfg.Timeout = 500 * time.Millisecond
			So(Run(context.Background(), cfg), ShouldNotBeNil)
		})
	})
}
