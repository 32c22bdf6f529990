package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// recording writes a synthetic peel trace with a header row.
func recording(t *testing.T, n int) string {
	var b strings.Builder
	b.WriteString("time,position,force\n")
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		f := 0.01 + 0.19*math.Exp(-math.Pow((x-0.4)/0.08, 2))
		fmt.Fprintf(&b, "%g,%g,%g\n", x*2, 10+x, f)
	}
	path := filepath.Join(t.TempDir(), "trace.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCurve(t *testing.T) {
	Convey("Given recorded rows", t, func() {
		Convey("When the input has a header and a blank cell", func() {
			c, err := readCurve(strings.NewReader("t,x,f\n0,1,0.1\n0.5,,0.2\n"))

			Convey("Then the header should be skipped and the blank become NaN", func() {
				So(err, ShouldBeNil)
				So(c.Len(), ShouldEqual, 2)
				So(math.IsNaN(c.Positions[1]), ShouldBeTrue)
				So(c.Forces[1], ShouldEqual, 0.2)
			})
		})

		Convey("When a later row is malformed", func() {
			_, err := readCurve(strings.NewReader("0,1,0.1\nabc,1,0.2\n"))

			Convey("Then the line should be reported", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "line 2")
			})
		})

		Convey("When a row has the wrong width", func() {
			_, err := readCurve(strings.NewReader("0,1\n"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the input is empty", func() {
			_, err := readCurve(strings.NewReader("t,x,f\n"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a recorded peel trace", t, func() {
		ctx := context.Background()
		in := recording(t, 200)
		dir := t.TempDir()

		Convey("When analyzing it with every output", func() {
			var out bytes.Buffer
			appendPath := filepath.Join(dir, "all.csv")
			err := run(ctx, []string{
				"-in", in, "-layer", "12",
				"-append", appendPath,
				"-db", filepath.Join(dir, "metrics.db"),
				"-plot", filepath.Join(dir, "plots"),
			}, &out)
			So(err, ShouldBeNil)

			rows, err := csv.NewReader(&out).ReadAll()
			So(err, ShouldBeNil)

			Convey("Then a header and one metrics row should be printed", func() {
				So(rows, ShouldHaveLength, 2)
				So(rows[0][0], ShouldEqual, model.MetricColumns[0])
				So(rows[1][0], ShouldEqual, "12")
			})

			Convey("Then the outputs should be written", func() {
				data, err := os.ReadFile(appendPath)
				So(err, ShouldBeNil)
				So(strings.Count(string(data), "\n"), ShouldEqual, 2)

				plots, err := os.ReadDir(filepath.Join(dir, "plots"))
				So(err, ShouldBeNil)
				So(plots, ShouldHaveLength, 1)

				_, err = os.Stat(filepath.Join(dir, "metrics.db"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the header is turned off", func() {
			var out bytes.Buffer
			So(run(ctx, []string{"-in", in, "-header=false"}, &out), ShouldBeNil)

			Convey("Then only the row should be printed", func() {
				So(strings.Count(out.String(), "\n"), ShouldEqual, 1)
			})
		})

		Convey("When no input is given", func() {
			err := run(ctx, nil, io.Discard)

			Convey("Then it should ask for one", func() {
				So(err, ShouldEqual, errNoInput)
			})
		})

		Convey("When the input does not exist", func() {
			err := run(ctx, []string{"-in", filepath.Join(dir, "missing.csv")}, io.Discard)

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
