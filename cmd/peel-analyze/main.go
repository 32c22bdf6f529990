// Command peel-analyze runs the peel-curve analysis on a recorded
// time,position,force CSV and prints the adhesion metrics row.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/peelforce/internal/adapters/sink"
	"github.com/okian/peelforce/internal/config"
	"github.com/okian/peelforce/internal/domain/analysis"
	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/pkg/logger"
)

var errNoInput = errors.New("input CSV is required")

// options holds the command line.
type options struct {
	Input   string
	LayerID int64
	Append  string
	DBPath  string
	PlotDir string
	Header  bool
}

func main() {
	if err := logger.InitWithWriter(os.Stderr, "text"); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		logger.Get().Error(context.Background(), "peel analysis failed", logger.Error(err))
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("peel-analyze", flag.ContinueOnError)
	fs.StringVar(&o.Input, "in", "", "recorded time,position,force CSV (- for stdin)")
	fs.Int64Var(&o.LayerID, "layer", 0, "layer id to report")
	fs.StringVar(&o.Append, "append", "", "append the metrics row to this CSV file")
	fs.StringVar(&o.DBPath, "db", "", "also store the metrics in this sqlite database")
	fs.StringVar(&o.PlotDir, "plot", "", "write a force-position PNG into this directory")
	fs.BoolVar(&o.Header, "header", true, "print the column header")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.Input == "" {
		return o, errNoInput
	}
	return o, nil
}

// run analyzes one recording. Analysis tunables come from the same
// file/env configuration as the daemon.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if o.Input != "-" {
		f, err := os.Open(o.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	curve, err := readCurve(in)
	if err != nil {
		return err
	}

	m := analysis.New(cfg.Analysis).Analyze(o.LayerID, curve.Times, curve.Positions, curve.Forces)
	m.SessionID = uuid.NewString()
	res := model.PeelResult{Metrics: m, Curve: curve}

	if err := sink.WriteCSV(stdout, o.Header, m); err != nil {
		return err
	}

	var sinks []sink.Sink
	if o.Append != "" {
		sinks = append(sinks, sink.NewCSV(o.Append))
	}
	if o.DBPath != "" {
		db, err := sink.NewSQLite(o.DBPath, "peel-analyze")
		if err != nil {
			return err
		}
		sinks = append(sinks, db)
	}
	if o.PlotDir != "" {
		sinks = append(sinks, sink.NewPlot(o.PlotDir))
	}
	out := sink.NewMulti(sinks...)
	return errors.Join(out.Append(ctx, res), out.Close())
}

// readCurve parses time,position,force rows. A leading header row and blank
// cells are accepted; blank cells become NaN and are dropped by the analysis.
func readCurve(r io.Reader) (model.Curve, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var c model.Curve
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c, fmt.Errorf("read input: %w", err)
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return c, fmt.Errorf("line %d: time %q: %w", line, rec[0], err)
		}
		pos, err := cell(rec[1])
		if err != nil {
			return c, fmt.Errorf("line %d: position: %w", line, err)
		}
		force, err := cell(rec[2])
		if err != nil {
			return c, fmt.Errorf("line %d: force: %w", line, err)
		}
		c.Times = append(c.Times, t)
		c.Positions = append(c.Positions, pos)
		c.Forces = append(c.Forces, force)
	}
	if c.Len() == 0 {
		return c, errors.New("input has no samples")
	}
	return c, nil
}

func cell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
