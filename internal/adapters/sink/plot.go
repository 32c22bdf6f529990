package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/peelforce/internal/domain/model"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNothingToPlot is returned by RenderPNG for a curve without finite points.
var ErrNothingToPlot = errors.New("no finite samples to plot")

// Plot writes a force-vs-position PNG per session into a directory.
type Plot struct {
	dir string

	mu     sync.Mutex
	closed bool
}

// NewPlot returns a plot sink writing into dir.
func NewPlot(dir string) *Plot {
	return &Plot{dir: dir}
}

// Name implements Sink.
func (p *Plot) Name() string { return "plot" }

// FileName returns the PNG file name used for r.
func FileName(r model.PeelResult) string {
	id := r.Metrics.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return fmt.Sprintf("layer_%04d.png", r.Metrics.LayerID)
	}
	return fmt.Sprintf("layer_%04d_%s.png", r.Metrics.LayerID, id)
}

// Append implements Sink. Curves with nothing to draw are skipped.
func (p *Plot) Append(_ context.Context, r model.PeelResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSinkClosed
	}

	img, err := RenderPNG(r)
	if errors.Is(err, ErrNothingToPlot) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, FileName(r)), img, 0o644); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// Close implements Sink.
func (p *Plot) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// RenderPNG draws the curve with markers at the detected phases and the
// position band shaded when one was given.
func RenderPNG(r model.PeelResult) ([]byte, error) {
	pts := finitePoints(r.Curve)
	if len(pts) == 0 {
		return nil, ErrNothingToPlot
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Layer %d", r.Metrics.LayerID)
	pl.X.Label.Text = "Position (mm)"
	pl.Y.Label.Text = "Force (N)"
	pl.Add(plotter.NewGrid())

	if r.Curve.BandStart.Valid && r.Curve.BandEnd.Valid {
		lo, hi := forceRange(pts)
		band, err := plotter.NewPolygon(plotter.XYs{
			{X: r.Curve.BandStart.V, Y: lo},
			{X: r.Curve.BandEnd.V, Y: lo},
			{X: r.Curve.BandEnd.V, Y: hi},
			{X: r.Curve.BandStart.V, Y: hi},
		})
		if err != nil {
			return nil, fmt.Errorf("band polygon: %w", err)
		}
		band.Color = color.RGBA{R: 255, G: 220, B: 120, A: 90}
		band.LineStyle.Width = 0
		pl.Add(band)
		pl.Legend.Add("band", band)
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("curve line: %w", err)
	}
	line.Color = color.RGBA{B: 200, A: 255}
	line.Width = vg.Points(1)
	pl.Add(line)
	pl.Legend.Add("force", line)

	if !r.Metrics.IsEmpty() {
		marks := []struct {
			name string
			idx  int
			col  color.Color
		}{
			{"pre-initiation", r.Metrics.PreInitiationIndex, color.RGBA{G: 160, A: 255}},
			{"peak", r.Metrics.PeakIndex, color.RGBA{R: 220, A: 255}},
			{"propagation end", r.Metrics.PropagationEndIndex, color.RGBA{R: 140, B: 140, A: 255}},
		}
		for _, mk := range marks {
			if mk.idx < 0 || mk.idx >= len(pts) {
				continue
			}
			sc, err := plotter.NewScatter(plotter.XYs{pts[mk.idx]})
			if err != nil {
				return nil, fmt.Errorf("%s marker: %w", mk.name, err)
			}
			sc.GlyphStyle = draw.GlyphStyle{Color: mk.col, Radius: vg.Points(4), Shape: draw.CircleGlyph{}}
			pl.Add(sc)
			pl.Legend.Add(mk.name, sc)
		}
	}
	pl.Legend.Top = true

	w, err := pl.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("plot writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	return buf.Bytes(), nil
}

// finitePoints keeps the samples the analysis engine keeps, so metric
// indices address the same points.
func finitePoints(c model.Curve) plotter.XYs {
	pts := make(plotter.XYs, 0, c.Len())
	for i := range c.Times {
		if i >= len(c.Positions) || i >= len(c.Forces) {
			break
		}
		t, x, f := c.Times[i], c.Positions[i], c.Forces[i]
		if !finite(t) || !finite(x) || !finite(f) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: f})
	}
	return pts
}

func forceRange(pts plotter.XYs) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		lo = math.Min(lo, p.Y)
		hi = math.Max(hi, p.Y)
	}
	if lo == hi {
		hi = lo + 1e-3
	}
	return lo, hi
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
