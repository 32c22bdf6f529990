package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/okian/peelforce/internal/domain/model"
)

// CSV appends one row per session to a file, writing the header only when
// the file is new or empty.
type CSV struct {
	path string

	mu     sync.Mutex
	closed bool
}

// NewCSV returns a CSV sink for path. The file is created on first append.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Name implements Sink.
func (c *CSV) Name() string { return "csv" }

// Path returns the target file.
func (c *CSV) Path() string { return c.path }

// Append implements Sink.
func (c *CSV) Append(_ context.Context, r model.PeelResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSinkClosed
	}

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create csv dir: %w", err)
		}
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}
	if err := WriteCSV(f, info.Size() == 0, r.Metrics); err != nil {
		return err
	}
	return f.Sync()
}

// Close implements Sink.
func (c *CSV) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// WriteCSV writes m as one row to w, preceded by the header when header is set.
func WriteCSV(w io.Writer, header bool, m model.AdhesionMetrics) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(model.MetricColumns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := cw.Write(Row(m)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// Row formats m in column order with four decimals and NaN for missing values.
func Row(m model.AdhesionMetrics) []string {
	fields := m.Fields()
	row := make([]string, 0, len(fields)+1)
	row = append(row, strconv.FormatInt(m.LayerID, 10))
	for _, f := range fields {
		row = append(row, FormatValue(f.Value))
	}
	return row
}

// FormatValue renders v with four decimals.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
