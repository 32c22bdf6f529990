package sink

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/okian/peelforce/internal/domain/model"
	_ "modernc.org/sqlite"
)

// SQLite stores results in an adhesion_metrics table tagged with the
// process run id and the session id.
type SQLite struct {
	db    *sql.DB
	runID string

	mu     sync.Mutex
	closed bool
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path, runID string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create adhesion_metrics: %w", err)
	}
	return &SQLite{db: db, runID: runID}, nil
}

func schema() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS adhesion_metrics (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id        TEXT NOT NULL,
		session_id    TEXT,
		completed_at  TIMESTAMP,
		layer_id      BIGINT NOT NULL,
		sample_count  BIGINT`)
	for _, c := range model.MetricColumns[1:] {
		b.WriteString(",\n\t\t")
		b.WriteString(c)
		b.WriteString(" DOUBLE")
	}
	b.WriteString(`
	);
	CREATE INDEX IF NOT EXISTS adhesion_metrics_layer ON adhesion_metrics (layer_id);`)
	return b.String()
}

// Name implements Sink.
func (s *SQLite) Name() string { return "sqlite" }

// Append implements Sink.
func (s *SQLite) Append(ctx context.Context, r model.PeelResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	m := r.Metrics
	fields := m.Fields()
	cols := []string{"run_id", "session_id", "completed_at", "layer_id", "sample_count"}
	args := []any{s.runID, m.SessionID, m.CompletedAt.UTC(), m.LayerID, m.SampleCount}
	for _, f := range fields {
		cols = append(cols, f.Name)
		args = append(args, nullable(f.Value))
	}
	q := fmt.Sprintf("INSERT INTO adhesion_metrics (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert adhesion_metrics: %w", err)
	}
	return nil
}

// ByLayer returns the stored results for layerID, oldest first.
func (s *SQLite) ByLayer(ctx context.Context, layerID int64) ([]model.AdhesionMetrics, error) {
	cols := append([]string{"session_id", "completed_at", "layer_id", "sample_count"}, model.MetricColumns[1:]...)
	q := fmt.Sprintf("SELECT %s FROM adhesion_metrics WHERE layer_id = ? ORDER BY id", strings.Join(cols, ", "))
	rows, err := s.db.QueryContext(ctx, q, layerID)
	if err != nil {
		return nil, fmt.Errorf("query adhesion_metrics: %w", err)
	}
	defer rows.Close()

	var out []model.AdhesionMetrics
	for rows.Next() {
		var (
			m         model.AdhesionMetrics
			session   sql.NullString
			completed sql.NullTime
		)
		values := make([]sql.NullFloat64, len(model.MetricColumns)-1)
		dest := []any{&session, &completed, &m.LayerID, &m.SampleCount}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan adhesion_metrics: %w", err)
		}
		m.SessionID = session.String
		if completed.Valid {
			m.CompletedAt = completed.Time
		}
		assign(&m, values)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close implements Sink.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// nullable stores non-finite values as NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func assign(m *model.AdhesionMetrics, v []sql.NullFloat64) {
	get := func(i int) float64 {
		if !v[i].Valid {
			return math.NaN()
		}
		return v[i].Float64
	}
	targets := []*float64{
		&m.PeakForceN, &m.PeakPositionMM, &m.PeakTimeS, &m.BaselineForceN,
		&m.PreInitiationPositionMM, &m.PreInitiationTimeS, &m.PreInitiationDurationS, &m.PreInitiationDistanceMM,
		&m.PropagationEndPositionMM, &m.PropagationEndTimeS, &m.PropagationDurationS, &m.PropagationDistanceMM,
		&m.TotalPeelDurationS, &m.TotalPeelDistanceMM,
		&m.WorkOfAdhesionMJ, &m.WorkOfAdhesionCorrectedMJ, &m.EnergyDissipationMJ, &m.TotalEnergyMJ, &m.EnergyDensityMJPerMM,
		&m.MaxLoadingRateNPerS, &m.MaxUnloadingRateNPerS,
		&m.NoiseStdN, &m.SignalToNoiseRatio,
	}
	for i, t := range targets {
		*t = get(i)
	}
}
