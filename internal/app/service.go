// Package service wires the acquisition pipeline, the monitoring session and
// the result sinks into one runnable service that implements the HTTP API
// dependencies.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/peelforce/internal/adapters/mq/ring"
	"github.com/okian/peelforce/internal/adapters/mq/worker"
	"github.com/okian/peelforce/internal/adapters/position"
	"github.com/okian/peelforce/internal/adapters/repository"
	"github.com/okian/peelforce/internal/adapters/sink"
	"github.com/okian/peelforce/internal/adapters/source"
	"github.com/okian/peelforce/internal/config"
	"github.com/okian/peelforce/internal/domain/analysis"
	"github.com/okian/peelforce/internal/domain/calibration"
	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/internal/domain/session"
	"github.com/okian/peelforce/internal/timeutil"
	"github.com/okian/peelforce/pkg/logger"
	"github.com/okian/peelforce/pkg/metrics"
)

// Simulated bench defaults.
const (
	simFromMM     = 10.0
	simToMM       = 12.0
	simSpeedMMPS  = 0.5
	simOffsetRaw  = 0.5
	simNoiseN     = 0.0005
	simSeed       = 1
	readyCapacity = 16
)

// Service owns every acquisition component for one load cell.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	runID  string
	clock  timeutil.Clock
	epoch  *timeutil.Epoch
	logger logger.Logger

	// Core components
	calib    *calibration.Unit
	ring     *ring.Buffer
	display  *worker.DisplayState
	manual   *position.Manual
	position position.Source
	session  *session.Session
	store    *repository.MemoryStore
	pipeline *worker.Pipeline
	source   source.Source
	sinks    *sink.Multi

	customSinks    []sink.Sink
	hasCustomSinks bool

	ready chan model.PeelResult

	// State
	started   bool
	cancel    context.CancelFunc
	watchDone chan struct{}
}

// New constructs a Service. Components that touch hardware or files are
// created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:     config.New(),
		runID:   uuid.NewString(),
		clock:   timeutil.RealClock{},
		calib:   calibration.New(),
		display: &worker.DisplayState{},
		manual:  position.NewManual(),
		ready:   make(chan model.PeelResult, readyCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.epoch = timeutil.NewEpoch(s.clock)
	s.ring = ring.New(s.cfg.RingSize)
	s.position = s.manual
	s.session = session.New(session.WithAnalyzer(analysis.New(s.cfg.Analysis)))
	s.store = repository.NewMemoryStore(repository.WithHistory(s.cfg.ResultHistory))
	return s
}

// RunID identifies this process run in persisted results.
func (s *Service) RunID() string { return s.runID }

// Start loads the saved calibration, opens the sinks, starts the pipeline
// and attaches the sample source. A failing source is logged and leaves the
// service running without new samples.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting acquisition service...", logger.String("run_id", s.runID))

	s.loadCalibration(ctx)

	sinks, err := s.openSinks()
	if err != nil {
		return err
	}
	s.sinks = sinks

	if s.source == nil {
		s.source = s.newSource()
	}

	cfg := s.cfg
	s.pipeline = worker.NewPipeline(worker.PipelineConfig{
		CaptureQueueSize: cfg.QueueSize,
		LoggingQueueSize: cfg.LoggingQueueSize,
		DisplayQueueSize: cfg.DisplayQueueSize,
		Batch: worker.BatchConfig{
			Size:            cfg.BatchSize,
			MaxWait:         cfg.BatchMaxWait(),
			DisplayTrigger:  cfg.DisplayTriggerN,
			DisplayInterval: cfg.DisplayInterval(),
		},
		MonitorInterval: cfg.MonitorInterval(),
		JoinTimeout:     cfg.ShutdownTimeout(),
	}, s.ring, s.calib, s.position, s.session, s.display,
		worker.WithClock(s.clock), worker.WithLogger(s.logger))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pipeline.Start(runCtx)

	s.watchDone = make(chan struct{})
	go s.watch(runCtx, s.source.Events())

	if err := s.source.Start(runCtx, func(ts, raw float64) { s.pipeline.Capture(ts, raw) }); err != nil {
		s.logger.Error(ctx, "sample source failed to start; running without samples", logger.Error(err))
	} else if err := s.source.SetInterval(cfg.SampleIntervalMS); err != nil {
		s.logger.Warn(ctx, "could not set the driver sample interval",
			logger.Int("interval_ms", cfg.SampleIntervalMS), logger.Error(err))
	}

	s.started = true
	s.logger.Info(ctx, "acquisition service started",
		logger.String("source", cfg.Source),
		logger.Int("queue_size", cfg.QueueSize),
		logger.Int("batch_size", cfg.BatchSize),
		logger.Int("sinks", s.sinks.Len()),
		logger.Bool("calibrated", s.calib.Calibrated()),
	)
	return nil
}

// Stop detaches the source, stops the pipeline within the configured join
// timeout and closes the sinks.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping acquisition service...")

	if err := s.source.Close(); err != nil {
		s.logger.Warn(ctx, "closing sample source failed", logger.Error(err))
	}
	s.pipeline.Stop(ctx)

	s.cancel()
	select {
	case <-s.watchDone:
	case <-time.After(s.cfg.ShutdownTimeout()):
		s.logger.Warn(ctx, "hardware event watcher did not stop in time")
	}

	if err := s.sinks.Close(); err != nil {
		s.logger.Warn(ctx, "closing sinks failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "acquisition service stopped")
}

func (s *Service) newSource() source.Source {
	cfg := s.cfg
	switch cfg.Source {
	case config.SourceSerial:
		return source.NewSerial(cfg.SerialPort, source.PortOptions{
			BaudRate: cfg.SerialBaudRate,
			DataBits: cfg.SerialDataBits,
			StopBits: cfg.SerialStopBits,
			Parity:   cfg.SerialParity,
		}, nil, s.epoch)
	case config.SourceSimulated:
		stage := position.NewStage(s.clock, simFromMM, simToMM, simSpeedMMPS)
		s.position = position.Fallback{s.manual, stage}
		return source.NewSimulated(source.SimConfig{
			Interval: time.Duration(cfg.SampleIntervalMS) * time.Millisecond,
			Offset:   simOffsetRaw,
			NoiseN:   simNoiseN,
			Seed:     simSeed,
		}, stage, s.epoch)
	default:
		return source.NewDisabled()
	}
}

func (s *Service) openSinks() (*sink.Multi, error) {
	if s.hasCustomSinks {
		return sink.NewMulti(s.customSinks...), nil
	}
	var sinks []sink.Sink
	if p := s.cfg.MetricsCSVPath; p != "" {
		sinks = append(sinks, sink.NewCSV(p))
	}
	if p := s.cfg.MetricsDBPath; p != "" {
		db, err := sink.NewSQLite(p, s.runID)
		if err != nil {
			return nil, fmt.Errorf("open metrics database: %w", err)
		}
		sinks = append(sinks, db)
	}
	if d := s.cfg.PlotDir; d != "" {
		sinks = append(sinks, sink.NewPlot(d))
	}
	return sink.NewMulti(sinks...), nil
}

// watch logs hardware notifications. They are advisory only.
func (s *Service) watch(ctx context.Context, events <-chan source.Event) {
	defer close(s.watchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			s.onHardwareEvent(ctx, e)
		}
	}
}

func (s *Service) onHardwareEvent(ctx context.Context, e source.Event) {
	metrics.RecordHardwareEvent(string(e.Kind))
	fields := []logger.Field{logger.String("source", e.Source)}
	if e.Err != nil {
		fields = append(fields, logger.Error(e.Err))
	}
	switch e.Kind {
	case source.EventAttached:
		s.logger.Info(ctx, "sample source attached", fields...)
	case source.EventDetached:
		if e.Err != nil {
			s.logger.Warn(ctx, "sample source detached", fields...)
			return
		}
		s.logger.Info(ctx, "sample source detached", fields...)
	case source.EventError:
		metrics.RecordErrorByComponent("source", "hardware")
		s.logger.Error(ctx, "sample source error", fields...)
	}
}

// Capture feeds one raw reading into the pipeline as the hardware callback
// would. It returns false when the reading was dropped.
func (s *Service) Capture(timestamp, raw float64) bool {
	s.mu.RLock()
	p := s.pipeline
	started := s.started
	s.mu.RUnlock()
	if !started {
		return false
	}
	return p.Capture(timestamp, raw)
}

// MetricsReady delivers each completed result. Results are dropped when the
// reader falls behind.
func (s *Service) MetricsReady() <-chan model.PeelResult { return s.ready }

// StartMonitoring arms the session for layerID.
func (s *Service) StartMonitoring(ctx context.Context, layerID int64, bandStart, bandEnd model.OptFloat) string {
	id := s.session.Start(layerID, bandStart, bandEnd)
	s.logger.Info(ctx, "monitoring started",
		logger.Int64("layer_id", layerID),
		logger.String("session_id", id),
	)
	return id
}

// StopMonitoring disarms the session and analyzes the buffered samples. The
// result is stored, written to the sinks and announced on MetricsReady.
func (s *Service) StopMonitoring(ctx context.Context) (model.PeelResult, bool) {
	res, ok := s.session.Stop()
	if !ok {
		s.logger.Info(ctx, "monitoring stopped without enough samples")
		return res, false
	}
	m := res.Metrics
	s.logger.Info(ctx, "monitoring stopped",
		logger.Int64("layer_id", m.LayerID),
		logger.String("session_id", m.SessionID),
		logger.Int("samples", res.Curve.Len()),
		logger.Float64("peak_force_n", m.PeakForceN),
		logger.Float64("work_corrected_mj", m.WorkOfAdhesionCorrectedMJ),
		logger.Bool("empty", m.IsEmpty()),
	)

	_ = s.store.Put(ctx, res)

	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	if sinks != nil {
		// failures are logged and counted by the sink fan-out
		_ = sinks.Append(ctx, res)
	}

	select {
	case s.ready <- res:
	default:
		s.logger.Debug(ctx, "metrics-ready reader is behind; dropping notification")
	}
	return res, true
}

// AddSample buffers an externally acquired sample while armed.
func (s *Service) AddSample(_ context.Context, timestamp float64, pos, force model.OptFloat) {
	s.session.AddSample(timestamp, pos, force)
}

// SessionStatus returns the monitoring session status.
func (s *Service) SessionStatus() session.Status { return s.session.Status() }

// Calibration returns the installed calibration.
func (s *Service) Calibration() model.CalibrationState { return s.calib.State() }

// PendingZero returns the zero reading awaiting a load reading.
func (s *Service) PendingZero() model.OptFloat { return s.calib.PendingZero() }

// CaptureZero averages the newest window raw samples as the unloaded reading.
func (s *Service) CaptureZero(ctx context.Context, window int) (float64, error) {
	zero, err := calibration.MeanRaw(s.ring.Recent(window))
	if err != nil {
		return 0, err
	}
	if err := s.calib.CaptureZero(zero); err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "zero reading captured", logger.Float64("zero_raw", zero), logger.Int("window", window))
	return zero, nil
}

// CaptureLoad completes a two-point calibration with the newest window raw
// samples taken under knownForceN.
func (s *Service) CaptureLoad(ctx context.Context, knownForceN float64, window int) (model.CalibrationState, error) {
	load, err := calibration.MeanRaw(s.ring.Recent(window))
	if err != nil {
		return model.CalibrationState{}, err
	}
	st, err := s.calib.CaptureLoad(load, knownForceN)
	if err != nil {
		return model.CalibrationState{}, err
	}
	s.calibrationChanged(ctx, "two-point")
	return st, nil
}

// Tare re-zeroes the calibration on the newest window raw samples.
func (s *Service) Tare(ctx context.Context, window int) (model.CalibrationState, error) {
	zero, err := calibration.MeanRaw(s.ring.Recent(window))
	if err != nil {
		return model.CalibrationState{}, err
	}
	if err := s.calib.Tare(zero); err != nil {
		return model.CalibrationState{}, err
	}
	s.calibrationChanged(ctx, "tare")
	return s.calib.State(), nil
}

// InstallCalibration installs a known gain/offset pair.
func (s *Service) InstallCalibration(ctx context.Context, gain, offset float64) (model.CalibrationState, error) {
	if err := s.calib.Install(gain, offset); err != nil {
		return model.CalibrationState{}, err
	}
	s.calibrationChanged(ctx, "install")
	return s.calib.State(), nil
}

// ResetCalibration discards the calibration and removes the saved record so
// the next start is uncalibrated too.
func (s *Service) ResetCalibration(ctx context.Context) model.CalibrationState {
	s.calib.Reset()
	metrics.UpdateCalibrated(false)
	s.logger.Info(ctx, "calibration reset")
	if path := s.cfg.CalibrationFile; path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn(ctx, "removing saved calibration failed", logger.String("path", path), logger.Error(err))
		}
	}
	return s.calib.State()
}

func (s *Service) calibrationChanged(ctx context.Context, how string) {
	st := s.calib.State()
	metrics.UpdateCalibrated(st.Calibrated())
	s.logger.Info(ctx, "calibration installed",
		logger.String("method", how),
		logger.Float64("gain", st.Gain.V),
		logger.Float64("offset", st.Offset.V),
	)
	if path := s.cfg.CalibrationFile; path != "" {
		if err := s.calib.Save(path); err != nil {
			s.logger.Error(ctx, "saving calibration failed", logger.String("path", path), logger.Error(err))
		}
	}
}

func (s *Service) loadCalibration(ctx context.Context) {
	path := s.cfg.CalibrationFile
	if path == "" {
		return
	}
	err := s.calib.Load(path)
	switch {
	case err == nil:
		st := s.calib.State()
		s.logger.Info(ctx, "calibration loaded",
			logger.String("path", path),
			logger.Float64("gain", st.Gain.V),
			logger.Float64("offset", st.Offset.V),
		)
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info(ctx, "no saved calibration; starting uncalibrated", logger.String("path", path))
	default:
		s.logger.Warn(ctx, "saved calibration unusable; starting uncalibrated",
			logger.String("path", path), logger.Error(err))
	}
	metrics.UpdateCalibrated(s.calib.Calibrated())
}

// Display returns the latest display update and the update count.
func (s *Service) Display() (model.DisplayUpdate, uint64) { return s.display.Snapshot() }

// SetPosition overrides the stage position.
func (s *Service) SetPosition(mm float64) { s.manual.Set(mm) }

// ClearPosition removes the position override.
func (s *Service) ClearPosition() { s.manual.Clear() }

// Recent returns up to n of the newest raw samples, oldest first.
func (s *Service) Recent(n int) []model.RawSample { return s.ring.Recent(n) }

// Latest returns up to n stored results, newest first.
func (s *Service) Latest(ctx context.Context, n int) ([]model.PeelResult, error) {
	return s.store.Latest(ctx, n)
}

// ByLayer returns the stored results of one layer, newest first.
func (s *Service) ByLayer(ctx context.Context, layerID int64) ([]model.PeelResult, error) {
	return s.store.ByLayer(ctx, layerID)
}

// Session returns a stored result by session id.
func (s *Service) Session(ctx context.Context, sessionID string) (model.PeelResult, error) {
	return s.store.Session(ctx, sessionID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	st := s.session.Status()
	_, updates := s.display.Snapshot()
	stats := map[string]any{
		"started":         s.started,
		"run_id":          s.runID,
		"source":          s.cfg.Source,
		"calibrated":      s.calib.Calibrated(),
		"armed":           st.Armed,
		"layer_id":        st.LayerID,
		"session_samples": st.Samples,
		"ring_total":      s.ring.Total(),
		"display_updates": updates,
		"results":         s.store.Count(ctx),
	}

	if s.started {
		ps := s.pipeline.Stats()
		stats["queue_length"] = ps.QueueLen
		stats["queue_capacity"] = ps.QueueCap
		stats["dropped"] = ps.Dropped
		stats["processed"] = ps.Processed
		stats["logging_queued"] = ps.LoggingQueued
		stats["throughput_hz"] = ps.ThroughputHz

		metrics.UpdateQueueSize(ps.QueueLen)
	}
	return stats
}
