package source

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/peelforce/internal/adapters/position"
	"github.com/okian/peelforce/internal/timeutil"
)

// SimConfig shapes the simulated peel curve.
type SimConfig struct {
	Interval time.Duration
	Gain     float64 // N per raw unit the amplifier would report
	Offset   float64 // raw reading at zero load
	PeakN    float64
	BaseN    float64
	NoiseN   float64
	Seed     uint64
}

func (c SimConfig) withDefaults() SimConfig {
	if c.Interval <= 0 {
		c.Interval = time.Millisecond
	}
	if c.Gain == 0 {
		c.Gain = 0.05
	}
	if c.PeakN == 0 {
		c.PeakN = 0.2
	}
	if c.BaseN == 0 {
		c.BaseN = 0.02
	}
	return c
}

// Simulated synthesizes a repeatable peel force curve as a function of the
// simulated stage position: a flat pre-load, an elastic rise to the peak at
// a third of the sweep and a decay to the baseline.
type Simulated struct {
	notifier
	cfg   SimConfig
	stage *position.Stage
	epoch *timeutil.Epoch

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{}
	cancel   context.CancelFunc
	closed   bool
}

// NewSimulated creates a simulated amplifier following stage.
func NewSimulated(cfg SimConfig, stage *position.Stage, epoch *timeutil.Epoch) *Simulated {
	cfg = cfg.withDefaults()
	if epoch == nil {
		epoch = timeutil.NewEpoch(nil)
	}
	return &Simulated{
		notifier: newNotifier("simulated"),
		cfg:      cfg,
		stage:    stage,
		epoch:    epoch,
		interval: cfg.Interval,
		reset:    make(chan struct{}, 1),
	}
}

// Start begins generating readings.
func (s *Simulated) Start(ctx context.Context, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrSourceClosed
	case s.cancel != nil:
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.emit(EventAttached, nil)
	go s.run(ctx, cb)
	return nil
}

func (s *Simulated) run(ctx context.Context, cb Callback) {
	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))
	ticker := time.NewTicker(s.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.emit(EventDetached, nil)
			return
		case <-s.reset:
			ticker.Reset(s.currentInterval())
		case <-ticker.C:
			x, _ := s.stage.Position()
			f := s.ForceAt(x) + s.cfg.NoiseN*rng.NormFloat64()
			cb(s.epoch.Seconds(), s.cfg.Offset+f/s.cfg.Gain)
		}
	}
}

// ForceAt returns the noiseless force at stage position x.
func (s *Simulated) ForceAt(x float64) float64 {
	from, to := s.stage.Span()
	span := to - from
	if span == 0 {
		return s.cfg.BaseN
	}
	u := (x - from) / span // 0..1 along the sweep
	const (
		rise = 0.15
		peak = 1.0 / 3
		fall = 0.7
	)
	pre := s.cfg.BaseN / 2
	switch {
	case u < rise:
		return pre
	case u < peak:
		k := (u - rise) / (peak - rise)
		return pre + (s.cfg.PeakN-pre)*k*k
	case u < fall:
		k := (u - peak) / (fall - peak)
		return s.cfg.BaseN + (s.cfg.PeakN-s.cfg.BaseN)*math.Exp(-4*k)*(1-k)
	default:
		return s.cfg.BaseN
	}
}

func (s *Simulated) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the generation interval.
func (s *Simulated) SetInterval(ms int) error {
	if ms <= 0 {
		return ErrInvalidOptions
	}
	s.mu.Lock()
	s.interval = time.Duration(ms) * time.Millisecond
	s.mu.Unlock()
	select {
	case s.reset <- struct{}{}:
	default:
	}
	return nil
}

// Close stops generation.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
