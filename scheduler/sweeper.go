package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"ecorewards/engine"
)

// DefaultInterval is how often achievements and streaks are re-checked.
const DefaultInterval = 30 * time.Second

// Sweepable is the part of the rewards service the sweeper drives.
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time) error
}

// Sweeper periodically closes elapsed days for every known user.
type Sweeper struct {
	target   Sweepable
	clock    engine.Clock
	interval time.Duration
	log      *slog.Logger
	running  atomic.Bool
	ticks    atomic.Int64
	skipped  atomic.Int64
}

type Option func(*Sweeper)

func WithClock(c engine.Clock) Option { return func(s *Sweeper) { s.clock = c } }

func WithInterval(d time.Duration) Option { return func(s *Sweeper) { s.interval = d } }

func WithLogger(l *slog.Logger) Option { return func(s *Sweeper) { s.log = l } }

func New(target Sweepable, opts ...Option) *Sweeper {
	if target == nil {
		panic("scheduler.New requires a non-nil target")
	}
	s := &Sweeper{target: target, clock: engine.SystemClock, interval: DefaultInterval, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	s.log = s.log.With("component", "sweeper")
	return s
}

// Tick runs one sweep. It returns false without sweeping when a previous tick is still running.
func (s *Sweeper) Tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Debug("sweep still running, tick dropped")
		return false
	}
	defer s.running.Store(false)
	s.ticks.Add(1)

	start := time.Now()
	if err := s.target.Sweep(ctx, s.clock.Now()); err != nil {
		s.log.Warn("sweep failed", "error", err)
		return true
	}
	s.log.Debug("sweep done", "took", time.Since(start))
	return true
}

// Start ticks every interval until ctx is done. It blocks; run it in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go s.Tick(ctx)
		}
	}
}

// Stats reports completed and dropped ticks.
func (s *Sweeper) Stats() (ticks, skipped int64) {
	return s.ticks.Load(), s.skipped.Load()
}
