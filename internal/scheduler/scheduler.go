// Package scheduler drives the periodic weather sweep. The scheduler owns
// its state (Idle or Running) in a single struct with an explicit
// Start/Stop lifecycle, so multiple schedulers (e.g. in tests) never
// interfere through shared globals.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gardenkeep/internal/engine"
	"gardenkeep/internal/types"
)

// SweepRunner executes one full sweep.
type SweepRunner interface {
	Run(ctx context.Context) (*engine.SweepSummary, error)
}

// LastRunStore reports when the last sweep completed, for the startup
// staleness check.
type LastRunStore interface {
	GetLastCompleted(ctx context.Context) (*time.Time, error)
}

// Config holds the configuration for creating a Scheduler.
type Config struct {
	Runner   SweepRunner
	LastRuns LastRunStore
	// Interval is the sweep cadence. Ticks align to interval boundaries
	// from midnight UTC, so a 4h interval fires at hours 0/4/8/12/16/20.
	Interval time.Duration
	Clock    types.Clock
	Logger   *slog.Logger

	// OnSkip is invoked when a tick is skipped because a sweep is already
	// running. Optional; used for metrics.
	OnSkip func()
}

// Scheduler triggers sweeps on a fixed cadence with three guarantees:
// sweeps never overlap (an overdue tick is skipped, not queued), a stale or
// absent last run triggers one immediate sweep at startup, and a sweep
// failure never stops the cadence.
type Scheduler struct {
	runner   SweepRunner
	lastRuns LastRunStore
	interval time.Duration
	clock    types.Clock
	logger   *slog.Logger
	onSkip   func()

	mu      sync.Mutex
	running bool
	started bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 4 * time.Hour
	}
	return &Scheduler{
		runner:   cfg.Runner,
		lastRuns: cfg.LastRuns,
		interval: interval,
		clock:    clock,
		logger:   logger,
		onSkip:   cfg.OnSkip,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the scheduling loop in a goroutine and returns. If no
// prior sweep exists or the last one is older than the interval, one
// immediate sweep runs before the first aligned tick. Calling Start twice
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop terminates the scheduling loop and waits for it to exit. A sweep
// already in flight runs to completion; there is no mid-sweep cancellation.
// Stop on a scheduler that was never started returns immediately.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.doneCh
}

// TriggerAsync starts a sweep outside the cadence and returns immediately.
// The Running claim happens synchronously so the returned bool is accurate;
// the sweep itself runs detached from the caller's context because it
// outlives the triggering request. Used by the manual-trigger endpoint.
func (s *Scheduler) TriggerAsync(ctx context.Context) bool {
	if !s.begin() {
		s.logger.WarnContext(ctx, "sweep already running, rejecting manual trigger")
		if s.onSkip != nil {
			s.onSkip()
		}
		return false
	}

	go func() {
		defer s.end()
		if _, err := s.runner.Run(context.Background()); err != nil {
			s.logger.Error("manual sweep failed", "error", err)
		}
	}()
	return true
}

// loop is the scheduling goroutine.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	if s.startupSweepDue(ctx) {
		s.tryRun(ctx, "startup")
	}

	for {
		now := s.clock.Now()
		next := nextAlignedTick(now, s.interval)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			s.tryRun(ctx, "scheduled")
			s.noteMissedTicks(ctx, next)
		case <-s.stopCh:
			timer.Stop()
			s.logger.InfoContext(ctx, "scheduler stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			s.logger.InfoContext(ctx, "scheduler context cancelled")
			return
		}
	}
}

// startupSweepDue reports whether an immediate sweep should run at process
// start: no completed sweep on record, or the last one is older than the
// interval. Errors reading the record trigger a sweep rather than leaving
// plants unchecked.
func (s *Scheduler) startupSweepDue(ctx context.Context) bool {
	last, err := s.lastRuns.GetLastCompleted(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read last sweep time, sweeping now",
			"error", err,
		)
		return true
	}
	if last == nil {
		s.logger.InfoContext(ctx, "no prior sweep on record, sweeping now")
		return true
	}
	if s.clock.Now().Sub(*last) > s.interval {
		s.logger.InfoContext(ctx, "last sweep is stale, sweeping now",
			"last_completed", last.Format(time.RFC3339),
		)
		return true
	}
	return false
}

// noteMissedTicks logs and counts the interval boundaries that passed while
// the sweep fired at `fired` was still running. The timer is only re-armed
// after a run completes, so an overrunning sweep never sees those ticks
// fire; they are skips all the same and must be visible as such.
func (s *Scheduler) noteMissedTicks(ctx context.Context, fired time.Time) {
	now := s.clock.Now()
	for tick := fired.Add(s.interval); !tick.After(now); tick = tick.Add(s.interval) {
		s.logger.WarnContext(ctx, "sweep overran interval, skipping tick",
			"tick", tick.Format(time.RFC3339),
		)
		if s.onSkip != nil {
			s.onSkip()
		}
	}
}

// tryRun transitions Idle -> Running -> Idle around one sweep. When the
// scheduler is already Running the attempt is skipped entirely and logged;
// skipped ticks are never queued. Returns whether a sweep ran.
func (s *Scheduler) tryRun(ctx context.Context, reason string) bool {
	if !s.begin() {
		s.logger.WarnContext(ctx, "sweep already running, skipping tick",
			"reason", reason,
		)
		if s.onSkip != nil {
			s.onSkip()
		}
		return false
	}
	defer s.end()

	// The sweep isolates per-plant failures internally; an error here means
	// it could not start at all. Either way the cadence continues.
	if _, err := s.runner.Run(ctx); err != nil {
		if errors.Is(err, engine.ErrSweepLockHeld) {
			s.logger.WarnContext(ctx, "sweep lock held elsewhere, skipping",
				"reason", reason,
			)
			if s.onSkip != nil {
				s.onSkip()
			}
			return false
		}
		s.logger.ErrorContext(ctx, "sweep failed",
			"reason", reason,
			"error", err,
		)
		return false
	}
	return true
}

// begin attempts the Idle -> Running transition.
func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// nextAlignedTick returns the next interval boundary strictly after now,
// aligned from midnight UTC. time.Truncate operates on absolute time, so
// any interval dividing 24h aligns to calendar hour boundaries.
func nextAlignedTick(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}
