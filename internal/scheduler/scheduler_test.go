package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gardenkeep/internal/engine"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

// mockRunner counts sweeps and can block until released, to hold the
// scheduler in the Running state from a test.
type mockRunner struct {
	mu      sync.Mutex
	runs    int
	err     error
	block   chan struct{}
	started chan struct{}
}

func newMockRunner() *mockRunner {
	return &mockRunner{started: make(chan struct{}, 16)}
}

func (m *mockRunner) Run(_ context.Context) (*engine.SweepSummary, error) {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	m.started <- struct{}{}
	if m.block != nil {
		<-m.block
	}
	return &engine.SweepSummary{}, m.err
}

func (m *mockRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

type mockLastRuns struct {
	last *time.Time
	err  error
}

func (m *mockLastRuns) GetLastCompleted(_ context.Context) (*time.Time, error) {
	return m.last, m.err
}

func testScheduler(runner *mockRunner, lastRuns *mockLastRuns, clock fakeClock, onSkip func()) *Scheduler {
	return New(Config{
		Runner:   runner,
		LastRuns: lastRuns,
		Interval: 4 * time.Hour,
		Clock:    clock,
		OnSkip:   onSkip,
	})
}

func TestNextAlignedTick(t *testing.T) {
	interval := 4 * time.Hour

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid-interval rounds up",
			now:  time.Date(2026, 7, 15, 13, 30, 0, 0, time.UTC),
			want: time.Date(2026, 7, 15, 16, 0, 0, 0, time.UTC),
		},
		{
			name: "exact boundary advances a full interval",
			now:  time.Date(2026, 7, 15, 16, 0, 0, 0, time.UTC),
			want: time.Date(2026, 7, 15, 20, 0, 0, 0, time.UTC),
		},
		{
			name: "end of day wraps to midnight",
			now:  time.Date(2026, 7, 15, 23, 59, 0, 0, time.UTC),
			want: time.Date(2026, 7, 16, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextAlignedTick(tc.now, interval)
			if !got.Equal(tc.want) {
				t.Errorf("nextAlignedTick(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestStartupSweepDue(t *testing.T) {
	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	clock := fakeClock{now: now}

	t.Run("no prior sweep", func(t *testing.T) {
		s := testScheduler(newMockRunner(), &mockLastRuns{}, clock, nil)
		if !s.startupSweepDue(context.Background()) {
			t.Error("no prior sweep should force a startup sweep")
		}
	})

	t.Run("recent sweep", func(t *testing.T) {
		recent := now.Add(-1 * time.Hour)
		s := testScheduler(newMockRunner(), &mockLastRuns{last: &recent}, clock, nil)
		if s.startupSweepDue(context.Background()) {
			t.Error("a recent sweep should not force a startup sweep")
		}
	})

	t.Run("stale sweep", func(t *testing.T) {
		stale := now.Add(-5 * time.Hour)
		s := testScheduler(newMockRunner(), &mockLastRuns{last: &stale}, clock, nil)
		if !s.startupSweepDue(context.Background()) {
			t.Error("a sweep older than the interval should force a startup sweep")
		}
	})

	t.Run("read error sweeps anyway", func(t *testing.T) {
		s := testScheduler(newMockRunner(), &mockLastRuns{err: errors.New("db down")}, clock, nil)
		if !s.startupSweepDue(context.Background()) {
			t.Error("an unreadable last-run record should force a sweep, not skip one")
		}
	})
}

func TestTryRun_SkipsWhileRunning(t *testing.T) {
	runner := newMockRunner()
	runner.block = make(chan struct{})
	skips := 0
	s := testScheduler(runner, &mockLastRuns{}, fakeClock{now: time.Now()}, func() { skips++ })

	done := make(chan bool)
	go func() {
		done <- s.tryRun(context.Background(), "test")
	}()
	<-runner.started

	if s.tryRun(context.Background(), "overlap") {
		t.Error("overlapping tryRun must be skipped")
	}
	if skips != 1 {
		t.Errorf("expected OnSkip once, got %d", skips)
	}

	close(runner.block)
	if !<-done {
		t.Error("first tryRun should report a completed sweep")
	}
	if runner.count() != 1 {
		t.Errorf("expected exactly one sweep, got %d", runner.count())
	}

	// Once idle again, the next attempt runs.
	runner.block = nil
	if !s.tryRun(context.Background(), "after") {
		t.Error("tryRun should run again once idle")
	}
}

func TestTryRun_LockHeldElsewhereIsSkip(t *testing.T) {
	runner := newMockRunner()
	runner.err = engine.ErrSweepLockHeld
	skips := 0
	s := testScheduler(runner, &mockLastRuns{}, fakeClock{now: time.Now()}, func() { skips++ })

	if s.tryRun(context.Background(), "test") {
		t.Error("a lock held by another worker is a skip, not a run")
	}
	if skips != 1 {
		t.Errorf("expected OnSkip once, got %d", skips)
	}
}

func TestTryRun_FailureDoesNotPanicOrSkipCount(t *testing.T) {
	runner := newMockRunner()
	runner.err = errors.New("sweep exploded")
	skips := 0
	s := testScheduler(runner, &mockLastRuns{}, fakeClock{now: time.Now()}, func() { skips++ })

	if s.tryRun(context.Background(), "test") {
		t.Error("a failed sweep should report false")
	}
	if skips != 0 {
		t.Error("a failure is not a skip")
	}

	// The scheduler must be idle again after a failure.
	runner.err = nil
	if !s.tryRun(context.Background(), "retry") {
		t.Error("scheduler should accept the next run after a failure")
	}
}

func TestTriggerAsync(t *testing.T) {
	runner := newMockRunner()
	runner.block = make(chan struct{})
	s := testScheduler(runner, &mockLastRuns{}, fakeClock{now: time.Now()}, nil)

	if !s.TriggerAsync(context.Background()) {
		t.Fatal("first trigger should be accepted")
	}
	<-runner.started

	if s.TriggerAsync(context.Background()) {
		t.Error("second trigger while running must be rejected")
	}

	close(runner.block)

	// The running flag clears after the detached sweep finishes.
	deadline := time.After(2 * time.Second)
	for {
		if s.TriggerAsync(context.Background()) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduler never returned to idle after async sweep")
		case <-time.After(10 * time.Millisecond):
		}
	}
	<-runner.started
}

func TestStartStop(t *testing.T) {
	runner := newMockRunner()
	recent := time.Now().UTC()
	s := testScheduler(runner, &mockLastRuns{last: &recent}, fakeClock{now: recent}, nil)

	s.Start(context.Background())
	s.Stop()

	// With a recent last run no startup sweep should have fired.
	if runner.count() != 0 {
		t.Errorf("expected no sweeps, got %d", runner.count())
	}
}

func TestStart_RunsStartupSweepWhenStale(t *testing.T) {
	runner := newMockRunner()
	s := testScheduler(runner, &mockLastRuns{}, fakeClock{now: time.Now().UTC()}, nil)

	s.Start(context.Background())
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a startup sweep with no prior run on record")
	}
	s.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	s := testScheduler(newMockRunner(), &mockLastRuns{}, fakeClock{now: time.Now().UTC()}, nil)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a scheduler that was never started")
	}
}

func TestNoteMissedTicks(t *testing.T) {
	fired := time.Date(2026, 7, 15, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		now   time.Time
		skips int
	}{
		{
			name:  "completed before the next boundary",
			now:   time.Date(2026, 7, 15, 10, 30, 0, 0, time.UTC),
			skips: 0,
		},
		{
			name:  "overran one boundary",
			now:   time.Date(2026, 7, 15, 14, 5, 0, 0, time.UTC),
			skips: 1,
		},
		{
			name:  "overran through two boundaries",
			now:   time.Date(2026, 7, 15, 16, 0, 0, 0, time.UTC),
			skips: 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			skips := 0
			s := testScheduler(newMockRunner(), &mockLastRuns{}, fakeClock{now: tc.now}, func() { skips++ })

			s.noteMissedTicks(context.Background(), fired)

			if skips != tc.skips {
				t.Errorf("skipped ticks = %d, want %d", skips, tc.skips)
			}
		})
	}
}
