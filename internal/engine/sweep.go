package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gardenkeep/internal/types"
)

// ErrSweepLockHeld is returned when another engine instance holds the sweep
// lock. The scheduler treats it as a skip, not a failure.
var ErrSweepLockHeld = types.NewAppError(types.ErrCodeConflictSweepRunning,
	"sweep lock held by another worker", nil)

// WeatherProvider is the weather client boundary.
type WeatherProvider interface {
	FetchCurrent(ctx context.Context, zipcode string) (*types.Weather, error)
}

// PlantSource is the subset of the plant repository the sweep needs.
type PlantSource interface {
	ListForSweep(ctx context.Context) ([]*types.Plant, error)
}

// SweepRunStore records sweep bookkeeping and guards multi-instance
// deployments with a single-leader lock.
type SweepRunStore interface {
	AcquireLock(ctx context.Context, workerID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, workerID string) error
	StartRun(ctx context.Context, startedAt time.Time) (string, error)
	CompleteRun(ctx context.Context, runID string, completedAt time.Time, evaluated, alerted, failed int) error
}

// SweepSummary reports the outcome of one sweep.
type SweepSummary struct {
	RunID     string        `json:"run_id"`
	Plants    int           `json:"plants"`
	Evaluated int           `json:"evaluated"`
	Skipped   int           `json:"skipped"`
	Alerted   int           `json:"alerted"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// SweeperConfig holds the configuration for creating a Sweeper.
type SweeperConfig struct {
	Plants     PlantSource
	Weather    WeatherProvider
	Evaluator  *Evaluator
	Policy     *AlertPolicy
	Writer     *AlertWriter
	Aggregator *Aggregator
	Runs       SweepRunStore
	Metrics    *Metrics
	Clock      types.Clock
	Logger     *slog.Logger

	// WorkerID identifies this process in the sweep lock.
	WorkerID string
	// Concurrency bounds parallel per-plant evaluations.
	Concurrency int
	// LockTTL bounds how long a crashed worker blocks other instances.
	LockTTL time.Duration
}

// Sweeper executes one full pass over all plants: fetch weather per garden
// location (cached per sweep), evaluate sensitivities, resolve dedup
// decisions, persist logs and notifications, then aggregate garden status.
// Per-plant failures are isolated; only a failure before the plant loop
// starts aborts the sweep.
type Sweeper struct {
	plants     PlantSource
	weather    WeatherProvider
	evaluator  *Evaluator
	policy     *AlertPolicy
	writer     *AlertWriter
	aggregator *Aggregator
	runs       SweepRunStore
	metrics    *Metrics
	clock      types.Clock
	logger     *slog.Logger

	workerID    string
	concurrency int
	lockTTL     time.Duration
}

// NewSweeper creates a Sweeper with the given configuration.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = types.NewID("worker")
	}
	return &Sweeper{
		plants:      cfg.Plants,
		weather:     cfg.Weather,
		evaluator:   cfg.Evaluator,
		policy:      cfg.Policy,
		writer:      cfg.Writer,
		aggregator:  cfg.Aggregator,
		runs:        cfg.Runs,
		metrics:     cfg.Metrics,
		clock:       clock,
		logger:      logger,
		workerID:    workerID,
		concurrency: concurrency,
		lockTTL:     lockTTL,
	}
}

// sweepCache caches weather per zipcode for the lifetime of one sweep, so
// plants sharing a garden hit the provider once. singleflight collapses
// concurrent fetches for the same zipcode.
type sweepCache struct {
	cache *gocache.Cache
	group singleflight.Group
}

// Run executes one sweep. It returns an error only for failures before the
// plant loop starts (lock, plant listing, run bookkeeping); everything past
// that point is isolated per plant and reported in the summary.
func (s *Sweeper) Run(ctx context.Context) (*SweepSummary, error) {
	acquired, err := s.runs.AcquireLock(ctx, s.workerID, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	if !acquired {
		return nil, ErrSweepLockHeld
	}
	defer func() {
		if err := s.runs.ReleaseLock(ctx, s.workerID); err != nil {
			s.logger.ErrorContext(ctx, "failed to release sweep lock", "error", err)
		}
	}()

	started := s.clock.Now()
	runID, err := s.runs.StartRun(ctx, started)
	if err != nil {
		return nil, fmt.Errorf("recording sweep start: %w", err)
	}

	plants, err := s.plants.ListForSweep(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing plants: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SweepRunning.Set(1)
		defer s.metrics.SweepRunning.Set(0)
	}

	s.logger.InfoContext(ctx, "sweep started",
		"run_id", runID,
		"plants", len(plants),
	)

	cache := &sweepCache{cache: gocache.New(s.lockTTL, 0)}
	outcomes := make([]Outcome, len(plants))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, plant := range plants {
		i, plant := i, plant
		g.Go(func() error {
			// Each goroutine owns its index; errors are carried in the
			// outcome and never abort the group.
			outcomes[i] = s.evaluatePlant(gCtx, plant, cache)
			return nil
		})
	}
	// Per-plant errors never propagate, so Wait only orders completion.
	_ = g.Wait()

	// Aggregation runs strictly after every evaluation has completed or
	// definitively failed.
	completed := s.clock.Now()
	s.aggregator.Aggregate(ctx, outcomes, completed)

	summary := s.summarize(runID, outcomes, completed.Sub(started))
	if err := s.runs.CompleteRun(ctx, runID, completed, summary.Evaluated, summary.Alerted, summary.Failed); err != nil {
		s.logger.ErrorContext(ctx, "failed to record sweep completion",
			"run_id", runID,
			"error", err,
		)
	}

	if s.metrics != nil {
		s.metrics.SweepsRun.Inc()
		s.metrics.SweepDuration.Observe(summary.Duration.Seconds())
	}

	s.logger.InfoContext(ctx, "sweep complete",
		"run_id", runID,
		"plants", summary.Plants,
		"evaluated", summary.Evaluated,
		"skipped", summary.Skipped,
		"alerted", summary.Alerted,
		"failed", summary.Failed,
		"duration", summary.Duration.String(),
	)

	return summary, nil
}

// evaluatePlant runs the full pipeline for one plant. All failures are
// captured in the returned Outcome; nothing propagates to the sweep.
func (s *Sweeper) evaluatePlant(ctx context.Context, plant *types.Plant, cache *sweepCache) Outcome {
	outcome := Outcome{Plant: plant}

	// Fast-path exit: untracked plants produce no log and no notification,
	// but still count toward their garden's LastChecked refresh.
	if !HasSensitivities(plant) {
		if s.metrics != nil {
			s.metrics.PlantsSkipped.Inc()
		}
		return outcome
	}

	if plant.Garden == nil || plant.Garden.Zipcode == "" {
		outcome.Err = types.NewAppError(types.ErrCodeValidationMissingField,
			"plant's garden has no zipcode", nil)
		s.logger.WarnContext(ctx, "skipping plant without location",
			"plant_id", plant.ID,
			"garden_id", plant.GardenID,
		)
		if s.metrics != nil {
			s.metrics.PlantsFailed.Inc()
		}
		return outcome
	}

	weather, err := s.fetchWeather(ctx, cache, plant.Garden.Zipcode)
	if err != nil {
		// Could not evaluate, which is not the same as all clear.
		outcome.Err = err
		s.logger.ErrorContext(ctx, "weather fetch failed",
			"plant_id", plant.ID,
			"garden_id", plant.GardenID,
			"zipcode", plant.Garden.Zipcode,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.PlantsFailed.Inc()
		}
		return outcome
	}

	outcome.Evaluated = true
	if s.metrics != nil {
		s.metrics.PlantsEvaluated.Inc()
	}

	now := s.clock.Now()
	triggers := s.evaluator.Evaluate(plant, weather)
	if len(triggers) == 0 {
		if err := s.writer.RecordAllClear(ctx, plant, weather, now); err != nil {
			s.logger.ErrorContext(ctx, "failed to record weather check",
				"plant_id", plant.ID,
				"error", err,
			)
		}
		return outcome
	}

	for _, trigger := range triggers {
		if s.metrics != nil {
			s.metrics.Triggers.WithLabelValues(string(trigger.Kind)).Inc()
		}

		decision, err := s.policy.Resolve(ctx, plant, trigger.Kind, trigger.Severity, now)
		if err != nil {
			outcome.Err = err
			s.logger.ErrorContext(ctx, "failed to resolve alert decision",
				"plant_id", plant.ID,
				"kind", string(trigger.Kind),
				"error", err,
			)
			continue
		}
		if s.metrics != nil {
			s.metrics.Decisions.WithLabelValues(string(decision.Kind)).Inc()
		}

		if err := s.writer.Record(ctx, plant, trigger.Kind, weather, trigger.Severity, decision, now); err != nil {
			outcome.Err = err
			s.logger.ErrorContext(ctx, "failed to persist alert",
				"plant_id", plant.ID,
				"kind", string(trigger.Kind),
				"error", err,
			)
			continue
		}

		// Only fully recorded triggers count toward the garden summary.
		outcome.Triggers = append(outcome.Triggers, trigger)
	}

	return outcome
}

// fetchWeather returns the cached snapshot for a zipcode or fetches one,
// collapsing concurrent fetches for the same location.
func (s *Sweeper) fetchWeather(ctx context.Context, cache *sweepCache, zipcode string) (*types.Weather, error) {
	if cached, ok := cache.cache.Get(zipcode); ok {
		if s.metrics != nil {
			s.metrics.WeatherFetches.WithLabelValues("hit").Inc()
		}
		return cached.(*types.Weather), nil
	}

	v, err, _ := cache.group.Do(zipcode, func() (any, error) {
		w, err := s.weather.FetchCurrent(ctx, zipcode)
		if err != nil {
			return nil, err
		}
		cache.cache.Set(zipcode, w, gocache.DefaultExpiration)
		return w, nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.WeatherFetches.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.WeatherFetches.WithLabelValues("miss").Inc()
	}
	return v.(*types.Weather), nil
}

// summarize folds outcomes into a SweepSummary.
func (s *Sweeper) summarize(runID string, outcomes []Outcome, duration time.Duration) *SweepSummary {
	summary := &SweepSummary{
		RunID:    runID,
		Plants:   len(outcomes),
		Duration: duration,
	}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			summary.Failed++
		case o.Evaluated:
			summary.Evaluated++
		default:
			summary.Skipped++
		}
		if len(o.Triggers) > 0 {
			summary.Alerted++
		}
	}
	return summary
}
