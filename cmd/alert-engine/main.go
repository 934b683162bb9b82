// Package main is the entrypoint for the alert engine daemon. It wires the
// database pool, weather client, sweep engine, scheduler, and read API, then
// runs until SIGINT or SIGTERM. The scheduler sweeps every configured
// interval; the HTTP server exposes per-garden alert lookups, the manual
// sweep trigger, health, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"gardenkeep/internal/api"
	"gardenkeep/internal/config"
	"gardenkeep/internal/db"
	"gardenkeep/internal/engine"
	"gardenkeep/internal/external"
	"gardenkeep/internal/scheduler"
	"gardenkeep/internal/types"
)

// shutdownTimeout bounds graceful HTTP shutdown after a termination signal.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("alert engine exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("alert engine starting",
		"environment", cfg.Environment,
		"sweep_interval", cfg.Engine.SweepInterval.String(),
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Repositories all share the pool; none hold transactions across calls.
	plantRepo := db.NewPlantRepository(pool)
	gardenRepo := db.NewGardenRepository(pool)
	logRepo := db.NewLogRepository(pool)
	notifRepo := db.NewNotificationRepository(pool)
	alertRepo := db.NewActiveAlertRepository(pool)
	sweepRepo := db.NewSweepRepository(pool)

	weather := external.NewWeatherClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		external.WeatherClientConfig{
			GeocodeBaseURL:  cfg.Weather.GeocodeBaseURL,
			ForecastBaseURL: cfg.Weather.ForecastBaseURL,
			UserAgent:       cfg.Weather.UserAgent,
			Logger:          logger,
		},
	)

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)

	clock := types.RealClock{}
	sweeper := engine.NewSweeper(engine.SweeperConfig{
		Plants:    plantRepo,
		Weather:   weather,
		Evaluator: engine.NewEvaluator(clock),
		Policy:    engine.NewAlertPolicy(alertRepo, cfg.Engine.DedupWindow, logger),
		Writer: engine.NewAlertWriter(engine.AlertWriterConfig{
			Logs:                  logRepo,
			Notifications:         notifRepo,
			ActiveAlerts:          alertRepo,
			DashboardURL:          cfg.Server.DashboardURL,
			AllClearNotifications: cfg.Engine.AllClearNotifications,
			Logger:                logger,
		}),
		Aggregator:  engine.NewAggregator(gardenRepo, logger),
		Runs:        sweepRepo,
		Metrics:     metrics,
		Clock:       clock,
		Logger:      logger,
		WorkerID:    workerID(),
		Concurrency: cfg.Engine.Concurrency,
	})

	sched := scheduler.New(scheduler.Config{
		Runner:   sweeper,
		LastRuns: sweepRepo,
		Interval: cfg.Engine.SweepInterval,
		Clock:    clock,
		Logger:   logger,
		OnSkip:   metrics.SweepsSkipped.Inc,
	})

	server, err := api.NewServer(api.ServerConfig{
		Config:   cfg,
		Gardens:  gardenRepo,
		Alerts:   notifRepo,
		Sweeps:   sched,
		Logger:   logger,
		Clock:    clock,
		Registry: registry,
		Probes:   []api.HealthProbe{dbProbe{pool: pool}},
	})
	if err != nil {
		return fmt.Errorf("building API server: %w", err)
	}

	sched.Start(ctx)
	defer sched.Stop()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}

	logger.Info("alert engine stopped")
	return nil
}

// newLogger builds the process-wide JSON logger at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", cfg.Service)
}

// newPool creates and pings the pgx connection pool.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// workerID identifies this process in the sweep lock table.
func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// dbProbe reports database connectivity for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string { return "database" }

func (p dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
