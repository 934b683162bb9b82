// Package main runs a single weather sweep and exits. Intended for cron
// setups and operational reruns; the long-running daemon in cmd/alert-engine
// schedules sweeps itself. Exit code 0 on success, 1 on failure, including
// when another worker holds the sweep lock.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"gardenkeep/internal/config"
	"gardenkeep/internal/db"
	"gardenkeep/internal/engine"
	"gardenkeep/internal/external"
	"gardenkeep/internal/types"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sweep failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})).
		With("service", cfg.Service)
	slog.SetDefault(logger)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

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
		Metrics:     engine.NewMetrics(prometheus.NewRegistry()),
		Clock:       clock,
		Logger:      logger,
		WorkerID:    workerID(),
		Concurrency: cfg.Engine.Concurrency,
	})

	summary, err := sweeper.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("sweep complete",
		"run_id", summary.RunID,
		"plants", summary.Plants,
		"evaluated", summary.Evaluated,
		"skipped", summary.Skipped,
		"alerted", summary.Alerted,
		"failed", summary.Failed,
		"duration", summary.Duration.String(),
	)
	return nil
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
