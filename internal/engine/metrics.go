package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// sweep engine.
type Metrics struct {
	SweepsRun     prometheus.Counter
	SweepsSkipped prometheus.Counter
	SweepRunning  prometheus.Gauge
	SweepDuration prometheus.Histogram

	PlantsEvaluated prometheus.Counter
	PlantsSkipped   prometheus.Counter
	PlantsFailed    prometheus.Counter

	Triggers  *prometheus.CounterVec // label: kind
	Decisions *prometheus.CounterVec // label: decision={create,escalate,suppress}

	WeatherFetches *prometheus.CounterVec // label: result={hit,miss,error}
}

// NewMetrics creates and registers all sweep metrics with the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests use a
// fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SweepsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "sweeps_run_total",
			Help:      "Total sweeps executed to completion.",
		}),
		SweepsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "sweeps_skipped_total",
			Help:      "Total sweep ticks skipped because a sweep was already running.",
		}),
		SweepRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gardenkeep",
			Name:      "sweep_running",
			Help:      "1 while a sweep is in progress, 0 otherwise.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gardenkeep",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a complete sweep over all plants.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		PlantsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "plants_evaluated_total",
			Help:      "Total plants whose sensitivities were evaluated.",
		}),
		PlantsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "plants_skipped_total",
			Help:      "Total plants skipped for having no sensitivities configured.",
		}),
		PlantsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "plants_failed_total",
			Help:      "Total plants whose evaluation failed (weather or persistence).",
		}),
		Triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "triggers_total",
			Help:      "Sensitivity triggers by alert kind.",
		}, []string{"kind"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "alert_decisions_total",
			Help:      "Dedup decisions by outcome.",
		}, []string{"decision"}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Name:      "weather_fetches_total",
			Help:      "Weather lookups by cache result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.SweepsRun,
		m.SweepsSkipped,
		m.SweepRunning,
		m.SweepDuration,
		m.PlantsEvaluated,
		m.PlantsSkipped,
		m.PlantsFailed,
		m.Triggers,
		m.Decisions,
		m.WeatherFetches,
	)
	return m
}
