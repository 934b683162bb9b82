package engine

import (
	"context"
	"log/slog"
	"time"

	"gardenkeep/internal/types"
)

// Outcome is the per-plant result of one sweep, consumed by the aggregator
// after all evaluations have completed or definitively failed.
type Outcome struct {
	Plant    *types.Plant
	Triggers []types.Trigger
	// Evaluated is false when the plant was skipped (no sensitivities) or
	// its evaluation failed. A failed plant is "could not evaluate", never
	// "all clear".
	Evaluated bool
	Err       error
}

// GardenStatusStore is the subset of the garden repository the aggregator
// needs.
type GardenStatusStore interface {
	UpdateWeatherStatus(ctx context.Context, gardenID string, status types.WeatherStatus) error
}

// Aggregator rolls per-plant outcomes up into per-garden weather status
// summaries. It is the only writer of Garden.WeatherStatus.
type Aggregator struct {
	gardens GardenStatusStore
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(gardens GardenStatusStore, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{gardens: gardens, logger: logger}
}

// Aggregate groups outcomes by garden and writes each garden's summary.
// AlertCount counts plants (not triggers) that fired at least once. Every
// garden owning at least one plant gets a write, including zero-alert
// gardens, to refresh LastChecked. A failed write for one garden is logged
// and does not block the others.
func (a *Aggregator) Aggregate(ctx context.Context, outcomes []Outcome, now time.Time) {
	type gardenTally struct {
		alerted int
	}

	tallies := make(map[string]*gardenTally)
	var order []string

	for _, o := range outcomes {
		if o.Plant == nil || o.Plant.GardenID == "" {
			continue
		}
		t, ok := tallies[o.Plant.GardenID]
		if !ok {
			t = &gardenTally{}
			tallies[o.Plant.GardenID] = t
			order = append(order, o.Plant.GardenID)
		}
		if len(o.Triggers) > 0 {
			t.alerted++
		}
	}

	for _, gardenID := range order {
		t := tallies[gardenID]
		status := types.WeatherStatus{
			HasAlerts:   t.alerted > 0,
			AlertCount:  t.alerted,
			LastChecked: now,
		}
		if err := a.gardens.UpdateWeatherStatus(ctx, gardenID, status); err != nil {
			a.logger.ErrorContext(ctx, "failed to update garden weather status",
				"garden_id", gardenID,
				"error", err,
			)
			continue
		}
	}
}
