// Package engine implements the weather-alert evaluation core: per-plant
// sensitivity evaluation, dedup and escalation decisions, audit log and
// notification writes, garden status aggregation, and the sweep that ties
// them together.
package engine

import (
	"gardenkeep/internal/types"
)

// Evaluator checks a plant's configured sensitivities against a weather
// snapshot and returns the triggers that currently hold. It is stateless
// and safe for concurrent use.
type Evaluator struct {
	clock types.Clock
}

// NewEvaluator creates an Evaluator. The clock gates the frost-window check.
func NewEvaluator(clock types.Clock) *Evaluator {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Evaluator{clock: clock}
}

// Evaluate returns one trigger per enabled sensitivity whose threshold
// condition holds. All comparators are inclusive (>=). A plant with no
// sensitivities produces no triggers; callers use HasSensitivities to skip
// such plants before fetching weather at all. Output order follows
// types.AllAlertKinds but carries no meaning.
func (e *Evaluator) Evaluate(plant *types.Plant, w *types.Weather) []types.Trigger {
	s := plant.Sensitivities
	if s == nil {
		return nil
	}

	var triggers []types.Trigger
	for _, kind := range types.AllAlertKinds {
		cfg := s.ForKind(kind)
		if cfg == nil || !cfg.Enabled {
			continue
		}
		if severity, ok := e.check(kind, cfg, s, w); ok {
			triggers = append(triggers, types.Trigger{Kind: kind, Severity: severity})
		}
	}
	return triggers
}

// check applies the kind-specific comparator and returns the severity on
// that kind's axis when the sensitivity fires.
func (e *Evaluator) check(kind types.AlertKind, cfg *types.Sensitivity, s *types.Sensitivities, w *types.Weather) (float64, bool) {
	switch kind {
	case types.AlertHeat:
		if w.Temperature >= cfg.Threshold {
			return w.Temperature, true
		}
	case types.AlertFrost:
		if w.HasFrostAlert && s.FrostWindow.Contains(e.clock.Now()) {
			return 1, true
		}
	case types.AlertWind:
		if w.WindSpeed >= cfg.Threshold {
			return w.WindSpeed, true
		}
	case types.AlertDrought:
		if float64(w.DaysWithoutRain) >= cfg.Threshold {
			return float64(w.DaysWithoutRain), true
		}
	case types.AlertFlood:
		if w.HasFloodAlert {
			return 1, true
		}
	case types.AlertHeavyRain:
		if w.Precipitation != nil && *w.Precipitation >= cfg.Threshold {
			return *w.Precipitation, true
		}
	}
	return 0, false
}

// HasSensitivities reports whether the plant has any enabled sensitivity.
// Plants without one are skipped entirely by the sweep: no weather fetch,
// no log, no notification.
func HasSensitivities(plant *types.Plant) bool {
	s := plant.Sensitivities
	if s == nil {
		return false
	}
	for _, kind := range types.AllAlertKinds {
		if cfg := s.ForKind(kind); cfg != nil && cfg.Enabled {
			return true
		}
	}
	return false
}
