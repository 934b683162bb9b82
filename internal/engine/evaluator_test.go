package engine

import (
	"testing"
	"time"

	"gardenkeep/internal/types"
)

// fakeClock returns a fixed time for deterministic frost-window checks.
type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

func enabled(threshold float64) *types.Sensitivity {
	return &types.Sensitivity{Enabled: true, Threshold: threshold}
}

func plantWith(s *types.Sensitivities) *types.Plant {
	return &types.Plant{
		ID:            "plant_1",
		UserID:        "user_1",
		GardenID:      "garden_1",
		Name:          "Tomato",
		Sensitivities: s,
	}
}

func TestEvaluate_HeatThresholdInclusive(t *testing.T) {
	e := NewEvaluator(fakeClock{now: time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)})
	plant := plantWith(&types.Sensitivities{Heat: enabled(95)})

	triggers := e.Evaluate(plant, &types.Weather{Temperature: 95})
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger at exact threshold, got %d", len(triggers))
	}
	if triggers[0].Kind != types.AlertHeat {
		t.Errorf("expected heat trigger, got %s", triggers[0].Kind)
	}
	if triggers[0].Severity != 95 {
		t.Errorf("expected severity 95, got %v", triggers[0].Severity)
	}

	triggers = e.Evaluate(plant, &types.Weather{Temperature: 94.9})
	if len(triggers) != 0 {
		t.Fatalf("expected no triggers below threshold, got %d", len(triggers))
	}
}

func TestEvaluate_FrostRequiresAlertAndWindow(t *testing.T) {
	january := time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)
	july := time.Date(2026, 7, 10, 6, 0, 0, 0, time.UTC)

	window := &types.FrostWindow{
		StartMonth: time.October, StartDay: 15,
		EndMonth: time.April, EndDay: 30,
	}
	sens := &types.Sensitivities{Frost: enabled(0), FrostWindow: window}

	inSeason := NewEvaluator(fakeClock{now: january})
	triggers := inSeason.Evaluate(plantWith(sens), &types.Weather{Temperature: 28, HasFrostAlert: true})
	if len(triggers) != 1 || triggers[0].Kind != types.AlertFrost {
		t.Fatalf("expected frost trigger in season, got %v", triggers)
	}
	if triggers[0].Severity != 1 {
		t.Errorf("frost severity should be 1, got %v", triggers[0].Severity)
	}

	// Same weather out of season: window suppresses the trigger.
	outOfSeason := NewEvaluator(fakeClock{now: july})
	triggers = outOfSeason.Evaluate(plantWith(sens), &types.Weather{Temperature: 28, HasFrostAlert: true})
	if len(triggers) != 0 {
		t.Fatalf("expected no frost trigger out of season, got %v", triggers)
	}

	// In season but no frost signal in the weather.
	triggers = inSeason.Evaluate(plantWith(sens), &types.Weather{Temperature: 50})
	if len(triggers) != 0 {
		t.Fatalf("expected no frost trigger without frost conditions, got %v", triggers)
	}
}

func TestEvaluate_FrostNilWindowMeansAlways(t *testing.T) {
	e := NewEvaluator(fakeClock{now: time.Date(2026, 7, 10, 6, 0, 0, 0, time.UTC)})
	sens := &types.Sensitivities{Frost: enabled(0)}

	triggers := e.Evaluate(plantWith(sens), &types.Weather{HasFrostAlert: true})
	if len(triggers) != 1 {
		t.Fatalf("expected frost trigger with nil window, got %v", triggers)
	}
}

func TestEvaluate_WindAndHeavyRain(t *testing.T) {
	e := NewEvaluator(fakeClock{now: time.Now()})
	precip := 80.0
	sens := &types.Sensitivities{
		Wind:      enabled(25),
		HeavyRain: enabled(70),
	}

	triggers := e.Evaluate(plantWith(sens), &types.Weather{WindSpeed: 30, Precipitation: &precip})
	if len(triggers) != 2 {
		t.Fatalf("expected wind and heavy rain triggers, got %v", triggers)
	}

	// Nil precipitation never fires heavy rain, even with a zero threshold.
	sens = &types.Sensitivities{HeavyRain: enabled(0)}
	triggers = e.Evaluate(plantWith(sens), &types.Weather{})
	if len(triggers) != 0 {
		t.Fatalf("expected no heavy rain trigger with nil precipitation, got %v", triggers)
	}
}

func TestEvaluate_DroughtOnlyFiresAtZeroThreshold(t *testing.T) {
	// The provider cannot report dry-day streaks, so DaysWithoutRain is
	// always 0 and only a zero threshold can fire.
	e := NewEvaluator(fakeClock{now: time.Now()})

	triggers := e.Evaluate(plantWith(&types.Sensitivities{Drought: enabled(7)}), &types.Weather{})
	if len(triggers) != 0 {
		t.Fatalf("expected no drought trigger, got %v", triggers)
	}

	triggers = e.Evaluate(plantWith(&types.Sensitivities{Drought: enabled(0)}), &types.Weather{})
	if len(triggers) != 1 {
		t.Fatalf("expected drought trigger at zero threshold, got %v", triggers)
	}
}

func TestEvaluate_DisabledAndNilSensitivities(t *testing.T) {
	e := NewEvaluator(fakeClock{now: time.Now()})

	if got := e.Evaluate(plantWith(nil), &types.Weather{Temperature: 120}); got != nil {
		t.Fatalf("expected nil triggers for nil sensitivities, got %v", got)
	}

	sens := &types.Sensitivities{Heat: &types.Sensitivity{Enabled: false, Threshold: 50}}
	if got := e.Evaluate(plantWith(sens), &types.Weather{Temperature: 120}); len(got) != 0 {
		t.Fatalf("expected no triggers for disabled sensitivity, got %v", got)
	}
}

func TestHasSensitivities(t *testing.T) {
	if HasSensitivities(plantWith(nil)) {
		t.Error("nil sensitivities should report false")
	}
	if HasSensitivities(plantWith(&types.Sensitivities{})) {
		t.Error("empty sensitivities should report false")
	}
	disabled := &types.Sensitivities{Heat: &types.Sensitivity{Enabled: false}}
	if HasSensitivities(plantWith(disabled)) {
		t.Error("all-disabled sensitivities should report false")
	}
	if !HasSensitivities(plantWith(&types.Sensitivities{Flood: enabled(0)})) {
		t.Error("one enabled sensitivity should report true")
	}
}
