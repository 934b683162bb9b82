// Package types defines the domain model shared across the gardenkeep alert
// engine: plants, gardens, weather snapshots, notifications, audit logs, and
// the typed errors and enumerations used by every other package.
package types

import "time"

// Sensitivity is one enabled weather threshold on a plant.
type Sensitivity struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"`
	Unit      string  `json:"unit,omitempty"`
}

// FrostWindow restricts frost alerts to a month-day range, typically the
// growing season. The range may wrap the year end (e.g. October through
// April). A nil window means the plant is frost-sensitive year round.
type FrostWindow struct {
	StartMonth time.Month `json:"start_month"`
	StartDay   int        `json:"start_day"`
	EndMonth   time.Month `json:"end_month"`
	EndDay     int        `json:"end_day"`
}

// Contains reports whether the given date falls inside the window,
// ignoring the year.
func (w *FrostWindow) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	day := int(t.Month())*100 + t.Day()
	start := int(w.StartMonth)*100 + w.StartDay
	end := int(w.EndMonth)*100 + w.EndDay
	if start <= end {
		return day >= start && day <= end
	}
	// Wrapping range, e.g. Oct 15 - Apr 30.
	return day >= start || day <= end
}

// Sensitivities is a plant's per-kind alert configuration, stored as a JSONB
// column on plants. A nil *Sensitivities means the plant is not tracked and
// is skipped entirely by the sweep.
type Sensitivities struct {
	Heat      *Sensitivity `json:"heat,omitempty"`
	Frost     *Sensitivity `json:"frost,omitempty"`
	Wind      *Sensitivity `json:"wind,omitempty"`
	Drought   *Sensitivity `json:"drought,omitempty"`
	Flood     *Sensitivity `json:"flood,omitempty"`
	HeavyRain *Sensitivity `json:"heavy_rain,omitempty"`

	// FrostWindow gates frost alerts to a date range when set.
	FrostWindow *FrostWindow `json:"frost_window,omitempty"`
}

// ForKind returns the sensitivity configured for the given alert kind,
// or nil when that kind is not configured.
func (s *Sensitivities) ForKind(k AlertKind) *Sensitivity {
	if s == nil {
		return nil
	}
	switch k {
	case AlertHeat:
		return s.Heat
	case AlertFrost:
		return s.Frost
	case AlertWind:
		return s.Wind
	case AlertDrought:
		return s.Drought
	case AlertFlood:
		return s.Flood
	case AlertHeavyRain:
		return s.HeavyRain
	default:
		return nil
	}
}

// Garden owns plants and carries the postal code used as the weather
// location key. WeatherStatus is written exclusively by the status
// aggregator at the end of each sweep.
type Garden struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"user_id" db:"user_id"`
	Name          string        `json:"name" db:"name"`
	Zipcode       string        `json:"zipcode" db:"zipcode"`
	WeatherStatus WeatherStatus `json:"weather_status" db:"weather_status"`
}

// WeatherStatus is the per-garden sweep summary, stored as JSONB on gardens.
type WeatherStatus struct {
	HasAlerts   bool      `json:"has_alerts"`
	AlertCount  int       `json:"alert_count"`
	LastChecked time.Time `json:"last_checked"`
}

// Plant is the unit of evaluation. The sweep reads plants with their owning
// garden hydrated; all mutation of plants happens in the external CRUD layer.
type Plant struct {
	ID            string         `json:"id" db:"id"`
	UserID        string         `json:"user_id" db:"user_id"`
	GardenID      string         `json:"garden_id" db:"garden_id"`
	Name          string         `json:"name" db:"name"`
	Sensitivities *Sensitivities `json:"sensitivities,omitempty" db:"sensitivities"`

	// Garden is hydrated on sweep reads.
	Garden *Garden `json:"garden,omitempty" db:"-"`
}

// Trigger is the result of one sensitivity firing against current weather.
// Severity is on the kind-specific axis (see AlertKind).
type Trigger struct {
	Kind     AlertKind `json:"kind"`
	Severity float64   `json:"severity"`
}

// Notification is a user-facing alert record. On escalation the title,
// message, and meta are updated in place; ID and CreatedAt are preserved.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Link      string           `json:"link,omitempty" db:"link"`
	Meta      AlertMeta        `json:"meta" db:"meta"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// LogEntry is the durable per-plant audit trail. One entry is written for
// every evaluation that finds a trigger, whether or not the user-facing
// notification was suppressed, and one WEATHER_CHECK entry for all-clear
// checks.
type LogEntry struct {
	ID      string    `json:"id" db:"id"`
	PlantID string    `json:"plant_id" db:"plant_id"`
	Type    LogType   `json:"type" db:"type"`
	Notes   string    `json:"notes" db:"notes"`
	LogDate time.Time `json:"log_date" db:"log_date"`
	Meta    AlertMeta `json:"meta" db:"meta"`
}

// ActiveAlert is the dedup record for one (user, plant, kind) pair. It is
// the explicit identity key for dedup and escalation decisions, replacing
// any reliance on notification message text. TriggeredAt anchors the
// trailing dedup window; it is reset when a fresh notification is created
// after the prior window expired.
type ActiveAlert struct {
	UserID         string    `json:"user_id" db:"user_id"`
	PlantID        string    `json:"plant_id" db:"plant_id"`
	Kind           AlertKind `json:"kind" db:"alert_kind"`
	NotificationID string    `json:"notification_id" db:"notification_id"`
	Severity       float64   `json:"severity" db:"severity"`
	TriggeredAt    time.Time `json:"triggered_at" db:"triggered_at"`
}

// SweepRun records one pass of the scheduler over all plants.
type SweepRun struct {
	ID              string     `json:"id" db:"id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	PlantsEvaluated int        `json:"plants_evaluated" db:"plants_evaluated"`
	PlantsAlerted   int        `json:"plants_alerted" db:"plants_alerted"`
	PlantsFailed    int        `json:"plants_failed" db:"plants_failed"`
}
