package types

import "time"

// Weather is a normalized snapshot of current conditions for one location.
// It is produced fresh by the weather client for each sweep and never
// persisted beyond the meta snapshots embedded in logs and notifications.
type Weather struct {
	// Temperature in degrees Fahrenheit.
	Temperature float64 `json:"temperature"`
	// Humidity as a percentage (0-100). Zero when the provider omits it.
	Humidity float64 `json:"humidity"`
	// WindSpeed in miles per hour.
	WindSpeed float64 `json:"wind_speed"`
	// Precipitation probability/amount for the current period. Nil when the
	// provider reports no precipitation signal at all.
	Precipitation *float64 `json:"precipitation,omitempty"`
	// Conditions is the provider's short textual description.
	Conditions string `json:"conditions"`
	// HasFrostAlert is set when conditions indicate frost or freezing.
	HasFrostAlert bool `json:"has_frost_alert"`
	// HasFloodAlert is set when conditions indicate flooding.
	HasFloodAlert bool `json:"has_flood_alert"`
	// DaysWithoutRain counts consecutive dry days for the location. The
	// current provider cannot supply this, so it is always 0; drought
	// sensitivities therefore only fire with a zero threshold.
	DaysWithoutRain int `json:"days_without_rain"`
	// ObservedAt is when the snapshot was fetched.
	ObservedAt time.Time `json:"observed_at"`
}
