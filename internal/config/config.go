// Package config defines the global configuration for the gardenkeep alert
// engine. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor principles by strictly
// separating code from configuration; any missing required value or invalid
// format fails the process at startup.
package config

import "time"

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"gardenkeep-alert-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Weather  WeatherConfig
	Engine   EngineConfig
}

// ServerConfig holds the HTTP read-API configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	// DashboardURL is the base for notification deep links (no trailing slash).
	DashboardURL string `envconfig:"DASHBOARD_URL" default:"https://app.gardenkeep.io"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL               string        `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds the weather provider endpoints and HTTP tuning.
type WeatherConfig struct {
	// GeocodeBaseURL resolves postal codes to coordinates.
	GeocodeBaseURL string `envconfig:"WEATHER_GEOCODE_BASE_URL" default:"https://api.zippopotam.us" validate:"required,url"`
	// ForecastBaseURL serves point lookups and forecast periods.
	ForecastBaseURL string        `envconfig:"WEATHER_FORECAST_BASE_URL" default:"https://api.weather.gov" validate:"required,url"`
	Timeout         time.Duration `envconfig:"WEATHER_TIMEOUT" default:"15s"`
	UserAgent       string        `envconfig:"WEATHER_USER_AGENT" default:"GardenKeep/1.0 (alerts@gardenkeep.io)"`
}

// EngineConfig holds sweep cadence, dedup, and concurrency tuning.
type EngineConfig struct {
	// SweepInterval is the cadence between sweeps. Ticks align to interval
	// boundaries from midnight UTC (4h -> hours 0/4/8/12/16/20).
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"4h"`
	// DedupWindow is the trailing window within which repeated triggers for
	// the same (plant, kind) collapse into one notification.
	DedupWindow time.Duration `envconfig:"ALERT_DEDUP_WINDOW" default:"12h"`
	// Concurrency bounds parallel per-plant evaluations within one sweep,
	// which in turn bounds pressure on the weather provider.
	Concurrency int `envconfig:"SWEEP_CONCURRENCY" default:"4" validate:"min=1"`
	// AllClearNotifications enables the informational WEATHER_CHECK
	// notification for checked plants with no triggers.
	AllClearNotifications bool `envconfig:"ALL_CLEAR_NOTIFICATIONS" default:"true"`
}
