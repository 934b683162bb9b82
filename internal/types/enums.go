package types

// AlertKind identifies a weather sensitivity a plant can be configured with.
// The set is closed; severity values are only comparable within one kind
// (degrees F for heat, mph for wind, day counts for drought, and so on).
type AlertKind string

const (
	AlertHeat      AlertKind = "heat"
	AlertFrost     AlertKind = "frost"
	AlertWind      AlertKind = "wind"
	AlertDrought   AlertKind = "drought"
	AlertFlood     AlertKind = "flood"
	AlertHeavyRain AlertKind = "heavy_rain"
)

// AllAlertKinds lists every alert kind in evaluation order.
var AllAlertKinds = []AlertKind{
	AlertHeat,
	AlertFrost,
	AlertWind,
	AlertDrought,
	AlertFlood,
	AlertHeavyRain,
}

// Label returns the human-readable name used in notification titles.
func (k AlertKind) Label() string {
	switch k {
	case AlertHeat:
		return "Heat"
	case AlertFrost:
		return "Frost"
	case AlertWind:
		return "Wind"
	case AlertDrought:
		return "Drought"
	case AlertFlood:
		return "Flood"
	case AlertHeavyRain:
		return "Heavy Rain"
	default:
		return string(k)
	}
}

// LogType identifies the kind of plant audit log entry.
type LogType string

const (
	LogWeatherAlert LogType = "WEATHER_ALERT"
	LogWeatherCheck LogType = "WEATHER_CHECK"
)

// NotificationType identifies the kind of user-facing notification.
type NotificationType string

const (
	NotificationWeatherAlert NotificationType = "WEATHER_ALERT"
	NotificationWeatherCheck NotificationType = "WEATHER_CHECK"
)
