package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// AlertDetail is the kind-specific payload carried in notification and log
// meta. Each alert kind has exactly one detail type, so a switch over the
// implementations covers the full AlertKind enumeration.
type AlertDetail interface {
	DetailKind() AlertKind
}

// HeatDetail carries the temperature that crossed the heat threshold.
type HeatDetail struct {
	Temperature float64 `json:"temperature"`
}

func (HeatDetail) DetailKind() AlertKind { return AlertHeat }

// FrostDetail is presence-only; frost severity is always 1.
type FrostDetail struct{}

func (FrostDetail) DetailKind() AlertKind { return AlertFrost }

// WindDetail carries the wind speed that crossed the wind threshold.
type WindDetail struct {
	WindSpeed float64 `json:"wind_speed"`
}

func (WindDetail) DetailKind() AlertKind { return AlertWind }

// DroughtDetail carries the consecutive dry-day count.
type DroughtDetail struct {
	DaysWithoutRain int `json:"days_without_rain"`
}

func (DroughtDetail) DetailKind() AlertKind { return AlertDrought }

// FloodDetail is presence-only; flood severity is always 1.
type FloodDetail struct{}

func (FloodDetail) DetailKind() AlertKind { return AlertFlood }

// HeavyRainDetail carries the precipitation value that crossed the threshold.
type HeavyRainDetail struct {
	Precipitation float64 `json:"precipitation"`
}

func (HeavyRainDetail) DetailKind() AlertKind { return AlertHeavyRain }

// DetailFor builds the kind-specific detail from a weather snapshot.
func DetailFor(kind AlertKind, w *Weather) (AlertDetail, error) {
	switch kind {
	case AlertHeat:
		return HeatDetail{Temperature: w.Temperature}, nil
	case AlertFrost:
		return FrostDetail{}, nil
	case AlertWind:
		return WindDetail{WindSpeed: w.WindSpeed}, nil
	case AlertDrought:
		return DroughtDetail{DaysWithoutRain: w.DaysWithoutRain}, nil
	case AlertFlood:
		return FloodDetail{}, nil
	case AlertHeavyRain:
		var p float64
		if w.Precipitation != nil {
			p = *w.Precipitation
		}
		return HeavyRainDetail{Precipitation: p}, nil
	default:
		return nil, fmt.Errorf("unknown alert kind %q", kind)
	}
}

// AlertMeta is the structured meta attached to notifications and log entries.
// Kind and Detail form a tagged union over the alert kinds; Weather keeps a
// raw snapshot for display. WEATHER_CHECK records carry an empty Kind and a
// nil Detail.
type AlertMeta struct {
	PlantID   string      `json:"plant_id"`
	Kind      AlertKind   `json:"alert_type,omitempty"`
	Severity  float64     `json:"severity,omitempty"`
	Date      string      `json:"date,omitempty"`
	Detail    AlertDetail `json:"-"`
	Weather   *Weather    `json:"weather_info,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// metaWire is the serialized shape of AlertMeta. Detail is carried as raw
// JSON under "detail" and decoded by Kind.
type metaWire struct {
	PlantID   string          `json:"plant_id"`
	Kind      AlertKind       `json:"alert_type,omitempty"`
	Severity  float64         `json:"severity,omitempty"`
	Date      string          `json:"date,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	Weather   *Weather        `json:"weather_info,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m AlertMeta) MarshalJSON() ([]byte, error) {
	wire := metaWire{
		PlantID:   m.PlantID,
		Kind:      m.Kind,
		Severity:  m.Severity,
		Date:      m.Date,
		Weather:   m.Weather,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Detail != nil {
		if m.Detail.DetailKind() != m.Kind {
			return nil, fmt.Errorf("meta detail kind %q does not match alert kind %q",
				m.Detail.DetailKind(), m.Kind)
		}
		raw, err := json.Marshal(m.Detail)
		if err != nil {
			return nil, err
		}
		wire.Detail = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *AlertMeta) UnmarshalJSON(data []byte) error {
	var wire metaWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.PlantID = wire.PlantID
	m.Kind = wire.Kind
	m.Severity = wire.Severity
	m.Date = wire.Date
	m.Weather = wire.Weather
	m.UpdatedAt = wire.UpdatedAt
	m.Detail = nil

	if len(wire.Detail) == 0 || wire.Kind == "" {
		return nil
	}

	detail, err := decodeDetail(wire.Kind, wire.Detail)
	if err != nil {
		return err
	}
	m.Detail = detail
	return nil
}

// decodeDetail decodes the raw detail payload into the concrete type for
// the given kind.
func decodeDetail(kind AlertKind, raw json.RawMessage) (AlertDetail, error) {
	switch kind {
	case AlertHeat:
		var d HeatDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertFrost:
		var d FrostDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertWind:
		var d WindDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertDrought:
		var d DroughtDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertFlood:
		var d FloodDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertHeavyRain:
		var d HeavyRainDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown alert kind %q in meta detail", kind)
	}
}
