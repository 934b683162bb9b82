package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time assertions that all JSONB column types implement both
// sql.Scanner and driver.Valuer. Scan is on pointer receivers; Value is on
// value receivers.
var (
	_ sql.Scanner   = (*Sensitivities)(nil)
	_ driver.Valuer = Sensitivities{}
	_ sql.Scanner   = (*WeatherStatus)(nil)
	_ driver.Valuer = WeatherStatus{}
	_ sql.Scanner   = (*AlertMeta)(nil)
	_ driver.Valuer = AlertMeta{}
)

// scanJSONB scans a JSONB database value into a Go pointer, handling nil,
// []byte, and string representations.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner for reading the sensitivities column.
func (s *Sensitivities) Scan(value any) error {
	return scanJSONB(s, value)
}

// Value implements driver.Valuer for writing the sensitivities column.
func (s Sensitivities) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for reading the weather_status column.
func (ws *WeatherStatus) Scan(value any) error {
	return scanJSONB(ws, value)
}

// Value implements driver.Valuer for writing the weather_status column.
func (ws WeatherStatus) Value() (driver.Value, error) {
	return json.Marshal(ws)
}

// Scan implements sql.Scanner for reading meta columns.
func (m *AlertMeta) Scan(value any) error {
	return scanJSONB(m, value)
}

// Value implements driver.Valuer for writing meta columns.
func (m AlertMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}
