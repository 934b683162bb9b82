package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gardenkeep/internal/types"
)

type testClock struct {
	now time.Time
}

func (c testClock) Now() time.Time { return c.now }

// newTestWeatherServer serves the full three-hop chain: geocode, point
// lookup, forecast. The forecast period is configurable per test.
func newTestWeatherServer(t *testing.T, period map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/us/97210", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"places":[{"latitude":"45.53","longitude":"-122.70"}]}`)
	})
	mux.HandleFunc("/us/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/points/45.53,-122.70", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"properties":{"forecast":"%s/forecast"}}`, server.URL)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{"properties": map[string]any{"periods": []any{period}}}
		writeJSON(t, w, body)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encoding response: %v", err)
	}
}

func testWeatherClient(serverURL string) *WeatherHTTPClient {
	base := NewBaseClient(http.DefaultClient, "weather-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"test-agent",
		WithSleepFunc(func(time.Duration) {}),
	)
	return NewWeatherClientWithBase(base, WeatherClientConfig{
		GeocodeBaseURL:  serverURL,
		ForecastBaseURL: serverURL,
		Clock:           testClock{now: time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)},
	})
}

func TestFetchCurrent_NormalizesForecast(t *testing.T) {
	server := newTestWeatherServer(t, map[string]any{
		"temperature":                98,
		"temperatureUnit":            "F",
		"windSpeed":                  "10 to 20 mph",
		"shortForecast":              "Sunny and hot",
		"detailedForecast":           "Dangerously hot conditions expected.",
		"probabilityOfPrecipitation": map[string]any{"value": 15.0},
		"relativeHumidity":           map[string]any{"value": 40.0},
	})
	c := testWeatherClient(server.URL)

	w, err := c.FetchCurrent(context.Background(), "97210")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Temperature != 98 {
		t.Errorf("temperature = %v, want 98", w.Temperature)
	}
	if w.WindSpeed != 20 {
		t.Errorf("wind speed should take the range maximum, got %v", w.WindSpeed)
	}
	if w.Precipitation == nil || *w.Precipitation != 15 {
		t.Errorf("precipitation = %v, want 15", w.Precipitation)
	}
	if w.Humidity != 40 {
		t.Errorf("humidity = %v, want 40", w.Humidity)
	}
	if w.Conditions != "Sunny and hot" {
		t.Errorf("conditions = %q", w.Conditions)
	}
	if w.HasFrostAlert || w.HasFloodAlert {
		t.Error("no frost or flood signal expected")
	}
	if w.DaysWithoutRain != 0 {
		t.Errorf("days without rain must be 0, got %d", w.DaysWithoutRain)
	}
	if w.ObservedAt.IsZero() {
		t.Error("observed_at should be stamped")
	}
}

func TestFetchCurrent_FrostDetection(t *testing.T) {
	cases := []struct {
		name   string
		period map[string]any
		want   bool
	}{
		{
			name: "freezing temperature",
			period: map[string]any{
				"temperature": 30, "temperatureUnit": "F",
				"windSpeed": "5 mph", "shortForecast": "Clear",
			},
			want: true,
		},
		{
			name: "frost in forecast text",
			period: map[string]any{
				"temperature": 38, "temperatureUnit": "F",
				"windSpeed": "5 mph", "shortForecast": "Patchy frost overnight",
			},
			want: true,
		},
		{
			name: "freezing rain in detailed text",
			period: map[string]any{
				"temperature": 38, "temperatureUnit": "F",
				"windSpeed": "5 mph", "shortForecast": "Rain",
				"detailedForecast": "Freezing rain possible after midnight.",
			},
			want: true,
		},
		{
			name: "mild conditions",
			period: map[string]any{
				"temperature": 55, "temperatureUnit": "F",
				"windSpeed": "5 mph", "shortForecast": "Partly cloudy",
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestWeatherServer(t, tc.period)
			c := testWeatherClient(server.URL)
			w, err := c.FetchCurrent(context.Background(), "97210")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w.HasFrostAlert != tc.want {
				t.Errorf("HasFrostAlert = %v, want %v", w.HasFrostAlert, tc.want)
			}
		})
	}
}

func TestFetchCurrent_CelsiusConversion(t *testing.T) {
	server := newTestWeatherServer(t, map[string]any{
		"temperature": 35, "temperatureUnit": "C",
		"windSpeed": "5 mph", "shortForecast": "Hot",
	})
	c := testWeatherClient(server.URL)

	w, err := c.FetchCurrent(context.Background(), "97210")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Temperature != 95 {
		t.Errorf("35C should normalize to 95F, got %v", w.Temperature)
	}
}

func TestFetchCurrent_FloodDetection(t *testing.T) {
	server := newTestWeatherServer(t, map[string]any{
		"temperature": 60, "temperatureUnit": "F",
		"windSpeed": "10 mph", "shortForecast": "Heavy rain",
		"detailedForecast": "Flood watch in effect through Tuesday.",
	})
	c := testWeatherClient(server.URL)

	w, err := c.FetchCurrent(context.Background(), "97210")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.HasFloodAlert {
		t.Error("expected flood alert from forecast text")
	}
}

func TestFetchCurrent_UnknownZipcode(t *testing.T) {
	server := newTestWeatherServer(t, map[string]any{})
	c := testWeatherClient(server.URL)

	_, err := c.FetchCurrent(context.Background(), "00000")
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeValidationZipcode {
		t.Errorf("expected %s, got %s", types.ErrCodeValidationZipcode, appErr.Code)
	}
}

func TestParseWindSpeed(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"10 mph", 10},
		{"10 to 20 mph", 20},
		{"calm", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := parseWindSpeed(tc.in); got != tc.want {
			t.Errorf("parseWindSpeed(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
