package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"gardenkeep/internal/types"
)

// WeatherClientConfig holds the configuration for creating a WeatherHTTPClient.
type WeatherClientConfig struct {
	// GeocodeBaseURL resolves "{base}/us/{zipcode}" to coordinates.
	GeocodeBaseURL string
	// ForecastBaseURL serves "{base}/points/{lat},{lon}" lookups.
	ForecastBaseURL string
	UserAgent       string
	Clock           types.Clock
	Logger          *slog.Logger
}

// WeatherHTTPClient resolves a postal code to current weather conditions in
// three hops: zipcode -> coordinates, coordinates -> forecast endpoint,
// forecast endpoint -> first ("current") period. All hops go through the
// BaseClient resilience layer; any failure surfaces as a typed AppError the
// sweep treats as a per-plant evaluation failure.
type WeatherHTTPClient struct {
	base        *BaseClient
	geocodeBase string
	pointsBase  string
	clock       types.Clock
	logger      *slog.Logger
}

// NewWeatherClient creates a WeatherHTTPClient. The httpClient timeout
// should cover a single hop, not the whole chain.
func NewWeatherClient(httpClient *http.Client, cfg WeatherClientConfig) *WeatherHTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &WeatherHTTPClient{
		base:        NewBaseClient(httpClient, "weather", DefaultRetryPolicy(), cfg.UserAgent),
		geocodeBase: strings.TrimSuffix(cfg.GeocodeBaseURL, "/"),
		pointsBase:  strings.TrimSuffix(cfg.ForecastBaseURL, "/"),
		clock:       clock,
		logger:      logger,
	}
}

// NewWeatherClientWithBase creates a WeatherHTTPClient with a pre-configured
// BaseClient, useful in tests to disable retries and sleeps.
func NewWeatherClientWithBase(base *BaseClient, cfg WeatherClientConfig) *WeatherHTTPClient {
	c := NewWeatherClient(http.DefaultClient, cfg)
	c.base = base
	return c
}

// geocodeResponse is the subset of the zippopotam.us payload we read.
type geocodeResponse struct {
	Places []struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// pointsResponse is the subset of the points lookup payload we read.
type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

// forecastResponse is the subset of the forecast payload we read. Only the
// first period ("current conditions") is consumed.
type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Temperature                int    `json:"temperature"`
	TemperatureUnit            string `json:"temperatureUnit"`
	WindSpeed                  string `json:"windSpeed"`
	ShortForecast              string `json:"shortForecast"`
	DetailedForecast           string `json:"detailedForecast"`
	ProbabilityOfPrecipitation struct {
		Value *float64 `json:"value"`
	} `json:"probabilityOfPrecipitation"`
	RelativeHumidity struct {
		Value *float64 `json:"value"`
	} `json:"relativeHumidity"`
}

// FetchCurrent resolves the postal code and returns a normalized Weather
// snapshot for the current forecast period.
func (c *WeatherHTTPClient) FetchCurrent(ctx context.Context, zipcode string) (*types.Weather, error) {
	lat, lon, err := c.geocode(ctx, zipcode)
	if err != nil {
		return nil, err
	}

	forecastURL, err := c.resolveForecastURL(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	period, err := c.fetchCurrentPeriod(ctx, forecastURL)
	if err != nil {
		return nil, err
	}

	return c.normalize(period), nil
}

// geocode resolves a postal code to coordinates.
func (c *WeatherHTTPClient) geocode(ctx context.Context, zipcode string) (string, string, error) {
	var payload geocodeResponse
	url := fmt.Sprintf("%s/us/%s", c.geocodeBase, zipcode)
	status, err := c.getJSON(ctx, url, &payload)
	if err != nil {
		return "", "", err
	}
	if status == http.StatusNotFound {
		return "", "", types.NewAppError(types.ErrCodeValidationZipcode,
			fmt.Sprintf("postal code %q not found", zipcode), nil)
	}
	if status != http.StatusOK || len(payload.Places) == 0 {
		return "", "", types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("geocode lookup failed for %q (status %d)", zipcode, status), nil)
	}
	return payload.Places[0].Latitude, payload.Places[0].Longitude, nil
}

// resolveForecastURL maps coordinates to the location's forecast endpoint.
func (c *WeatherHTTPClient) resolveForecastURL(ctx context.Context, lat, lon string) (string, error) {
	var payload pointsResponse
	url := fmt.Sprintf("%s/points/%s,%s", c.pointsBase, lat, lon)
	status, err := c.getJSON(ctx, url, &payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || payload.Properties.Forecast == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("point lookup failed (status %d)", status), nil)
	}
	return payload.Properties.Forecast, nil
}

// fetchCurrentPeriod retrieves the forecast and extracts the first period.
func (c *WeatherHTTPClient) fetchCurrentPeriod(ctx context.Context, forecastURL string) (*forecastPeriod, error) {
	var payload forecastResponse
	status, err := c.getJSON(ctx, forecastURL, &payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || len(payload.Properties.Periods) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("forecast fetch returned no periods (status %d)", status), nil)
	}
	return &payload.Properties.Periods[0], nil
}

// frostPattern and floodPattern detect alert conditions in forecast text.
var (
	frostPattern = regexp.MustCompile(`(?i)\b(frost|freez)`)
	floodPattern = regexp.MustCompile(`(?i)\bflood`)
	windPattern  = regexp.MustCompile(`\d+`)
)

// normalize converts a provider forecast period into the engine's Weather
// value type.
func (c *WeatherHTTPClient) normalize(p *forecastPeriod) *types.Weather {
	conditions := p.ShortForecast
	text := p.ShortForecast + " " + p.DetailedForecast

	temp := float64(p.Temperature)
	if strings.EqualFold(p.TemperatureUnit, "C") {
		temp = temp*9/5 + 32
	}

	w := &types.Weather{
		Temperature:   temp,
		WindSpeed:     parseWindSpeed(p.WindSpeed),
		Precipitation: p.ProbabilityOfPrecipitation.Value,
		Conditions:    conditions,
		HasFrostAlert: temp <= 32 || frostPattern.MatchString(text),
		HasFloodAlert: floodPattern.MatchString(text),
		// The provider has no dry-spell signal; see Weather.DaysWithoutRain.
		DaysWithoutRain: 0,
		ObservedAt:      c.clock.Now(),
	}
	if p.RelativeHumidity.Value != nil {
		w.Humidity = *p.RelativeHumidity.Value
	}
	return w
}

// parseWindSpeed extracts the highest value from strings like "10 mph" or
// "10 to 20 mph". Returns 0 when no number is present.
func parseWindSpeed(s string) float64 {
	var speed float64
	for _, m := range windPattern.FindAllString(s, -1) {
		if v, err := strconv.ParseFloat(m, 64); err == nil && v > speed {
			speed = v
		}
	}
	return speed
}

// getJSON performs a GET through the resilience layer and decodes the JSON
// body. The HTTP status is returned so callers can distinguish 404s from
// other non-2xx outcomes; decode errors on non-2xx bodies are ignored.
func (c *WeatherHTTPClient) getJSON(ctx context.Context, url string, dest any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return resp.StatusCode, types.NewAppError(types.ErrCodeUpstreamWeather,
			"failed to decode weather response", err)
	}
	return resp.StatusCode, nil
}
