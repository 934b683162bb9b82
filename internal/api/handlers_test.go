package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardenkeep/internal/config"
	"gardenkeep/internal/types"
)

type mockGardenStore struct {
	gardens map[string]*types.Garden
	err     error
}

func (m *mockGardenStore) Get(_ context.Context, id string) (*types.Garden, error) {
	if m.err != nil {
		return nil, m.err
	}
	g, ok := m.gardens[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundGarden, "garden not found", nil)
	}
	return g, nil
}

type mockAlertStore struct {
	alerts []*types.Notification
	since  time.Time
	err    error
}

func (m *mockAlertStore) ListAlertsForGarden(_ context.Context, _ string, since time.Time) ([]*types.Notification, error) {
	m.since = since
	return m.alerts, m.err
}

type mockSweepTrigger struct {
	accepted bool
	calls    int
}

func (m *mockSweepTrigger) TriggerAsync(_ context.Context) bool {
	m.calls++
	return m.accepted
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Engine: config.EngineConfig{DedupWindow: 12 * time.Hour},
	}
}

func testServer(t *testing.T, gardens *mockGardenStore, alerts *mockAlertStore, sweeps SweepTrigger) *Server {
	t.Helper()
	s, err := NewServer(ServerConfig{
		Config:  testConfig(),
		Gardens: gardens,
		Alerts:  alerts,
		Sweeps:  sweeps,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:   fakeClock{now: testNow},
	})
	require.NoError(t, err)
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandleGardenAlerts(t *testing.T) {
	garden := &types.Garden{ID: "garden_1", UserID: "user_1", Name: "Backyard", Zipcode: "97210"}
	notif := &types.Notification{
		ID:     "notif_1",
		UserID: "user_1",
		Type:   types.NotificationWeatherAlert,
		Title:  "⚠️ Weather Alert: Heat for Tomato",
	}

	t.Run("returns alerts within the dedup window", func(t *testing.T) {
		alerts := &mockAlertStore{alerts: []*types.Notification{notif}}
		s := testServer(t, &mockGardenStore{gardens: map[string]*types.Garden{"garden_1": garden}}, alerts, nil)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gardens/garden_1/alerts", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				GardenID string                `json:"garden_id"`
				Alerts   []*types.Notification `json:"alerts"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "garden_1", resp.Data.GardenID)
		require.Len(t, resp.Data.Alerts, 1)
		assert.Equal(t, "notif_1", resp.Data.Alerts[0].ID)

		// The listing cutoff is exactly one dedup window before now.
		assert.True(t, alerts.since.Equal(testNow.Add(-12*time.Hour)),
			"since = %v, want %v", alerts.since, testNow.Add(-12*time.Hour))
	})

	t.Run("empty list serializes as an array", func(t *testing.T) {
		s := testServer(t, &mockGardenStore{gardens: map[string]*types.Garden{"garden_1": garden}}, &mockAlertStore{}, nil)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gardens/garden_1/alerts", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"alerts":[]`)
	})

	t.Run("unknown garden is 404", func(t *testing.T) {
		s := testServer(t, &mockGardenStore{gardens: map[string]*types.Garden{}}, &mockAlertStore{}, nil)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gardens/nope/alerts", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, string(types.ErrCodeNotFoundGarden), decodeError(t, rec).Code)
	})
}

func TestHandleGardenStatus(t *testing.T) {
	checked := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	garden := &types.Garden{
		ID:   "garden_1",
		Name: "Backyard",
		WeatherStatus: types.WeatherStatus{
			HasAlerts:   true,
			AlertCount:  2,
			LastChecked: checked,
		},
	}
	s := testServer(t, &mockGardenStore{gardens: map[string]*types.Garden{"garden_1": garden}}, &mockAlertStore{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gardens/garden_1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data gardenStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Backyard", resp.Data.Name)
	assert.True(t, resp.Data.WeatherStatus.HasAlerts)
	assert.Equal(t, 2, resp.Data.WeatherStatus.AlertCount)
	assert.True(t, resp.Data.WeatherStatus.LastChecked.Equal(checked))
}

func TestHandleTriggerSweep(t *testing.T) {
	gardens := &mockGardenStore{gardens: map[string]*types.Garden{}}

	t.Run("accepted", func(t *testing.T) {
		trigger := &mockSweepTrigger{accepted: true}
		s := testServer(t, gardens, &mockAlertStore{}, trigger)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sweeps", nil))

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, trigger.calls)
	})

	t.Run("conflict while running", func(t *testing.T) {
		trigger := &mockSweepTrigger{accepted: false}
		s := testServer(t, gardens, &mockAlertStore{}, trigger)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sweeps", nil))

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, string(types.ErrCodeConflictSweepRunning), decodeError(t, rec).Code)
	})
}

func TestRequestIDPropagation(t *testing.T) {
	s := testServer(t, &mockGardenStore{gardens: map[string]*types.Garden{}}, &mockAlertStore{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/gardens/nope/status", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-abc", decodeError(t, rec).RequestID)
}

func TestHandleHealth(t *testing.T) {
	t.Run("no probes", func(t *testing.T) {
		s := testServer(t, &mockGardenStore{gardens: map[string]*types.Garden{}}, &mockAlertStore{}, nil)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("failing probe", func(t *testing.T) {
		s := testServer(t, &mockGardenStore{gardens: map[string]*types.Garden{}}, &mockAlertStore{}, nil)
		s.Probes = []HealthProbe{failingProbe{}}

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "database")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("serves the registry when configured", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "sweeps_run_total"})
		registry.MustRegister(counter)
		counter.Inc()

		s, err := NewServer(ServerConfig{
			Config:   testConfig(),
			Gardens:  &mockGardenStore{},
			Alerts:   &mockAlertStore{},
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
			Registry: registry,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "sweeps_run_total 1")
	})

	t.Run("not mounted without a registry", func(t *testing.T) {
		s := testServer(t, &mockGardenStore{}, &mockAlertStore{}, nil)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type failingProbe struct{}

func (failingProbe) Name() string { return "database" }

func (failingProbe) Check(context.Context) error {
	return context.DeadlineExceeded
}
