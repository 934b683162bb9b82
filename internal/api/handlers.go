package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gardenkeep/internal/types"
)

// gardenAlertsResponse is the payload for GET /v1/gardens/{gardenID}/alerts.
type gardenAlertsResponse struct {
	GardenID string                `json:"garden_id"`
	Alerts   []*types.Notification `json:"alerts"`
}

// gardenStatusResponse is the payload for GET /v1/gardens/{gardenID}/status.
type gardenStatusResponse struct {
	GardenID      string              `json:"garden_id"`
	Name          string              `json:"name"`
	WeatherStatus types.WeatherStatus `json:"weather_status"`
}

// HandleGardenAlerts returns the notifications backing the garden's active
// alerts, restricted to the dedup window so expired alerts age out of the
// listing without an explicit cleanup read.
func (s *Server) HandleGardenAlerts(w http.ResponseWriter, r *http.Request) {
	gardenID := chi.URLParam(r, "gardenID")
	if gardenID == "" {
		Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"gardenID path parameter is required",
			nil,
		))
		return
	}

	// Existence check first so a bad ID yields 404, not an empty list.
	garden, err := s.Gardens.Get(r.Context(), gardenID)
	if err != nil {
		Error(w, r, err)
		return
	}

	since := s.Clock.Now().Add(-s.Config.Engine.DedupWindow)
	alerts, err := s.Alerts.ListAlertsForGarden(r.Context(), garden.ID, since)
	if err != nil {
		Error(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []*types.Notification{}
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: gardenAlertsResponse{
		GardenID: garden.ID,
		Alerts:   alerts,
	}})
}

// HandleGardenStatus returns the garden's aggregated weather status as
// written by the last sweep.
func (s *Server) HandleGardenStatus(w http.ResponseWriter, r *http.Request) {
	gardenID := chi.URLParam(r, "gardenID")
	if gardenID == "" {
		Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"gardenID path parameter is required",
			nil,
		))
		return
	}

	garden, err := s.Gardens.Get(r.Context(), gardenID)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: gardenStatusResponse{
		GardenID:      garden.ID,
		Name:          garden.Name,
		WeatherStatus: garden.WeatherStatus,
	}})
}

// HandleTriggerSweep requests an immediate sweep. Returns 202 when the sweep
// was started and 409 when one is already in flight. The sweep itself runs
// asynchronously; this endpoint does not wait for completion.
func (s *Server) HandleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	if s.Sweeps == nil {
		Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"sweep trigger is not available",
			nil,
		))
		return
	}

	if !s.Sweeps.TriggerAsync(r.Context()) {
		Error(w, r, types.NewAppError(
			types.ErrCodeConflictSweepRunning,
			"a sweep is already running",
			nil,
		))
		return
	}

	JSON(w, r, http.StatusAccepted, APIResponse{Data: map[string]string{
		"status": "started",
	}})
}
