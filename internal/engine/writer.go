package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gardenkeep/internal/types"
)

// LogStore is the subset of the log repository the writer needs.
type LogStore interface {
	Create(ctx context.Context, entry *types.LogEntry) error
}

// NotificationStore is the subset of the notification repository the writer
// needs.
type NotificationStore interface {
	Create(ctx context.Context, n *types.Notification) error
	Update(ctx context.Context, n *types.Notification) error
}

// ActiveAlertWriter records dedup state after a notification write.
type ActiveAlertWriter interface {
	Upsert(ctx context.Context, a *types.ActiveAlert) error
}

// AlertWriterConfig holds the configuration for creating an AlertWriter.
type AlertWriterConfig struct {
	Logs          LogStore
	Notifications NotificationStore
	ActiveAlerts  ActiveAlertWriter
	// DashboardURL is the base for plant deep links (no trailing slash).
	DashboardURL string
	// AllClearNotifications enables the informational WEATHER_CHECK
	// notification alongside the always-written WEATHER_CHECK log entry.
	AllClearNotifications bool
	Logger                *slog.Logger
}

// AlertWriter persists the outcome of one resolved trigger: always an audit
// log entry, and a created or updated notification unless the decision was
// Suppress. The log write strictly precedes the notification write so the
// audit trail is never missing an entry a notification references.
type AlertWriter struct {
	logs          LogStore
	notifications NotificationStore
	activeAlerts  ActiveAlertWriter
	dashboardURL  string
	allClear      bool
	logger        *slog.Logger
}

// NewAlertWriter creates an AlertWriter with the given configuration.
func NewAlertWriter(cfg AlertWriterConfig) *AlertWriter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertWriter{
		logs:          cfg.Logs,
		notifications: cfg.Notifications,
		activeAlerts:  cfg.ActiveAlerts,
		dashboardURL:  strings.TrimSuffix(cfg.DashboardURL, "/"),
		allClear:      cfg.AllClearNotifications,
		logger:        logger,
	}
}

// Record persists one trigger outcome. The audit log entry is written for
// every decision, including Suppress. If the log write fails, the
// notification write is skipped and the error returned.
func (w *AlertWriter) Record(ctx context.Context, plant *types.Plant, kind types.AlertKind, weather *types.Weather, severity float64, decision Decision, now time.Time) error {
	detail, err := types.DetailFor(kind, weather)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build alert detail", err)
	}

	meta := types.AlertMeta{
		PlantID:  plant.ID,
		Kind:     kind,
		Severity: severity,
		Date:     now.Format("2006-01-02"),
		Detail:   detail,
		Weather:  weather,
	}

	entry := &types.LogEntry{
		PlantID: plant.ID,
		Type:    types.LogWeatherAlert,
		Notes:   fmt.Sprintf("%s alert: %s", kind.Label(), weatherSummary(weather)),
		LogDate: now,
		Meta:    meta,
	}
	if err := w.logs.Create(ctx, entry); err != nil {
		return err
	}

	switch decision.Kind {
	case DecisionCreate:
		return w.createNotification(ctx, plant, kind, weather, meta, now)
	case DecisionEscalate:
		return w.escalateNotification(ctx, plant, kind, weather, meta, decision.Existing, now)
	case DecisionSuppress:
		return nil
	default:
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unknown decision kind %q", decision.Kind), nil)
	}
}

// createNotification inserts a fresh notification and re-anchors the dedup
// window at now.
func (w *AlertWriter) createNotification(ctx context.Context, plant *types.Plant, kind types.AlertKind, weather *types.Weather, meta types.AlertMeta, now time.Time) error {
	n := &types.Notification{
		UserID:  plant.UserID,
		Type:    types.NotificationWeatherAlert,
		Title:   fmt.Sprintf("⚠️ Weather Alert: %s for %s", kind.Label(), plant.Name),
		Message: w.alertMessage(plant, kind, weather, false),
		Link:    w.plantLink(plant),
		Meta:    meta,
	}
	if err := w.notifications.Create(ctx, n); err != nil {
		return err
	}

	return w.activeAlerts.Upsert(ctx, &types.ActiveAlert{
		UserID:         plant.UserID,
		PlantID:        plant.ID,
		Kind:           kind,
		NotificationID: n.ID,
		Severity:       meta.Severity,
		TriggeredAt:    now,
	})
}

// escalateNotification rewrites the existing notification in place,
// preserving its id and created_at, and keeps the original window anchor so
// escalation does not extend the dedup window.
func (w *AlertWriter) escalateNotification(ctx context.Context, plant *types.Plant, kind types.AlertKind, weather *types.Weather, meta types.AlertMeta, existing *types.ActiveAlert, now time.Time) error {
	meta.UpdatedAt = &now
	n := &types.Notification{
		ID:      existing.NotificationID,
		UserID:  plant.UserID,
		Type:    types.NotificationWeatherAlert,
		Title:   fmt.Sprintf("⚠️ Weather Alert: %s for %s (Severity Increased)", kind.Label(), plant.Name),
		Message: w.alertMessage(plant, kind, weather, true),
		Link:    w.plantLink(plant),
		Meta:    meta,
	}
	if err := w.notifications.Update(ctx, n); err != nil {
		// The UI may have dismissed the notification mid-window. The
		// escalation still has to reach the user, so fall back to a fresh
		// create, which also re-anchors the dedup window.
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundNotification {
			w.logger.InfoContext(ctx, "escalation target dismissed, creating new notification",
				"plant_id", plant.ID,
				"kind", string(kind),
			)
			meta.UpdatedAt = nil
			return w.createNotification(ctx, plant, kind, weather, meta, now)
		}
		return err
	}

	return w.activeAlerts.Upsert(ctx, &types.ActiveAlert{
		UserID:         plant.UserID,
		PlantID:        plant.ID,
		Kind:           kind,
		NotificationID: existing.NotificationID,
		Severity:       meta.Severity,
		TriggeredAt:    existing.TriggeredAt,
	})
}

// RecordAllClear persists the check-ran outcome for a plant whose enabled
// sensitivities produced no triggers: one WEATHER_CHECK log entry and,
// when enabled, one informational notification. This path is independent
// per plant and not subject to the dedup machinery.
func (w *AlertWriter) RecordAllClear(ctx context.Context, plant *types.Plant, weather *types.Weather, now time.Time) error {
	meta := types.AlertMeta{
		PlantID: plant.ID,
		Date:    now.Format("2006-01-02"),
		Weather: weather,
	}

	entry := &types.LogEntry{
		PlantID: plant.ID,
		Type:    types.LogWeatherCheck,
		Notes:   fmt.Sprintf("Weather check passed: %s", weatherSummary(weather)),
		LogDate: now,
		Meta:    meta,
	}
	if err := w.logs.Create(ctx, entry); err != nil {
		return err
	}

	if !w.allClear {
		return nil
	}

	return w.notifications.Create(ctx, &types.Notification{
		UserID:  plant.UserID,
		Type:    types.NotificationWeatherCheck,
		Title:   fmt.Sprintf("Weather check: all clear for %s", plant.Name),
		Message: fmt.Sprintf("%s at %s looks fine. %s.", plant.Name, gardenLabel(plant), weatherSummary(weather)),
		Link:    w.plantLink(plant),
		Meta:    meta,
	})
}

// alertMessage summarizes garden, location, and current weather. The
// escalated form is reworded to indicate conditions have worsened.
func (w *AlertWriter) alertMessage(plant *types.Plant, kind types.AlertKind, weather *types.Weather, escalated bool) string {
	if escalated {
		return fmt.Sprintf("Conditions at %s have worsened for %s: %s.",
			gardenLabel(plant), plant.Name, weatherSummary(weather))
	}
	return fmt.Sprintf("%s conditions detected at %s for %s: %s.",
		kind.Label(), gardenLabel(plant), plant.Name, weatherSummary(weather))
}

// plantLink builds the deep link to the plant detail page.
func (w *AlertWriter) plantLink(plant *types.Plant) string {
	return fmt.Sprintf("%s/plants/%s", w.dashboardURL, plant.ID)
}

// gardenLabel renders "Garden Name (zipcode)" with fallbacks for partially
// hydrated plants.
func gardenLabel(plant *types.Plant) string {
	if plant.Garden == nil {
		return "your garden"
	}
	if plant.Garden.Zipcode == "" {
		return plant.Garden.Name
	}
	return fmt.Sprintf("%s (%s)", plant.Garden.Name, plant.Garden.Zipcode)
}

// weatherSummary renders the fields users care about in one line.
func weatherSummary(w *types.Weather) string {
	parts := []string{
		fmt.Sprintf("%.0f°F", w.Temperature),
		fmt.Sprintf("wind %.0f mph", w.WindSpeed),
	}
	if w.Humidity > 0 {
		parts = append(parts, fmt.Sprintf("humidity %.0f%%", w.Humidity))
	}
	if w.Precipitation != nil {
		parts = append(parts, fmt.Sprintf("precipitation %.0f%%", *w.Precipitation))
	}
	if w.Conditions != "" {
		parts = append(parts, w.Conditions)
	}
	return strings.Join(parts, ", ")
}
