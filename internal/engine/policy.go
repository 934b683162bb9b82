package engine

import (
	"context"
	"log/slog"
	"time"

	"gardenkeep/internal/types"
)

// DecisionKind enumerates the dedup outcomes for a candidate trigger.
type DecisionKind string

const (
	// DecisionCreate emits a brand-new notification.
	DecisionCreate DecisionKind = "create"
	// DecisionEscalate updates the existing notification in place because
	// severity strictly increased within the dedup window.
	DecisionEscalate DecisionKind = "escalate"
	// DecisionSuppress writes no user-facing notification; the audit log is
	// still written unconditionally by the caller.
	DecisionSuppress DecisionKind = "suppress"
)

// Decision is the outcome of resolving a candidate trigger against the
// active-alert store. Existing is set for Escalate and Suppress.
type Decision struct {
	Kind     DecisionKind
	Existing *types.ActiveAlert
}

// ActiveAlertStore is the subset of the active-alert repository the policy
// needs.
type ActiveAlertStore interface {
	// GetActive returns the recorded alert for the key, or nil when none
	// exists. Staleness is the policy's concern, not the store's.
	GetActive(ctx context.Context, userID, plantID string, kind types.AlertKind) (*types.ActiveAlert, error)
}

// AlertPolicy decides whether a candidate trigger creates, escalates, or
// suppresses a notification. The window is a sliding interval evaluated at
// decision time: a trigger at 11:59 into the window is suppressed, one at
// 12:01 starts fresh.
type AlertPolicy struct {
	alerts ActiveAlertStore
	window time.Duration
	logger *slog.Logger
}

// NewAlertPolicy creates an AlertPolicy with the given dedup window.
func NewAlertPolicy(alerts ActiveAlertStore, window time.Duration, logger *slog.Logger) *AlertPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertPolicy{
		alerts: alerts,
		window: window,
		logger: logger,
	}
}

// Resolve returns the decision for one (plant, kind, severity) candidate at
// the given time.
//
// Decision logic:
//  1. No recorded alert, or the recorded one's window anchor is older than
//     now-window -> Create.
//  2. Recorded alert inside the window with strictly lower severity ->
//     Escalate (same-kind comparison only; severities across kinds are
//     never compared).
//  3. Otherwise -> Suppress.
func (p *AlertPolicy) Resolve(ctx context.Context, plant *types.Plant, kind types.AlertKind, severity float64, now time.Time) (Decision, error) {
	existing, err := p.alerts.GetActive(ctx, plant.UserID, plant.ID, kind)
	if err != nil {
		return Decision{}, err
	}

	if existing == nil || existing.TriggeredAt.Before(now.Add(-p.window)) {
		return Decision{Kind: DecisionCreate}, nil
	}

	if severity > existing.Severity {
		return Decision{Kind: DecisionEscalate, Existing: existing}, nil
	}

	p.logger.DebugContext(ctx, "alert suppressed within dedup window",
		"plant_id", plant.ID,
		"kind", string(kind),
		"severity", severity,
		"existing_severity", existing.Severity,
	)
	return Decision{Kind: DecisionSuppress, Existing: existing}, nil
}
