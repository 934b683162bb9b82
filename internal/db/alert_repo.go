package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"gardenkeep/internal/types"
)

// ActiveAlertRepository provides data access for the active_alerts table,
// the explicit dedup identity for (user, plant, kind). The table carries a
// UNIQUE (user_id, plant_id, alert_kind) constraint so the read-then-write
// dedup decision cannot create a second live record even if two sweeps were
// ever to race.
type ActiveAlertRepository struct {
	db DBTX
}

// NewActiveAlertRepository creates a new ActiveAlertRepository backed by the
// given database connection (pool or transaction).
func NewActiveAlertRepository(db DBTX) *ActiveAlertRepository {
	return &ActiveAlertRepository{db: db}
}

// GetActive returns the current alert record for the (user, plant, kind)
// key, or nil when none exists. The caller applies the dedup window; the
// repository returns whatever is recorded, fresh or stale.
func (r *ActiveAlertRepository) GetActive(ctx context.Context, userID, plantID string, kind types.AlertKind) (*types.ActiveAlert, error) {
	var a types.ActiveAlert
	var kindStr string
	err := r.db.QueryRow(ctx,
		`SELECT user_id, plant_id, alert_kind, notification_id, severity, triggered_at
		 FROM active_alerts
		 WHERE user_id = $1 AND plant_id = $2 AND alert_kind = $3`,
		userID, plantID, string(kind),
	).Scan(&a.UserID, &a.PlantID, &kindStr, &a.NotificationID, &a.Severity, &a.TriggeredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get active alert", err)
	}
	a.Kind = types.AlertKind(kindStr)
	return &a, nil
}

// Upsert records the current alert state for the (user, plant, kind) key.
// On a fresh create the whole row is replaced, resetting triggered_at and
// re-anchoring the dedup window; on escalation only severity moves and the
// original triggered_at is kept by the caller passing it through.
func (r *ActiveAlertRepository) Upsert(ctx context.Context, a *types.ActiveAlert) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO active_alerts (user_id, plant_id, alert_kind, notification_id, severity, triggered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, plant_id, alert_kind) DO UPDATE
		   SET notification_id = EXCLUDED.notification_id,
		       severity = EXCLUDED.severity,
		       triggered_at = EXCLUDED.triggered_at`,
		a.UserID,
		a.PlantID,
		string(a.Kind),
		a.NotificationID,
		a.Severity,
		a.TriggeredAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert active alert", err)
	}
	return nil
}

// DeleteBefore removes alert records whose window anchor is older than the
// cutoff. Retention housekeeping; expired records are also simply ignored
// by the dedup decision, so this is not load-bearing for correctness.
func (r *ActiveAlertRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM active_alerts WHERE triggered_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired active alerts", err)
	}
	return tag.RowsAffected(), nil
}
