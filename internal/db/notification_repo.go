package db

import (
	"context"
	"time"

	"gardenkeep/internal/types"
)

// NotificationRepository provides data access for the notifications table.
// Notifications are created on first trigger, updated in place on
// escalation, and read by the UI's polling endpoints. Dismissal (delete) is
// owned by the UI layer, not this engine.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by
// the given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification record. The caller sets the prefixed
// ID; if empty, one is generated. CreatedAt defaults to NOW() when zero.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification) error {
	if n.ID == "" {
		n.ID = types.NewID("notif")
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, link, meta, read, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false, COALESCE($8, NOW()), COALESCE($8, NOW()))
		 RETURNING created_at, updated_at`,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		n.Link,
		n.Meta,
		nilIfZeroTime(n.CreatedAt),
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return nil
}

// Update rewrites a notification's title, message, and meta in place,
// preserving id and created_at. Used for severity escalation.
func (r *NotificationRepository) Update(ctx context.Context, n *types.Notification) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET title = $1, message = $2, meta = $3, updated_at = NOW()
		 WHERE id = $4`,
		n.Title,
		n.Message,
		n.Meta,
		n.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// ListAlertsForGarden returns the weather-alert notifications created or
// updated since the cutoff for plants belonging to the given garden, newest
// first. Backed by the active_alerts identity table rather than matching on
// message text.
func (r *NotificationRepository) ListAlertsForGarden(ctx context.Context, gardenID string, since time.Time) ([]*types.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT n.id, n.user_id, n.type, n.title, n.message, n.link, n.meta, n.read, n.created_at, n.updated_at
		 FROM notifications n
		 JOIN active_alerts aa ON aa.notification_id = n.id
		 JOIN plants p ON p.id = aa.plant_id
		 WHERE p.garden_id = $1 AND aa.triggered_at >= $2
		 ORDER BY n.updated_at DESC`,
		gardenID,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list garden alerts", err)
	}
	defer rows.Close()

	var results []*types.Notification
	for rows.Next() {
		var (
			n        types.Notification
			notifTyp string
			link     *string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &notifTyp, &n.Title, &n.Message, &link, &n.Meta, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", err)
		}
		n.Type = types.NotificationType(notifTyp)
		if link != nil {
			n.Link = *link
		}
		results = append(results, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification rows", err)
	}

	return results, nil
}

// nilIfZeroTime converts a zero time.Time into nil so the database DEFAULT
// applies instead of inserting the zero value.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
