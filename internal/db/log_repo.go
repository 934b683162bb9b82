package db

import (
	"context"

	"gardenkeep/internal/types"
)

// LogRepository provides append access to the plant_logs audit trail.
// Entries are never updated or deleted by the engine.
type LogRepository struct {
	db DBTX
}

// NewLogRepository creates a new LogRepository backed by the given database
// connection (pool or transaction).
func NewLogRepository(db DBTX) *LogRepository {
	return &LogRepository{db: db}
}

// Create appends an audit log entry. The caller sets the prefixed ID; if
// empty, one is generated.
func (r *LogRepository) Create(ctx context.Context, entry *types.LogEntry) error {
	if entry.ID == "" {
		entry.ID = types.NewID("log")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO plant_logs (id, plant_id, type, notes, log_date, meta)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.PlantID,
		string(entry.Type),
		entry.Notes,
		entry.LogDate,
		entry.Meta,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create log entry", err)
	}
	return nil
}
