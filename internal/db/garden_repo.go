package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"gardenkeep/internal/types"
)

// GardenRepository provides garden reads for the API and the single write
// path this engine owns: the weather_status summary column.
type GardenRepository struct {
	db DBTX
}

// NewGardenRepository creates a new GardenRepository backed by the given
// database connection (pool or transaction).
func NewGardenRepository(db DBTX) *GardenRepository {
	return &GardenRepository{db: db}
}

// Get returns a garden by ID.
func (r *GardenRepository) Get(ctx context.Context, id string) (*types.Garden, error) {
	var (
		g      types.Garden
		status *types.WeatherStatus
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, zipcode, weather_status
		 FROM gardens WHERE id = $1`,
		id,
	).Scan(&g.ID, &g.UserID, &g.Name, &g.Zipcode, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundGarden, "garden not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get garden", err)
	}
	if status != nil {
		g.WeatherStatus = *status
	}
	return &g, nil
}

// UpdateWeatherStatus writes the per-sweep summary for one garden. The
// status aggregator is the only caller; no other component mutates
// weather_status.
func (r *GardenRepository) UpdateWeatherStatus(ctx context.Context, gardenID string, status types.WeatherStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE gardens SET weather_status = $1 WHERE id = $2`,
		status,
		gardenID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update garden weather status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundGarden, "garden not found", nil)
	}
	return nil
}
