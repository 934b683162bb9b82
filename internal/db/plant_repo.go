package db

import (
	"context"

	"gardenkeep/internal/types"
)

// PlantRepository provides read access to plants for the sweep. Plant
// mutation happens in the external CRUD layer; this engine only reads.
type PlantRepository struct {
	db DBTX
}

// NewPlantRepository creates a new PlantRepository backed by the given
// database connection (pool or transaction).
func NewPlantRepository(db DBTX) *PlantRepository {
	return &PlantRepository{db: db}
}

// ListForSweep returns every plant with its owning garden hydrated. Plants
// without a configured sensitivities column are included so the sweep can
// still refresh their garden's status; the evaluator skips them.
func (r *PlantRepository) ListForSweep(ctx context.Context) ([]*types.Plant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.user_id, p.garden_id, p.name, p.sensitivities,
		        g.id, g.user_id, g.name, g.zipcode, g.weather_status
		 FROM plants p
		 JOIN gardens g ON g.id = p.garden_id
		 ORDER BY g.id, p.id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plants for sweep", err)
	}
	defer rows.Close()

	var plants []*types.Plant
	for rows.Next() {
		var (
			p             types.Plant
			g             types.Garden
			sensitivities *types.Sensitivities
			status        *types.WeatherStatus
		)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.GardenID, &p.Name, &sensitivities,
			&g.ID, &g.UserID, &g.Name, &g.Zipcode, &status,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plant row", err)
		}
		p.Sensitivities = sensitivities
		if status != nil {
			g.WeatherStatus = *status
		}
		p.Garden = &g
		plants = append(plants, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating plant rows", err)
	}

	return plants, nil
}
