package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"gardenkeep/internal/types"
)

// sweepLockID is the single lock row guarding sweep execution across
// independently deployed engine instances.
const sweepLockID = "weather_sweep"

// SweepRepository provides data access for sweep bookkeeping: the
// single-leader lock and the sweep_runs history used for scheduler
// staleness checks.
type SweepRepository struct {
	db DBTX
}

// NewSweepRepository creates a new SweepRepository backed by the given
// database connection (pool or transaction).
func NewSweepRepository(db DBTX) *SweepRepository {
	return &SweepRepository{db: db}
}

// AcquireLock attempts to take the sweep lock for this worker. Returns true
// if acquired, false if another worker holds an unexpired lock. Uses
// INSERT ... ON CONFLICT DO UPDATE so acquisition is a single atomic
// statement; expired locks are reclaimed in place.
//
// Timestamps are computed in Go rather than with SQL interval arithmetic to
// avoid PostgreSQL interval parsing of Go duration strings.
func (r *SweepRepository) AcquireLock(ctx context.Context, workerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	tag, err := r.db.Exec(ctx,
		`INSERT INTO sweep_locks (id, worker_id, locked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		   SET worker_id = EXCLUDED.worker_id,
		       locked_at = EXCLUDED.locked_at,
		       expires_at = EXCLUDED.expires_at
		   WHERE sweep_locks.expires_at < $3`,
		sweepLockID,
		workerID,
		now,
		expiresAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire sweep lock", err)
	}

	// One row affected means the INSERT succeeded or an expired lock was
	// reclaimed; zero means another worker holds a live lock.
	return tag.RowsAffected() > 0, nil
}

// ReleaseLock drops this worker's lock so the next sweep does not have to
// wait for expiry. Releasing a lock held by someone else is a no-op.
func (r *SweepRepository) ReleaseLock(ctx context.Context, workerID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM sweep_locks WHERE id = $1 AND worker_id = $2`,
		sweepLockID,
		workerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release sweep lock", err)
	}
	return nil
}

// StartRun records the beginning of a sweep and returns its ID.
func (r *SweepRepository) StartRun(ctx context.Context, startedAt time.Time) (string, error) {
	id := types.NewID("sweep")
	_, err := r.db.Exec(ctx,
		`INSERT INTO sweep_runs (id, started_at) VALUES ($1, $2)`,
		id,
		startedAt,
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to record sweep start", err)
	}
	return id, nil
}

// CompleteRun records the completion of a sweep with its outcome counts.
func (r *SweepRepository) CompleteRun(ctx context.Context, runID string, completedAt time.Time, evaluated, alerted, failed int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sweep_runs SET completed_at = $1, plants_evaluated = $2, plants_alerted = $3, plants_failed = $4
		 WHERE id = $5`,
		completedAt,
		evaluated,
		alerted,
		failed,
		runID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record sweep completion", err)
	}
	return nil
}

// GetLastCompleted returns the completion time of the most recent finished
// sweep, or nil when no sweep has ever completed. The scheduler uses this
// for its startup staleness check.
func (r *SweepRepository) GetLastCompleted(ctx context.Context) (*time.Time, error) {
	var completedAt time.Time
	err := r.db.QueryRow(ctx,
		`SELECT completed_at FROM sweep_runs
		 WHERE completed_at IS NOT NULL
		 ORDER BY completed_at DESC
		 LIMIT 1`,
	).Scan(&completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query last completed sweep", err)
	}
	return &completedAt, nil
}
