package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/venuehub/venue-booking/internal/model"
)

// ScheduleRepo provides data access to the scheduled_jobs table, the
// durable deadline store behind auto-cancellation, claim expiry and
// reminders.  Rows survive process restarts; the scheduler sweep
// simply reads due rows again after a restart, so no in-memory state
// needs rebuilding.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a ScheduleRepo bound to the provided database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// Arm schedules a one-shot job.  Re-arming the same kind and entity
// replaces the previous deadline.
func (r *ScheduleRepo) Arm(ctx context.Context, job model.ScheduledJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (kind, entity_id, fire_at)
		 VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE fire_at = VALUES(fire_at)`,
		job.Kind, job.EntityID, job.FireAt.UTC(),
	)
	return err
}

// Disarm removes a pending job.  Disarming a job that already fired
// or never existed is a no-op.
func (r *ScheduleRepo) Disarm(ctx context.Context, kind string, entityID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_jobs WHERE kind = ? AND entity_id = ?`,
		kind, entityID,
	)
	return err
}

// Due returns every job whose deadline has passed as of now, oldest
// first.
func (r *ScheduleRepo) Due(ctx context.Context, now time.Time) ([]model.ScheduledJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, entity_id, fire_at FROM scheduled_jobs
		 WHERE fire_at <= ?
		 ORDER BY fire_at ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ScheduledJob
	for rows.Next() {
		var j model.ScheduledJob
		if err := rows.Scan(&j.ID, &j.Kind, &j.EntityID, &j.FireAt); err != nil {
			return nil, err
		}
		j.FireAt = j.FireAt.UTC()
		out = append(out, j)
	}
	return out, rows.Err()
}

// Delete removes a job row once it has been dispatched.
func (r *ScheduleRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	return err
}
