package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// SchedulingRunRepository records scheduling runs.
type SchedulingRunRepository struct {
	db *sqlx.DB
}

// NewSchedulingRunRepository constructs the repository.
func NewSchedulingRunRepository(db *sqlx.DB) *SchedulingRunRepository {
	return &SchedulingRunRepository{db: db}
}

func (r *SchedulingRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create stores a run record, assigning an ID and timestamp when missing.
func (r *SchedulingRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.SchedulingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if len(run.Meta) == 0 {
		run.Meta = []byte("{}")
	}
	const query = `INSERT INTO scheduling_runs (id, course_id, snapshot_hash, status, meta, created_at)
VALUES (:id, :course_id, :snapshot_hash, :status, :meta, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, run); err != nil {
		return fmt.Errorf("insert scheduling run: %w", err)
	}
	return nil
}

// LatestByCourse returns the most recent committed run for a course, or nil
// when none exists.
func (r *SchedulingRunRepository) LatestByCourse(ctx context.Context, courseID string) (*models.SchedulingRun, error) {
	const query = `SELECT id, course_id, snapshot_hash, status, meta, created_at FROM scheduling_runs
WHERE course_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`
	var run models.SchedulingRun
	if err := r.db.GetContext(ctx, &run, query, courseID, string(models.SchedulingRunCommitted)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest scheduling run: %w", err)
	}
	return &run, nil
}
