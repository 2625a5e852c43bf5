package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// ErrSlotTaken reports that a slot was booked by someone else since it was read.
var ErrSlotTaken = errors.New("time slot already booked")

// ScheduledClassRepository persists booked classes.
type ScheduledClassRepository struct {
	db *sqlx.DB
}

// NewScheduledClassRepository constructs the repository.
func NewScheduledClassRepository(db *sqlx.DB) *ScheduledClassRepository {
	return &ScheduledClassRepository{db: db}
}

func (r *ScheduledClassRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const scheduledClassColumns = `id, run_id, course_id, teacher_id, student_ids, time_slot_id, day_of_week, start_time, end_time,
duration, location, max_students, content, class_type, status, confidence_score, rationale, created_at`

// ListByCourse returns the persisted schedule of a course, cancelled classes
// included.
func (r *ScheduledClassRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledClass, error) {
	query := `SELECT ` + scheduledClassColumns + ` FROM scheduled_classes WHERE course_id = $1 ORDER BY day_of_week ASC, start_time ASC, id ASC`
	return r.list(ctx, query, courseID)
}

// ListActive returns every non-cancelled class across courses. Teacher and
// room bookings span courses, so conflict scans need the whole picture.
func (r *ScheduledClassRepository) ListActive(ctx context.Context) ([]models.ScheduledClass, error) {
	query := `SELECT ` + scheduledClassColumns + ` FROM scheduled_classes WHERE status <> 'cancelled' ORDER BY id ASC`
	return r.list(ctx, query)
}

func (r *ScheduledClassRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.ScheduledClass, error) {
	var rows []scheduledClassRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list scheduled classes: %w", err)
	}
	result := make([]models.ScheduledClass, 0, len(rows))
	for _, row := range rows {
		class, err := row.model()
		if err != nil {
			return nil, err
		}
		result = append(result, class)
	}
	return result, nil
}

// BulkCreate inserts the classes produced by a run.
func (r *ScheduledClassRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, runID string, classes []models.ScheduledClass) error {
	if len(classes) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `INSERT INTO scheduled_classes (id, run_id, course_id, teacher_id, student_ids, time_slot_id, day_of_week, start_time, end_time,
duration, location, max_students, content, class_type, status, confidence_score, rationale, created_at)
VALUES (:id, :run_id, :course_id, :teacher_id, :student_ids, :time_slot_id, :day_of_week, :start_time, :end_time,
:duration, :location, :max_students, :content, :class_type, :status, :confidence_score, :rationale, :created_at)`
	for _, class := range classes {
		row, err := newScheduledClassRow(runID, class, now)
		if err != nil {
			return err
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert scheduled class %s: %w", class.ID, err)
		}
	}
	return nil
}

// UpdateStatus moves a class through its lifecycle and reports the status it
// held before, along with the slot and seats it occupies. The class row stays
// locked until exec commits.
func (r *ScheduledClassRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ClassStatus) (*models.ClassStatusChange, error) {
	const query = `UPDATE scheduled_classes AS c SET status = $2
FROM (SELECT id, status FROM scheduled_classes WHERE id = $1 FOR UPDATE) AS prev
WHERE c.id = prev.id
RETURNING c.id, c.course_id, c.time_slot_id, cardinality(c.student_ids) AS seats, prev.status AS previous_status, c.status`
	var change models.ClassStatusChange
	if err := sqlx.GetContext(ctx, r.exec(exec), &change, query, id, string(status)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update scheduled class status: %w", ErrClassNotFound)
		}
		return nil, fmt.Errorf("update scheduled class status: %w", err)
	}
	return &change, nil
}

// ErrClassNotFound reports an unknown class ID.
var ErrClassNotFound = errors.New("scheduled class not found")
