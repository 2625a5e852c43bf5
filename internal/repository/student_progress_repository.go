package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// StudentProgressRepository reads per-course progress snapshots.
type StudentProgressRepository struct {
	db *sqlx.DB
}

// NewStudentProgressRepository constructs the repository.
func NewStudentProgressRepository(db *sqlx.DB) *StudentProgressRepository {
	return &StudentProgressRepository{db: db}
}

// ListByCourse returns every enrolled student's progress ordered by student ID.
func (r *StudentProgressRepository) ListByCourse(ctx context.Context, courseID string) ([]models.StudentProgress, error) {
	const query = `SELECT student_id, course_id, current_unit, current_lesson, progress_percentage,
completed_content, unlearned_content, skill_assessments, preferred_times, best_performing_times
FROM student_progress WHERE course_id = $1 ORDER BY student_id ASC`
	var rows []studentProgressRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list student progress: %w", err)
	}
	result := make([]models.StudentProgress, 0, len(rows))
	for _, row := range rows {
		progress, err := row.model()
		if err != nil {
			return nil, err
		}
		result = append(result, progress)
	}
	return result, nil
}
