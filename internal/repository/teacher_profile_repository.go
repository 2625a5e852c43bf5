package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// TeacherProfileRepository reads the scheduling roster.
type TeacherProfileRepository struct {
	db *sqlx.DB
}

// NewTeacherProfileRepository constructs the repository.
func NewTeacherProfileRepository(db *sqlx.DB) *TeacherProfileRepository {
	return &TeacherProfileRepository{db: db}
}

// ListActiveByCourse returns active teachers qualified for the course.
func (r *TeacherProfileRepository) ListActiveByCourse(ctx context.Context, courseID string) ([]models.TeacherProfile, error) {
	const query = `SELECT id, full_name, course_ids, preferred_class_type, feedback_rating, availability, active
FROM teacher_profiles WHERE active = TRUE AND $1 = ANY(course_ids) ORDER BY id ASC`
	var rows []teacherProfileRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list teacher profiles: %w", err)
	}
	result := make([]models.TeacherProfile, 0, len(rows))
	for _, row := range rows {
		profile, err := row.model()
		if err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, nil
}
