package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// LearningContentRepository reads a course's lesson catalog.
type LearningContentRepository struct {
	db *sqlx.DB
}

// NewLearningContentRepository constructs the repository.
func NewLearningContentRepository(db *sqlx.DB) *LearningContentRepository {
	return &LearningContentRepository{db: db}
}

// ListByCourse returns the catalog in unit and lesson order, which is the order
// equal-scoring content is kept in.
func (r *LearningContentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.LearningContent, error) {
	const query = `SELECT id, title, unit_number, lesson_number, difficulty_level, prerequisites, is_required, estimated_duration
FROM learning_content WHERE course_id = $1 ORDER BY unit_number ASC, lesson_number ASC, id ASC`
	var rows []learningContentRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list learning content: %w", err)
	}
	result := make([]models.LearningContent, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.model())
	}
	return result, nil
}
