package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

func decodeJSON(raw types.JSONText, dest interface{}) error {
	switch string(raw) {
	case "", "null", "{}":
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func encodeJSON(value interface{}) (types.JSONText, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return types.JSONText(payload), nil
}

func stringSlice(values pq.StringArray) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

type studentProgressRow struct {
	StudentID           string         `db:"student_id"`
	CourseID            string         `db:"course_id"`
	CurrentUnit         int            `db:"current_unit"`
	CurrentLesson       int            `db:"current_lesson"`
	ProgressPercentage  float64        `db:"progress_percentage"`
	CompletedContent    pq.StringArray `db:"completed_content"`
	UnlearnedContent    pq.StringArray `db:"unlearned_content"`
	SkillAssessments    types.JSONText `db:"skill_assessments"`
	PreferredTimes      types.JSONText `db:"preferred_times"`
	BestPerformingTimes types.JSONText `db:"best_performing_times"`
}

func (r studentProgressRow) model() (models.StudentProgress, error) {
	progress := models.StudentProgress{
		StudentID:          r.StudentID,
		CourseID:           r.CourseID,
		CurrentUnit:        r.CurrentUnit,
		CurrentLesson:      r.CurrentLesson,
		ProgressPercentage: r.ProgressPercentage,
		CompletedContent:   stringSlice(r.CompletedContent),
		UnlearnedContent:   stringSlice(r.UnlearnedContent),
	}
	if err := decodeJSON(r.SkillAssessments, &progress.SkillAssessments); err != nil {
		return progress, fmt.Errorf("decode skill assessments for %s: %w", r.StudentID, err)
	}
	if err := decodeJSON(r.PreferredTimes, &progress.PreferredTimes); err != nil {
		return progress, fmt.Errorf("decode preferred times for %s: %w", r.StudentID, err)
	}
	if err := decodeJSON(r.BestPerformingTimes, &progress.PerformanceMetrics.BestPerformingTimes); err != nil {
		return progress, fmt.Errorf("decode best performing times for %s: %w", r.StudentID, err)
	}
	return progress, nil
}

type learningContentRow struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	UnitNumber        int            `db:"unit_number"`
	LessonNumber      int            `db:"lesson_number"`
	DifficultyLevel   float64        `db:"difficulty_level"`
	Prerequisites     pq.StringArray `db:"prerequisites"`
	IsRequired        bool           `db:"is_required"`
	EstimatedDuration int            `db:"estimated_duration"`
}

func (r learningContentRow) model() models.LearningContent {
	return models.LearningContent{
		ID:                r.ID,
		Title:             r.Title,
		UnitNumber:        r.UnitNumber,
		LessonNumber:      r.LessonNumber,
		DifficultyLevel:   r.DifficultyLevel,
		Prerequisites:     stringSlice(r.Prerequisites),
		IsRequired:        r.IsRequired,
		EstimatedDuration: r.EstimatedDuration,
	}
}

type timeSlotRow struct {
	ID             string         `db:"id"`
	DayOfWeek      string         `db:"day_of_week"`
	StartTime      string         `db:"start_time"`
	EndTime        string         `db:"end_time"`
	Duration       int            `db:"duration"`
	Location       sql.NullString `db:"location"`
	MaxStudents    int            `db:"max_students"`
	AvailableSpots int            `db:"available_spots"`
	IsAvailable    bool           `db:"is_available"`
}

func (r timeSlotRow) model() models.TimeSlot {
	slot := models.TimeSlot{
		ID:          r.ID,
		DayOfWeek:   r.DayOfWeek,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Duration:    r.Duration,
		Capacity:    models.SlotCapacity{MaxStudents: r.MaxStudents, AvailableSpots: r.AvailableSpots},
		IsAvailable: r.IsAvailable,
	}
	if r.Location.Valid {
		location := r.Location.String
		slot.Location = &location
	}
	return slot
}

type teacherProfileRow struct {
	ID                 string         `db:"id"`
	FullName           string         `db:"full_name"`
	CourseIDs          pq.StringArray `db:"course_ids"`
	PreferredClassType sql.NullString `db:"preferred_class_type"`
	FeedbackRating     float64        `db:"feedback_rating"`
	Availability       types.JSONText `db:"availability"`
	Active             bool           `db:"active"`
}

func (r teacherProfileRow) model() (models.TeacherProfile, error) {
	profile := models.TeacherProfile{
		ID:             r.ID,
		FullName:       r.FullName,
		CourseIDs:      stringSlice(r.CourseIDs),
		FeedbackRating: r.FeedbackRating,
		Active:         r.Active,
	}
	if r.PreferredClassType.Valid {
		profile.PreferredClassType = models.ClassType(r.PreferredClassType.String)
	}
	if err := decodeJSON(r.Availability, &profile.Availability); err != nil {
		return profile, fmt.Errorf("decode availability for teacher %s: %w", r.ID, err)
	}
	return profile, nil
}

type scheduledClassRow struct {
	ID              string         `db:"id"`
	RunID           sql.NullString `db:"run_id"`
	CourseID        string         `db:"course_id"`
	TeacherID       sql.NullString `db:"teacher_id"`
	StudentIDs      pq.StringArray `db:"student_ids"`
	TimeSlotID      string         `db:"time_slot_id"`
	DayOfWeek       string         `db:"day_of_week"`
	StartTime       string         `db:"start_time"`
	EndTime         string         `db:"end_time"`
	Duration        int            `db:"duration"`
	Location        sql.NullString `db:"location"`
	MaxStudents     int            `db:"max_students"`
	Content         types.JSONText `db:"content"`
	ClassType       string         `db:"class_type"`
	Status          string         `db:"status"`
	ConfidenceScore float64        `db:"confidence_score"`
	Rationale       string         `db:"rationale"`
	CreatedAt       time.Time      `db:"created_at"`
}

func newScheduledClassRow(runID string, class models.ScheduledClass, createdAt time.Time) (scheduledClassRow, error) {
	content, err := encodeJSON(class.Content)
	if err != nil {
		return scheduledClassRow{}, fmt.Errorf("encode content for class %s: %w", class.ID, err)
	}
	row := scheduledClassRow{
		ID:              class.ID,
		CourseID:        class.CourseID,
		StudentIDs:      pq.StringArray(class.StudentIDs),
		TimeSlotID:      class.TimeSlot.ID,
		DayOfWeek:       class.TimeSlot.DayOfWeek,
		StartTime:       class.TimeSlot.StartTime,
		EndTime:         class.TimeSlot.EndTime,
		Duration:        class.TimeSlot.Duration,
		MaxStudents:     class.TimeSlot.Capacity.MaxStudents,
		Content:         content,
		ClassType:       string(class.ClassType),
		Status:          string(class.Status),
		ConfidenceScore: class.ConfidenceScore,
		Rationale:       class.Rationale,
		CreatedAt:       createdAt,
	}
	if runID != "" {
		row.RunID = sql.NullString{String: runID, Valid: true}
	}
	if class.TeacherID != nil {
		row.TeacherID = sql.NullString{String: *class.TeacherID, Valid: true}
	}
	if class.TimeSlot.Location != nil {
		row.Location = sql.NullString{String: *class.TimeSlot.Location, Valid: true}
	}
	return row, nil
}

func (r scheduledClassRow) model() (models.ScheduledClass, error) {
	class := models.ScheduledClass{
		ID:         r.ID,
		CourseID:   r.CourseID,
		StudentIDs: stringSlice(r.StudentIDs),
		TimeSlot: models.TimeSlot{
			ID:        r.TimeSlotID,
			DayOfWeek: r.DayOfWeek,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Duration:  r.Duration,
			Capacity:  models.SlotCapacity{MaxStudents: r.MaxStudents},
		},
		ClassType:       models.ClassType(r.ClassType),
		Status:          models.ClassStatus(r.Status),
		ConfidenceScore: r.ConfidenceScore,
		Rationale:       r.Rationale,
	}
	if r.TeacherID.Valid {
		teacherID := r.TeacherID.String
		class.TeacherID = &teacherID
	}
	if r.Location.Valid {
		location := r.Location.String
		class.TimeSlot.Location = &location
	}
	if err := decodeJSON(r.Content, &class.Content); err != nil {
		return class, fmt.Errorf("decode content for class %s: %w", r.ID, err)
	}
	return class, nil
}
