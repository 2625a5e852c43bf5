package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TeacherProfile is the scheduling view of a teacher roster entry.
type TeacherProfile struct {
	ID                 string       `json:"id"`
	FullName           string       `json:"full_name"`
	CourseIDs          []string     `json:"course_ids"`
	PreferredClassType ClassType    `json:"preferred_class_type,omitempty"`
	FeedbackRating     float64      `json:"feedback_rating"`
	Availability       []TimeWindow `json:"availability"`
	Active             bool         `json:"active"`
}

// SchedulingRunStatus marks whether a run was only previewed or persisted.
type SchedulingRunStatus string

const (
	SchedulingRunPreview   SchedulingRunStatus = "PREVIEW"
	SchedulingRunCommitted SchedulingRunStatus = "COMMITTED"
)

// SchedulingRun records a persisted run and its summary.
type SchedulingRun struct {
	ID           string              `db:"id" json:"id"`
	CourseID     string              `db:"course_id" json:"course_id"`
	SnapshotHash string              `db:"snapshot_hash" json:"snapshot_hash"`
	Status       SchedulingRunStatus `db:"status" json:"status"`
	Meta         types.JSONText      `db:"meta" json:"meta"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}
