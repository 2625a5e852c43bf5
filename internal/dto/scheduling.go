package dto

import (
	"time"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// ConstraintOverrides replaces configured constraints for a single run. Nil
// fields keep the configured value.
type ConstraintOverrides struct {
	MaxStudentsPerClass            *int `json:"maxStudentsPerClass" validate:"omitempty,min=1,max=100"`
	MaxConcurrentClassesPerTeacher *int `json:"maxConcurrentClassesPerTeacher" validate:"omitempty,min=0"`
	MaxContentPerClass             *int `json:"maxContentPerClass" validate:"omitempty,min=0"`
}

// WeightOverrides replaces configured slot scoring weights for a single run.
type WeightOverrides struct {
	ContentProgression    *float64 `json:"contentProgression" validate:"omitempty,min=0"`
	StudentAvailability   *float64 `json:"studentAvailability" validate:"omitempty,min=0"`
	ClassSizeOptimization *float64 `json:"classSizeOptimization" validate:"omitempty,min=0"`
	ScheduleContinuity    *float64 `json:"scheduleContinuity" validate:"omitempty,min=0"`
}

// RunSchedulingRequest asks for classes to be formed for a course.
type RunSchedulingRequest struct {
	CourseID    string               `json:"courseId" validate:"required"`
	Persist     bool                 `json:"persist"`
	Constraints *ConstraintOverrides `json:"constraints"`
	Weights     *WeightOverrides     `json:"weights"`
}

// RunSchedulingResponse reports the outcome of a run.
type RunSchedulingResponse struct {
	RunID        string                          `json:"runId,omitempty"`
	CourseID     string                          `json:"courseId"`
	SnapshotHash string                          `json:"snapshotHash"`
	Persisted    bool                            `json:"persisted"`
	Cached       bool                            `json:"cached"`
	Classes      []models.ScheduledClass         `json:"classes"`
	Unscheduled  []models.UnscheduledGroup       `json:"unscheduled"`
	Unassigned   []models.UnassignedClass        `json:"unassigned"`
	Conflicts    []models.SchedulingConflict     `json:"conflicts"`
	Stats        models.RunStats                 `json:"stats"`
	Constraints  models.SchedulingConstraints    `json:"constraints"`
	Weights      models.SchedulingScoringWeights `json:"weights"`
	GeneratedAt  time.Time                       `json:"generatedAt"`
}

// BatchSchedulingRequest enqueues background runs, one per course.
type BatchSchedulingRequest struct {
	CourseIDs []string `json:"courseIds" validate:"required,min=1,max=100,dive,required"`
	Persist   bool     `json:"persist"`
}

// BatchSchedulingResponse lists accepted jobs.
type BatchSchedulingResponse struct {
	Jobs []BatchJob `json:"jobs"`
}

// BatchJob identifies one queued course run.
type BatchJob struct {
	JobID    string `json:"jobId"`
	CourseID string `json:"courseId"`
}

// ConflictsQuery selects the persisted schedule to scan.
type ConflictsQuery struct {
	CourseID string `form:"courseId" json:"courseId" validate:"required"`
}

// RunSummary identifies the committed run behind a persisted schedule.
type RunSummary struct {
	RunID        string    `json:"runId"`
	SnapshotHash string    `json:"snapshotHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ConflictsResponse lists conflicts in a persisted schedule. LatestRun is nil
// when the course has never been persisted.
type ConflictsResponse struct {
	CourseID  string                      `json:"courseId"`
	Classes   int                         `json:"classes"`
	LatestRun *RunSummary                 `json:"latestRun,omitempty"`
	Conflicts []models.SchedulingConflict `json:"conflicts"`
}

// ExportQuery selects a course schedule export.
type ExportQuery struct {
	CourseID string `form:"courseId" json:"courseId" validate:"required"`
	Format   string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf CSV PDF"`
	Delivery string `form:"delivery" json:"delivery" validate:"omitempty,oneof=inline link"`
}

// ExportLinkResponse points to a stored export.
type ExportLinkResponse struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UpdateClassStatusRequest moves a persisted class through its lifecycle.
type UpdateClassStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled confirmed cancelled"`
}
