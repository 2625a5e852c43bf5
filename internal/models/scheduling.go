package models

import "time"

// ClassType distinguishes one-to-one sessions from cohort sessions.
type ClassType string

const (
	ClassTypeIndividual ClassType = "individual"
	ClassTypeGroup      ClassType = "group"
)

// ClassStatus tracks the booking lifecycle of a scheduled class.
type ClassStatus string

const (
	ClassStatusScheduled ClassStatus = "scheduled"
	ClassStatusConfirmed ClassStatus = "confirmed"
	ClassStatusCancelled ClassStatus = "cancelled"
)

// TimeWindow is a wall-clock interval on a weekday. Times use HH:MM.
type TimeWindow struct {
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// PerformanceMetrics captures historical learning signals for a student.
type PerformanceMetrics struct {
	BestPerformingTimes []TimeWindow `json:"best_performing_times"`
}

// StudentProgress is a per-run snapshot of a student's position in a course.
type StudentProgress struct {
	StudentID          string             `json:"student_id"`
	CourseID           string             `json:"course_id"`
	CurrentUnit        int                `json:"current_unit"`
	CurrentLesson      int                `json:"current_lesson"`
	ProgressPercentage float64            `json:"progress_percentage"`
	CompletedContent   []string           `json:"completed_content"`
	UnlearnedContent   []string           `json:"unlearned_content"`
	SkillAssessments   map[string]float64 `json:"skill_assessments"`
	PreferredTimes     []TimeWindow       `json:"preferred_times"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
}

// LearningContent is a catalog lesson that can be taught in a class.
type LearningContent struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	UnitNumber        int      `json:"unit_number"`
	LessonNumber      int      `json:"lesson_number"`
	DifficultyLevel   float64  `json:"difficulty_level"`
	Prerequisites     []string `json:"prerequisites"`
	IsRequired        bool     `json:"is_required"`
	EstimatedDuration int      `json:"estimated_duration"`
}

// SlotCapacity describes seat availability for a time slot.
type SlotCapacity struct {
	MaxStudents    int `json:"max_students"`
	AvailableSpots int `json:"available_spots"`
}

// TimeSlot is a bookable teaching period.
type TimeSlot struct {
	ID          string       `json:"id"`
	DayOfWeek   string       `json:"day_of_week"`
	StartTime   string       `json:"start_time"`
	EndTime     string       `json:"end_time"`
	Duration    int          `json:"duration"`
	Location    *string      `json:"location,omitempty"`
	Capacity    SlotCapacity `json:"capacity"`
	IsAvailable bool         `json:"is_available"`
}

// Window returns the slot's day and time range.
func (s TimeSlot) Window() TimeWindow {
	return TimeWindow{DayOfWeek: s.DayOfWeek, StartTime: s.StartTime, EndTime: s.EndTime}
}

// SlotAlternative is a runner-up slot considered for a class.
type SlotAlternative struct {
	TimeSlot TimeSlot `json:"time_slot"`
	Score    float64  `json:"score"`
}

// ScheduledClass is a class booked by a scheduling run.
type ScheduledClass struct {
	ID              string            `json:"id"`
	CourseID        string            `json:"course_id"`
	TeacherID       *string           `json:"teacher_id,omitempty"`
	StudentIDs      []string          `json:"student_ids"`
	TimeSlot        TimeSlot          `json:"time_slot"`
	Content         []LearningContent `json:"content"`
	ClassType       ClassType         `json:"class_type"`
	Status          ClassStatus       `json:"status"`
	ConfidenceScore float64           `json:"confidence_score"`
	Rationale       string            `json:"rationale"`
	Alternatives    []SlotAlternative `json:"alternatives,omitempty"`
}

// ClassStatusChange is the stored outcome of a class status update.
type ClassStatusChange struct {
	ClassID    string      `db:"id" json:"class_id"`
	CourseID   string      `db:"course_id" json:"course_id"`
	TimeSlotID string      `db:"time_slot_id" json:"time_slot_id"`
	Seats      int         `db:"seats" json:"seats"`
	Previous   ClassStatus `db:"previous_status" json:"previous_status"`
	Status     ClassStatus `db:"status" json:"status"`
}

// ConflictType enumerates detected schedule conflicts.
type ConflictType string

const (
	ConflictTimeOverlap        ConflictType = "time_overlap"
	ConflictCapacityExceeded   ConflictType = "capacity_exceeded"
	ConflictTeacherUnavailable ConflictType = "teacher_unavailable"
	ConflictResource           ConflictType = "resource_conflict"
)

// ConflictSeverity ranks how urgently a conflict needs attention.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// ResolutionType enumerates suggested remediations.
type ResolutionType string

const (
	ResolutionReschedule      ResolutionType = "reschedule"
	ResolutionSplitClass      ResolutionType = "split_class"
	ResolutionReassignTeacher ResolutionType = "reassign_teacher"
)

// ResolutionImpact estimates the effect of applying a resolution.
type ResolutionImpact struct {
	AffectedStudents    int     `json:"affected_students"`
	AffectedTeachers    int     `json:"affected_teachers"`
	ScheduleDisruption  float64 `json:"schedule_disruption"`
	ResourceUtilization float64 `json:"resource_utilization"`
	StudentSatisfaction float64 `json:"student_satisfaction"`
}

// ConflictResolution is an advisory fix; it is never applied automatically.
type ConflictResolution struct {
	ID                          string           `json:"id"`
	Type                        ResolutionType   `json:"type"`
	Description                 string           `json:"description"`
	Impact                      ResolutionImpact `json:"impact"`
	FeasibilityScore            float64          `json:"feasibility_score"`
	EstimatedImplementationTime int              `json:"estimated_implementation_time"`
	RequiredApprovals           []string         `json:"required_approvals"`
	Steps                       []string         `json:"steps"`
}

// SchedulingConflict is a post-hoc finding over a set of scheduled classes.
type SchedulingConflict struct {
	ID          string               `json:"id"`
	Type        ConflictType         `json:"type"`
	Severity    ConflictSeverity     `json:"severity"`
	EntityIDs   []string             `json:"entity_ids"`
	Description string               `json:"description"`
	Resolutions []ConflictResolution `json:"resolutions"`
	DetectedAt  time.Time            `json:"detected_at"`
}

// SchedulingConstraints bounds class sizes and teacher load.
type SchedulingConstraints struct {
	MaxStudentsPerClass            int `json:"max_students_per_class"`
	MaxConcurrentClassesPerTeacher int `json:"max_concurrent_classes_per_teacher"`
	MaxContentPerClass             int `json:"max_content_per_class"`
}

// SchedulingScoringWeights weighs the slot scoring factors.
type SchedulingScoringWeights struct {
	ContentProgression    float64 `json:"content_progression"`
	StudentAvailability   float64 `json:"student_availability"`
	ClassSizeOptimization float64 `json:"class_size_optimization"`
	ScheduleContinuity    float64 `json:"schedule_continuity"`
}

// UnscheduledReason explains why a group produced no class.
type UnscheduledReason string

const (
	ReasonNoCommonContent UnscheduledReason = "no_common_content"
	ReasonNoEligibleSlot  UnscheduledReason = "no_eligible_slot"
)

// UnscheduledGroup reports a cohort that could not be booked this run.
type UnscheduledGroup struct {
	StudentIDs []string          `json:"student_ids"`
	Unit       int               `json:"unit"`
	Lesson     int               `json:"lesson"`
	ContentIDs []string          `json:"content_ids,omitempty"`
	Reason     UnscheduledReason `json:"reason"`
}

// UnassignedClass reports a scheduled class left without a teacher.
type UnassignedClass struct {
	ClassID string `json:"class_id"`
	Reason  string `json:"reason"`
}

// RunStats summarises a scheduling run.
type RunStats struct {
	Students          int     `json:"students"`
	Groups            int     `json:"groups"`
	ClassesScheduled  int     `json:"classes_scheduled"`
	GroupsUnscheduled int     `json:"groups_unscheduled"`
	ClassesUnassigned int     `json:"classes_unassigned"`
	Conflicts         int     `json:"conflicts"`
	AverageConfidence float64 `json:"average_confidence"`
}
