package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
	appErrors "github.com/noah-isme/lms-class-scheduler/pkg/errors"
)

// Options injects identity and clock sources so runs can be reproduced.
type Options struct {
	NewID func() string
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Snapshot is the complete input of one scheduling run.
type Snapshot struct {
	CourseID    string                          `json:"course_id"`
	Students    []models.StudentProgress        `json:"students"`
	Catalog     []models.LearningContent        `json:"catalog"`
	Slots       []models.TimeSlot               `json:"slots"`
	Teachers    []TeacherCandidate              `json:"-"`
	Existing    []models.ScheduledClass         `json:"existing"`
	Constraints models.SchedulingConstraints    `json:"constraints"`
	Weights     models.SchedulingScoringWeights `json:"weights"`
}

// RunResult is everything a run produced, including what it could not do.
type RunResult struct {
	Classes     []models.ScheduledClass     `json:"classes"`
	Unscheduled []models.UnscheduledGroup   `json:"unscheduled"`
	Unassigned  []models.UnassignedClass    `json:"unassigned"`
	Conflicts   []models.SchedulingConflict `json:"conflicts"`
	Stats       models.RunStats             `json:"stats"`
}

// Validate rejects snapshots that break the caller contract.
func (s Snapshot) Validate() error {
	for i, student := range s.Students {
		if student.StudentID == "" {
			return appErrors.Clonef(appErrors.ErrInvalidSnapshot, "student %d has no studentId", i)
		}
		if student.CourseID == "" {
			return appErrors.Clonef(appErrors.ErrInvalidSnapshot, "student %s has no courseId", student.StudentID)
		}
		if student.ProgressPercentage < 0 || student.ProgressPercentage > 100 {
			return appErrors.Clonef(appErrors.ErrInvalidSnapshot, "student %s progress must be within 0-100", student.StudentID)
		}
	}
	for _, content := range s.Catalog {
		if content.ID == "" {
			return appErrors.Clone(appErrors.ErrInvalidSnapshot, "learning content without id")
		}
		if content.EstimatedDuration < 0 {
			return appErrors.Clonef(appErrors.ErrInvalidSnapshot, "content %s has negative duration", content.ID)
		}
	}
	seen := make(map[string]bool, len(s.Slots))
	for _, slot := range s.Slots {
		if slot.ID == "" {
			return appErrors.Clone(appErrors.ErrInvalidSnapshot, "time slot without id")
		}
		if seen[slot.ID] {
			return appErrors.Clonef(appErrors.ErrInvalidSnapshot, "duplicate time slot %s", slot.ID)
		}
		seen[slot.ID] = true
		if _, ok := toSpan(slot.Window()); !ok {
			return appErrors.Clonef(appErrors.ErrInvalidSnapshot, "time slot %s must end after it starts (HH:MM)", slot.ID)
		}
		if slot.Capacity.AvailableSpots < 0 || slot.Capacity.MaxStudents < 0 {
			return appErrors.Clonef(appErrors.ErrInvalidSnapshot, "time slot %s has negative capacity", slot.ID)
		}
	}
	return ValidateWeights(s.Weights)
}

// ValidateWeights requires non-negative weights with at least one above zero.
func ValidateWeights(w models.SchedulingScoringWeights) error {
	values := []float64{w.ContentProgression, w.StudentAvailability, w.ClassSizeOptimization, w.ScheduleContinuity}
	var sum float64
	for _, v := range values {
		if v < 0 {
			return appErrors.Clone(appErrors.ErrInvalidWeights, "scoring weights must be non-negative")
		}
		sum += v
	}
	if sum == 0 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "at least one scoring weight must be positive")
	}
	return nil
}

// Run groups students, picks content and slots, assigns teachers and reports
// conflicts across the existing and new schedule. Groups are processed in
// grouping order and each booking is taken out of the slot pool before the
// next group is considered.
func Run(snapshot Snapshot, opts Options) (*RunResult, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	result := &RunResult{}
	groups := GroupByProgress(snapshot.Students, snapshot.Constraints)
	inventory := NewInventory(snapshot.Slots)

	var classes []models.ScheduledClass
	for _, group := range groups {
		content := SelectContent(group, snapshot.Catalog)
		if limit := snapshot.Constraints.MaxContentPerClass; limit > 0 && len(content) > limit {
			content = content[:limit]
		}
		if len(content) == 0 {
			result.Unscheduled = append(result.Unscheduled, unscheduled(group, nil, models.ReasonNoCommonContent))
			continue
		}

		class, ok := scheduleGroup(inventory, group, content, snapshot, opts)
		if !ok {
			result.Unscheduled = append(result.Unscheduled, unscheduled(group, content, models.ReasonNoEligibleSlot))
			continue
		}
		classes = append(classes, class)
	}

	classes, result.Unassigned = AssignTeachers(classes, snapshot.Teachers, snapshot.Existing, snapshot.Constraints)
	result.Classes = classes

	full := make([]models.ScheduledClass, 0, len(snapshot.Existing)+len(classes))
	full = append(full, snapshot.Existing...)
	full = append(full, classes...)
	result.Conflicts = DetectConflicts(full, opts)

	result.Stats = models.RunStats{
		Students:          len(snapshot.Students),
		Groups:            len(groups),
		ClassesScheduled:  len(result.Classes),
		GroupsUnscheduled: len(result.Unscheduled),
		ClassesUnassigned: len(result.Unassigned),
		Conflicts:         len(result.Conflicts),
		AverageConfidence: averageConfidence(result.Classes),
	}
	return result, nil
}

func scheduleGroup(inv *Inventory, group Group, content []models.LearningContent, snapshot Snapshot, opts Options) (models.ScheduledClass, bool) {
	best, alternatives, ok := FindBestSlot(inv, group, content, snapshot.Weights)
	if !ok {
		return models.ScheduledClass{}, false
	}
	booked, ok := inv.Reserve(best.Slot.ID, group.Size())
	if !ok {
		panic(fmt.Sprintf("scheduler: eligible slot %s could not be reserved", best.Slot.ID))
	}
	return BuildClass(group, content, best, booked, alternatives, snapshot.CourseID, opts), true
}

// BuildClass assembles a scheduled class from a chosen slot.
func BuildClass(group Group, content []models.LearningContent, best SlotScore, booked models.TimeSlot, alternatives []SlotScore, courseID string, opts Options) models.ScheduledClass {
	opts = opts.withDefaults()
	classType := models.ClassTypeGroup
	if group.Size() == 1 {
		classType = models.ClassTypeIndividual
	}
	if courseID == "" && group.Size() > 0 {
		courseID = group.Students[0].CourseID
	}
	alts := make([]models.SlotAlternative, 0, len(alternatives))
	for _, alt := range alternatives {
		alts = append(alts, models.SlotAlternative{TimeSlot: alt.Slot, Score: alt.Total})
	}
	return models.ScheduledClass{
		ID:              opts.NewID(),
		CourseID:        courseID,
		StudentIDs:      group.StudentIDs(),
		TimeSlot:        booked,
		Content:         content,
		ClassType:       classType,
		Status:          models.ClassStatusScheduled,
		ConfidenceScore: Confidence(group, content, best),
		Rationale:       Rationale(group, content, booked),
		Alternatives:    alts,
	}
}

func unscheduled(group Group, content []models.LearningContent, reason models.UnscheduledReason) models.UnscheduledGroup {
	ids := make([]string, 0, len(content))
	for _, item := range content {
		ids = append(ids, item.ID)
	}
	return models.UnscheduledGroup{
		StudentIDs: group.StudentIDs(),
		Unit:       group.Unit,
		Lesson:     group.Lesson,
		ContentIDs: ids,
		Reason:     reason,
	}
}

func averageConfidence(classes []models.ScheduledClass) float64 {
	if len(classes) == 0 {
		return 0
	}
	var sum float64
	for _, class := range classes {
		sum += class.ConfidenceScore
	}
	return sum / float64(len(classes))
}
