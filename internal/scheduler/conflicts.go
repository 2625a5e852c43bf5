package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

const defaultLocation = "default"

// DetectConflicts scans a complete schedule for overlapping students, exceeded
// capacity, double-booked teachers and shared locations. Cancelled classes are
// ignored. Every conflict carries at least one advisory resolution.
func DetectConflicts(classes []models.ScheduledClass, opts Options) []models.SchedulingConflict {
	opts = opts.withDefaults()
	active := make([]models.ScheduledClass, 0, len(classes))
	for _, class := range classes {
		if class.Status != models.ClassStatusCancelled {
			active = append(active, class)
		}
	}

	d := detector{opts: opts, detectedAt: opts.Now()}
	var conflicts []models.SchedulingConflict
	conflicts = append(conflicts, d.timeOverlaps(active)...)
	conflicts = append(conflicts, d.capacityExceeded(active)...)
	conflicts = append(conflicts, d.teacherDoubleBookings(active)...)
	conflicts = append(conflicts, d.resourceConflicts(active)...)
	return conflicts
}

type detector struct {
	opts       Options
	detectedAt time.Time
}

func (d detector) conflict(kind models.ConflictType, severity models.ConflictSeverity, ids []string, description string, resolutions ...models.ConflictResolution) models.SchedulingConflict {
	return models.SchedulingConflict{
		ID:          d.opts.NewID(),
		Type:        kind,
		Severity:    severity,
		EntityIDs:   ids,
		Description: description,
		Resolutions: resolutions,
		DetectedAt:  d.detectedAt,
	}
}

func sharedStudents(a, b models.ScheduledClass) []string {
	members := newStringSet(a.StudentIDs)
	var shared []string
	for _, id := range b.StudentIDs {
		if members.has(id) {
			shared = append(shared, id)
		}
	}
	return shared
}

func locationOf(slot models.TimeSlot) string {
	if slot.Location == nil || *slot.Location == "" {
		return defaultLocation
	}
	return *slot.Location
}

func teacherCount(class models.ScheduledClass) int {
	if class.TeacherID == nil {
		return 0
	}
	return 1
}

// smaller returns the class whose move disturbs fewer students.
func smaller(a, b models.ScheduledClass) models.ScheduledClass {
	if len(b.StudentIDs) < len(a.StudentIDs) {
		return b
	}
	return a
}

func (d detector) timeOverlaps(classes []models.ScheduledClass) []models.SchedulingConflict {
	var out []models.SchedulingConflict
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			a, b := classes[i], classes[j]
			if !SlotsOverlap(a.TimeSlot, b.TimeSlot) {
				continue
			}
			shared := sharedStudents(a, b)
			if len(shared) == 0 {
				continue
			}
			description := fmt.Sprintf("%d student(s) booked into overlapping classes %s and %s on %s", len(shared), a.ID, b.ID, a.TimeSlot.DayOfWeek)
			out = append(out, d.conflict(models.ConflictTimeOverlap, models.SeverityHigh, []string{a.ID, b.ID}, description,
				d.reschedule(smaller(a, b), fmt.Sprintf("Move class %s to a slot that does not overlap with its sibling class", smaller(a, b).ID))))
		}
	}
	return out
}

func (d detector) capacityExceeded(classes []models.ScheduledClass) []models.SchedulingConflict {
	var out []models.SchedulingConflict
	for _, class := range classes {
		maxStudents := class.TimeSlot.Capacity.MaxStudents
		if len(class.StudentIDs) <= maxStudents {
			continue
		}
		description := fmt.Sprintf("class %s has %d students but slot %s seats %d", class.ID, len(class.StudentIDs), class.TimeSlot.ID, maxStudents)
		out = append(out, d.conflict(models.ConflictCapacityExceeded, models.SeverityCritical, []string{class.ID}, description,
			d.split(class),
			d.reschedule(class, fmt.Sprintf("Move class %s to a slot seating at least %d students", class.ID, len(class.StudentIDs)))))
	}
	return out
}

func (d detector) teacherDoubleBookings(classes []models.ScheduledClass) []models.SchedulingConflict {
	var out []models.SchedulingConflict
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			a, b := classes[i], classes[j]
			if a.TeacherID == nil || b.TeacherID == nil || *a.TeacherID != *b.TeacherID {
				continue
			}
			if !SlotsOverlap(a.TimeSlot, b.TimeSlot) {
				continue
			}
			description := fmt.Sprintf("teacher %s is booked for overlapping classes %s and %s", *a.TeacherID, a.ID, b.ID)
			out = append(out, d.conflict(models.ConflictTeacherUnavailable, models.SeverityHigh, []string{a.ID, b.ID}, description,
				d.reassign(b),
				d.reschedule(b, fmt.Sprintf("Move class %s to a slot where teacher %s is free", b.ID, *b.TeacherID))))
		}
	}
	return out
}

func (d detector) resourceConflicts(classes []models.ScheduledClass) []models.SchedulingConflict {
	var out []models.SchedulingConflict
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			a, b := classes[i], classes[j]
			location := locationOf(a.TimeSlot)
			if location != locationOf(b.TimeSlot) || !SlotsOverlap(a.TimeSlot, b.TimeSlot) {
				continue
			}
			description := fmt.Sprintf("classes %s and %s both use location %q at overlapping times", a.ID, b.ID, location)
			out = append(out, d.conflict(models.ConflictResource, models.SeverityMedium, []string{a.ID, b.ID}, description,
				d.reschedule(smaller(a, b), fmt.Sprintf("Move class %s to another room or time", smaller(a, b).ID))))
		}
	}
	return out
}

func (d detector) reschedule(class models.ScheduledClass, description string) models.ConflictResolution {
	return models.ConflictResolution{
		ID:          d.opts.NewID(),
		Type:        models.ResolutionReschedule,
		Description: description,
		Impact: models.ResolutionImpact{
			AffectedStudents:    len(class.StudentIDs),
			AffectedTeachers:    teacherCount(class),
			ScheduleDisruption:  0.3,
			ResourceUtilization: 0,
			StudentSatisfaction: -0.1,
		},
		FeasibilityScore:            0.8,
		EstimatedImplementationTime: 30,
		RequiredApprovals:           []string{"scheduling_admin"},
		Steps: []string{
			"Find an available slot with enough capacity",
			fmt.Sprintf("Move class %s to the new slot", class.ID),
			"Notify affected students and teacher",
		},
	}
}

func (d detector) split(class models.ScheduledClass) models.ConflictResolution {
	maxStudents := class.TimeSlot.Capacity.MaxStudents
	parts := len(class.StudentIDs)
	if maxStudents > 0 {
		parts = int(math.Ceil(float64(len(class.StudentIDs)) / float64(maxStudents)))
	}
	excess := len(class.StudentIDs) - maxStudents
	if excess < 0 {
		excess = 0
	}
	return models.ConflictResolution{
		ID:          d.opts.NewID(),
		Type:        models.ResolutionSplitClass,
		Description: fmt.Sprintf("Split class %s into %d classes of at most %d students", class.ID, parts, maxStudents),
		Impact: models.ResolutionImpact{
			AffectedStudents:    excess,
			AffectedTeachers:    parts - 1,
			ScheduleDisruption:  0.4,
			ResourceUtilization: 0.2,
			StudentSatisfaction: 0.1,
		},
		FeasibilityScore:            0.7,
		EstimatedImplementationTime: 45,
		RequiredApprovals:           []string{"scheduling_admin", "department_head"},
		Steps: []string{
			fmt.Sprintf("Keep %d students in class %s", maxStudents, class.ID),
			fmt.Sprintf("Create %d additional class(es) for the remaining %d students", parts-1, excess),
			"Book slots and teachers for the new classes",
			"Notify moved students",
		},
	}
}

func (d detector) reassign(class models.ScheduledClass) models.ConflictResolution {
	return models.ConflictResolution{
		ID:          d.opts.NewID(),
		Type:        models.ResolutionReassignTeacher,
		Description: fmt.Sprintf("Assign another available teacher to class %s", class.ID),
		Impact: models.ResolutionImpact{
			AffectedStudents:    len(class.StudentIDs),
			AffectedTeachers:    2,
			ScheduleDisruption:  0.1,
			ResourceUtilization: 0,
			StudentSatisfaction: 0,
		},
		FeasibilityScore:            0.85,
		EstimatedImplementationTime: 20,
		RequiredApprovals:           []string{"scheduling_admin"},
		Steps: []string{
			"List teachers free during the class slot",
			fmt.Sprintf("Reassign class %s to the best-scoring free teacher", class.ID),
			"Notify both teachers",
		},
	}
}
