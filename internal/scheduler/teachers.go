package scheduler

import (
	"math"
	"sync"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

const (
	workloadWeight   = 0.4
	expertiseWeight  = 0.3
	classTypeWeight  = 0.2
	feedbackWeight   = 0.1
	reasonNoTeachers = "no_teachers"
	reasonAllBusy    = "no_eligible_teacher"
)

// TeacherCandidate is the slice of a teacher profile the assigner needs.
// Score callbacks are expected in [0,1] and are clamped otherwise.
type TeacherCandidate interface {
	TeacherID() string
	Available(slot models.TimeSlot) bool
	ExpertiseScore(class models.ScheduledClass) float64
	ClassTypePreference(class models.ScheduledClass) float64
	FeedbackScore() float64
}

// TeacherScore is the evaluation of one candidate for one class.
type TeacherScore struct {
	TeacherID string
	Eligible  bool
	Workload  float64
	Total     float64
}

// workload tracks per-teacher bookings for a single run.
type workload struct {
	mu     sync.Mutex
	counts map[string]int
	booked map[string][]models.TimeSlot
}

func newWorkload(existing []models.ScheduledClass) *workload {
	w := &workload{counts: make(map[string]int), booked: make(map[string][]models.TimeSlot)}
	for _, class := range existing {
		if class.TeacherID == nil || class.Status == models.ClassStatusCancelled {
			continue
		}
		w.add(*class.TeacherID, class.TimeSlot)
	}
	return w
}

func (w *workload) add(teacherID string, slot models.TimeSlot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[teacherID]++
	w.booked[teacherID] = append(w.booked[teacherID], slot)
}

func (w *workload) count(teacherID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[teacherID]
}

func (w *workload) overlaps(teacherID string, slot models.TimeSlot) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, booked := range w.booked[teacherID] {
		if SlotsOverlap(booked, slot) {
			return true
		}
	}
	return false
}

// workloadScore falls linearly with load against the cap; without a cap it
// decays as 1/(1+count).
func workloadScore(count, limit int) float64 {
	if limit <= 0 {
		return 1 / float64(1+count)
	}
	return math.Max(0, 1-float64(count)/float64(limit))
}

func (w *workload) evaluate(candidate TeacherCandidate, class models.ScheduledClass, constraints models.SchedulingConstraints) TeacherScore {
	id := candidate.TeacherID()
	score := TeacherScore{TeacherID: id}
	if w.overlaps(id, class.TimeSlot) || !candidate.Available(class.TimeSlot) {
		return score
	}
	count := w.count(id)
	if limit := constraints.MaxConcurrentClassesPerTeacher; limit > 0 && count >= limit {
		return score
	}
	score.Eligible = true
	score.Workload = workloadScore(count, constraints.MaxConcurrentClassesPerTeacher)
	score.Total = workloadWeight*score.Workload +
		expertiseWeight*clamp01(candidate.ExpertiseScore(class)) +
		classTypeWeight*clamp01(candidate.ClassTypePreference(class)) +
		feedbackWeight*clamp01(candidate.FeedbackScore())
	return score
}

// AssignTeachers fills TeacherID on each class in order, never double-booking a
// teacher against this run or the existing schedule. Classes that already
// carry a teacher are kept as-is and count toward that teacher's load. Exact
// score ties go to the lowest teacher ID.
func AssignTeachers(
	classes []models.ScheduledClass,
	candidates []TeacherCandidate,
	existing []models.ScheduledClass,
	constraints models.SchedulingConstraints,
) ([]models.ScheduledClass, []models.UnassignedClass) {
	ledger := newWorkload(existing)
	assigned := make([]models.ScheduledClass, len(classes))
	copy(assigned, classes)

	for i := range assigned {
		if assigned[i].TeacherID != nil {
			ledger.add(*assigned[i].TeacherID, assigned[i].TimeSlot)
		}
	}

	var unassigned []models.UnassignedClass
	for i := range assigned {
		class := &assigned[i]
		if class.TeacherID != nil {
			continue
		}
		if len(candidates) == 0 {
			unassigned = append(unassigned, models.UnassignedClass{ClassID: class.ID, Reason: reasonNoTeachers})
			continue
		}

		var best *TeacherScore
		for _, candidate := range candidates {
			score := ledger.evaluate(candidate, *class, constraints)
			if !score.Eligible {
				continue
			}
			if best == nil || score.Total > best.Total || (score.Total == best.Total && score.TeacherID < best.TeacherID) {
				s := score
				best = &s
			}
		}
		if best == nil {
			unassigned = append(unassigned, models.UnassignedClass{ClassID: class.ID, Reason: reasonAllBusy})
			continue
		}
		teacherID := best.TeacherID
		class.TeacherID = &teacherID
		ledger.add(teacherID, class.TimeSlot)
	}
	return assigned, unassigned
}
