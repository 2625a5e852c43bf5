package scheduler

import (
	"sort"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// Group is a cohort of students sharing the same unit and lesson.
type Group struct {
	Unit     int
	Lesson   int
	Students []models.StudentProgress
}

// Size returns the number of students in the group.
func (g Group) Size() int {
	return len(g.Students)
}

// StudentIDs lists member IDs in group order.
func (g Group) StudentIDs() []string {
	ids := make([]string, 0, len(g.Students))
	for _, student := range g.Students {
		ids = append(ids, student.StudentID)
	}
	return ids
}

// GroupByProgress partitions students into ordered cohorts no larger than
// MaxStudentsPerClass, where every member shares (unit, lesson). A limit of
// zero or less places each student in their own group.
func GroupByProgress(students []models.StudentProgress, constraints models.SchedulingConstraints) []Group {
	if len(students) == 0 {
		return nil
	}
	limit := constraints.MaxStudentsPerClass
	if limit <= 0 {
		limit = 1
	}

	sorted := make([]models.StudentProgress, len(students))
	copy(sorted, students)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CurrentUnit == sorted[j].CurrentUnit {
			return sorted[i].CurrentLesson < sorted[j].CurrentLesson
		}
		return sorted[i].CurrentUnit < sorted[j].CurrentUnit
	})

	var groups []Group
	var current *Group
	for _, student := range sorted {
		if current == nil ||
			current.Unit != student.CurrentUnit ||
			current.Lesson != student.CurrentLesson ||
			current.Size() >= limit {
			groups = append(groups, Group{Unit: student.CurrentUnit, Lesson: student.CurrentLesson})
			current = &groups[len(groups)-1]
		}
		current.Students = append(current.Students, student)
	}
	return groups
}
