package scheduler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
	appErrors "github.com/noah-isme/lms-class-scheduler/pkg/errors"
)

func baseSnapshot() Snapshot {
	var students []models.StudentProgress
	for i := 1; i <= 7; i++ {
		students = append(students, student(fmt.Sprintf("s%d", i), 1, 1, "c1", "c2"))
	}
	return Snapshot{
		CourseID: "course-1",
		Students: students,
		Catalog:  []models.LearningContent{content("c1", 30), content("c2", 30)},
		Slots: []models.TimeSlot{
			withLocation(slot("mon-10", "monday", "10:00", "11:00", 60, 6), "room-a"),
			withLocation(slot("tue-10", "tuesday", "10:00", "11:00", 60, 6), "room-a"),
			withLocation(slot("wed-15", "wednesday", "15:00", "16:00", 60, 6), "room-a"),
		},
		Teachers: []TeacherCandidate{teacherStub{id: "t-1", expertise: 0.8}, teacherStub{id: "t-2", expertise: 0.6}},
		Constraints: models.SchedulingConstraints{
			MaxStudentsPerClass:            6,
			MaxConcurrentClassesPerTeacher: 8,
			MaxContentPerClass:             3,
		},
		Weights: defaultWeights(),
	}
}

func TestRunSchedulesEveryGroup(t *testing.T) {
	snapshot := baseSnapshot()

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	require.Len(t, result.Classes, 2)
	assert.Empty(t, result.Unscheduled)
	assert.Empty(t, result.Unassigned)
	assert.Empty(t, result.Conflicts)

	group, individual := result.Classes[0], result.Classes[1]
	assert.Equal(t, models.ClassTypeGroup, group.ClassType)
	assert.Len(t, group.StudentIDs, 6)
	assert.Equal(t, models.ClassTypeIndividual, individual.ClassType)
	assert.Equal(t, []string{"s7"}, individual.StudentIDs)
	assert.Equal(t, "mon-10", group.TimeSlot.ID)
	assert.Equal(t, "tue-10", individual.TimeSlot.ID, "booked slots leave the pool")
	assert.Equal(t, 0, group.TimeSlot.Capacity.AvailableSpots)
	assert.False(t, group.TimeSlot.IsAvailable)
	assert.NotEmpty(t, group.Rationale)
	assert.NotEmpty(t, group.Alternatives)

	for _, c := range result.Classes {
		assert.Equal(t, "course-1", c.CourseID)
		assert.Equal(t, models.ClassStatusScheduled, c.Status)
		assert.LessOrEqual(t, len(c.StudentIDs), c.TimeSlot.Capacity.MaxStudents)
		assert.GreaterOrEqual(t, c.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, c.ConfidenceScore, 1.0)
		require.NotNil(t, c.TeacherID)
	}

	assert.Equal(t, models.RunStats{
		Students:          7,
		Groups:            2,
		ClassesScheduled:  2,
		AverageConfidence: (group.ConfidenceScore + individual.ConfidenceScore) / 2,
	}, result.Stats)
	assert.True(t, snapshot.Slots[0].IsAvailable, "snapshot slots must not be mutated")
}

func TestRunContentIsCommonUnlearned(t *testing.T) {
	snapshot := baseSnapshot()
	snapshot.Students[0].UnlearnedContent = []string{"c2"}

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	students := map[string]models.StudentProgress{}
	for _, s := range snapshot.Students {
		students[s.StudentID] = s
	}
	for _, c := range result.Classes {
		for _, item := range c.Content {
			for _, id := range c.StudentIDs {
				assert.Contains(t, students[id].UnlearnedContent, item.ID)
			}
		}
	}
	require.NotEmpty(t, result.Classes)
	require.Len(t, result.Classes[0].Content, 1)
	assert.Equal(t, "c2", result.Classes[0].Content[0].ID)
}

func TestRunLimitsContentPerClass(t *testing.T) {
	snapshot := baseSnapshot()
	snapshot.Students = snapshot.Students[:1]
	snapshot.Students[0].UnlearnedContent = []string{"a", "b", "c", "d"}
	snapshot.Catalog = []models.LearningContent{content("a", 15), content("b", 15), content("c", 15), content("d", 15)}
	snapshot.Constraints.MaxContentPerClass = 2

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	require.Len(t, result.Classes, 1)
	assert.Len(t, result.Classes[0].Content, 2)
}

func TestRunReportsUnscheduledGroups(t *testing.T) {
	snapshot := baseSnapshot()
	snapshot.Students = []models.StudentProgress{
		student("lost", 1, 1, "not-in-catalog"),
		student("x1", 2, 1, "c1"),
		student("x2", 2, 1, "c1"),
	}
	snapshot.Slots = []models.TimeSlot{slot("tiny", "monday", "10:00", "11:00", 60, 1)}

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	assert.Empty(t, result.Classes)
	require.Len(t, result.Unscheduled, 2)
	assert.Equal(t, models.ReasonNoCommonContent, result.Unscheduled[0].Reason)
	assert.Equal(t, []string{"lost"}, result.Unscheduled[0].StudentIDs)
	assert.Equal(t, models.ReasonNoEligibleSlot, result.Unscheduled[1].Reason)
	assert.Equal(t, []string{"x1", "x2"}, result.Unscheduled[1].StudentIDs)
	assert.Equal(t, []string{"c1"}, result.Unscheduled[1].ContentIDs)
	assert.Equal(t, 2, result.Stats.GroupsUnscheduled)
}

func TestRunNeverExceedsSlotMaxStudents(t *testing.T) {
	snapshot := baseSnapshot()
	snapshot.Students = snapshot.Students[:5]
	for i := range snapshot.Students {
		snapshot.Students[i].UnlearnedContent = []string{"c1"}
	}
	oversold := slot("mon-10", "monday", "10:00", "11:00", 60, 3)
	oversold.Capacity.AvailableSpots = 5
	snapshot.Slots = []models.TimeSlot{oversold}

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	assert.Empty(t, result.Classes)
	assert.Empty(t, result.Conflicts)
	require.Len(t, result.Unscheduled, 1)
	assert.Equal(t, models.ReasonNoEligibleSlot, result.Unscheduled[0].Reason)
	assert.Len(t, result.Unscheduled[0].StudentIDs, 5)

	snapshot.Slots = append(snapshot.Slots, slot("tue-10", "tuesday", "10:00", "11:00", 60, 5))
	result, err = Run(snapshot, fixedOptions())
	require.NoError(t, err)

	require.Len(t, result.Classes, 1)
	assert.Equal(t, "tue-10", result.Classes[0].TimeSlot.ID)
	assert.Empty(t, result.Conflicts)
}

func TestRunReportsUnassignedClasses(t *testing.T) {
	snapshot := baseSnapshot()
	snapshot.Teachers = nil

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	require.Len(t, result.Classes, 2)
	require.Len(t, result.Unassigned, 2)
	assert.Equal(t, 2, result.Stats.ClassesUnassigned)
	for _, c := range result.Classes {
		assert.Nil(t, c.TeacherID)
	}
}

func TestRunDetectsConflictsWithExistingSchedule(t *testing.T) {
	snapshot := baseSnapshot()
	snapshot.Students = snapshot.Students[:1]
	snapshot.Slots = snapshot.Slots[:1]
	existing := class("existing", withLocation(slot("old", "monday", "10:30", "11:30", 60, 6), "room-b"), "s1")
	snapshot.Existing = []models.ScheduledClass{existing}

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	require.Len(t, result.Classes, 1)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictTimeOverlap, result.Conflicts[0].Type)
	assert.ElementsMatch(t, []string{"existing", result.Classes[0].ID}, result.Conflicts[0].EntityIDs)
}

func TestRunTeachersNeverOverlap(t *testing.T) {
	snapshot := baseSnapshot()
	var students []models.StudentProgress
	for i := 0; i < 12; i++ {
		students = append(students, student(fmt.Sprintf("s%02d", i), i%4, 1, "c1"))
	}
	snapshot.Students = students
	snapshot.Constraints.MaxStudentsPerClass = 2
	snapshot.Slots = []models.TimeSlot{
		slot("a", "monday", "09:00", "10:00", 60, 4),
		slot("b", "monday", "09:30", "10:30", 60, 4),
		slot("c", "monday", "10:00", "11:00", 60, 4),
		slot("d", "tuesday", "09:00", "10:00", 60, 4),
		slot("e", "tuesday", "09:00", "10:00", 60, 4),
		slot("f", "tuesday", "13:00", "14:00", 60, 4),
	}

	result, err := Run(snapshot, fixedOptions())
	require.NoError(t, err)

	for i := 0; i < len(result.Classes); i++ {
		for j := i + 1; j < len(result.Classes); j++ {
			a, b := result.Classes[i], result.Classes[j]
			if a.TeacherID == nil || b.TeacherID == nil || *a.TeacherID != *b.TeacherID {
				continue
			}
			assert.False(t, SlotsOverlap(a.TimeSlot, b.TimeSlot), "teacher %s double-booked on %s and %s", *a.TeacherID, a.ID, b.ID)
		}
	}
	assert.Zero(t, countByType(result.Conflicts, models.ConflictTeacherUnavailable))
}

func TestRunIsDeterministic(t *testing.T) {
	first, err := Run(baseSnapshot(), fixedOptions())
	require.NoError(t, err)
	second, err := Run(baseSnapshot(), fixedOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunEmptySnapshot(t *testing.T) {
	result, err := Run(Snapshot{Weights: defaultWeights()}, fixedOptions())
	require.NoError(t, err)

	assert.Empty(t, result.Classes)
	assert.Empty(t, result.Conflicts)
	assert.Zero(t, result.Stats.AverageConfidence)
}

func TestRunRejectsMalformedSnapshot(t *testing.T) {
	cases := map[string]func(*Snapshot){
		"inverted slot":   func(s *Snapshot) { s.Slots[0].EndTime = "09:00" },
		"bad clock":       func(s *Snapshot) { s.Slots[0].StartTime = "10h" },
		"short clock":     func(s *Snapshot) { s.Slots[0].StartTime = "9:5" },
		"signed clock":    func(s *Snapshot) { s.Slots[0].EndTime = "+11:00" },
		"duplicate slot":  func(s *Snapshot) { s.Slots[1].ID = s.Slots[0].ID },
		"negative spots":  func(s *Snapshot) { s.Slots[0].Capacity.AvailableSpots = -1 },
		"missing student": func(s *Snapshot) { s.Students[0].StudentID = "" },
		"missing course":  func(s *Snapshot) { s.Students[0].CourseID = "" },
		"progress range":  func(s *Snapshot) { s.Students[0].ProgressPercentage = 120 },
		"content id":      func(s *Snapshot) { s.Catalog[0].ID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			snapshot := baseSnapshot()
			mutate(&snapshot)

			result, err := Run(snapshot, fixedOptions())

			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidSnapshot))
		})
	}
}

func TestRunRejectsInvalidWeights(t *testing.T) {
	snapshot := baseSnapshot()
	snapshot.Weights = models.SchedulingScoringWeights{}

	_, err := Run(snapshot, fixedOptions())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	snapshot.Weights = defaultWeights()
	snapshot.Weights.ClassSizeOptimization = -0.1
	_, err = Run(snapshot, fixedOptions())
	assert.True(t, errors.Is(err, appErrors.ErrInvalidWeights))
}
