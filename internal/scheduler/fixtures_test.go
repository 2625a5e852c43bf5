package scheduler

import (
	"fmt"
	"time"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

func student(id string, unit, lesson int, unlearned ...string) models.StudentProgress {
	return models.StudentProgress{
		StudentID:          id,
		CourseID:           "course-1",
		CurrentUnit:        unit,
		CurrentLesson:      lesson,
		ProgressPercentage: 40,
		UnlearnedContent:   unlearned,
	}
}

func content(id string, minutes int) models.LearningContent {
	return models.LearningContent{
		ID:                id,
		Title:             "Lesson " + id,
		UnitNumber:        1,
		LessonNumber:      1,
		DifficultyLevel:   5,
		IsRequired:        true,
		EstimatedDuration: minutes,
	}
}

func slot(id, day, start, end string, duration, capacity int) models.TimeSlot {
	return models.TimeSlot{
		ID:          id,
		DayOfWeek:   day,
		StartTime:   start,
		EndTime:     end,
		Duration:    duration,
		Capacity:    models.SlotCapacity{MaxStudents: capacity, AvailableSpots: capacity},
		IsAvailable: true,
	}
}

func withLocation(s models.TimeSlot, location string) models.TimeSlot {
	s.Location = &location
	return s
}

func defaultWeights() models.SchedulingScoringWeights {
	return models.SchedulingScoringWeights{
		ContentProgression:    0.3,
		StudentAvailability:   0.3,
		ClassSizeOptimization: 0.2,
		ScheduleContinuity:    0.2,
	}
}

func strPtr(v string) *string { return &v }

var fixedNow = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func fixedOptions() Options {
	n := 0
	return Options{
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
		Now: func() time.Time { return fixedNow },
	}
}

type teacherStub struct {
	id          string
	unavailable bool
	expertise   float64
	preference  float64
	feedback    float64
}

func (t teacherStub) TeacherID() string { return t.id }
func (t teacherStub) Available(models.TimeSlot) bool { return !t.unavailable }
func (t teacherStub) ExpertiseScore(models.ScheduledClass) float64 { return t.expertise }
func (t teacherStub) ClassTypePreference(models.ScheduledClass) float64 { return t.preference }
func (t teacherStub) FeedbackScore() float64 { return t.feedback }
