package scheduler

import "github.com/noah-isme/lms-class-scheduler/internal/models"

const (
	maxFeedbackRating    = 5.0
	neutralPreference    = 0.7
	mismatchedPreference = 0.4
	offCourseExpertise   = 0.3
)

// ProfileCandidate scores a stored teacher profile for assignment.
type ProfileCandidate struct {
	Profile models.TeacherProfile
}

// CandidatesFromProfiles wraps profiles in the order given.
func CandidatesFromProfiles(profiles []models.TeacherProfile) []TeacherCandidate {
	candidates := make([]TeacherCandidate, 0, len(profiles))
	for _, profile := range profiles {
		candidates = append(candidates, ProfileCandidate{Profile: profile})
	}
	return candidates
}

func (p ProfileCandidate) TeacherID() string { return p.Profile.ID }

// Available is true when some availability window covers the slot. A profile
// without windows is treated as available at any time.
func (p ProfileCandidate) Available(slot models.TimeSlot) bool {
	if len(p.Profile.Availability) == 0 {
		return true
	}
	for _, window := range p.Profile.Availability {
		if windowCovers(window, slot.Window()) {
			return true
		}
	}
	return false
}

func (p ProfileCandidate) ExpertiseScore(class models.ScheduledClass) float64 {
	for _, courseID := range p.Profile.CourseIDs {
		if courseID == class.CourseID {
			return 1
		}
	}
	return offCourseExpertise
}

func (p ProfileCandidate) ClassTypePreference(class models.ScheduledClass) float64 {
	switch p.Profile.PreferredClassType {
	case "":
		return neutralPreference
	case class.ClassType:
		return 1
	default:
		return mismatchedPreference
	}
}

func (p ProfileCandidate) FeedbackScore() float64 {
	return clamp01(p.Profile.FeedbackRating / maxFeedbackRating)
}
