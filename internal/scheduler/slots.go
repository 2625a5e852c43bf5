package scheduler

import (
	"math"
	"sort"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

const (
	preferredTimeScore     = 1.0
	defaultPerformance     = 0.6
	bestPerformanceScore   = 1.0
	maxAlternatives        = 3
	confidenceContent      = 0.4
	confidenceSlot         = 0.3
	confidenceCohesion     = 0.2
	confidenceUtilization  = 0.1
	cohesionVarianceScale  = 2500.0
	alignmentUnlearned     = 1.0
	alignmentPrerequisites = 0.5
	alignmentDifficulty    = 0.3
)

// SlotScore is the weighted evaluation of one slot for a group and content.
type SlotScore struct {
	Slot                models.TimeSlot
	DurationMatch       float64
	StudentAvailability float64
	Utilization         float64
	TimeOfDay           float64
	Total               float64
}

// TotalDuration sums estimated minutes across content items.
func TotalDuration(content []models.LearningContent) int {
	total := 0
	for _, item := range content {
		total += item.EstimatedDuration
	}
	return total
}

func durationMatch(slotMinutes, contentMinutes int) float64 {
	denominator := math.Max(float64(slotMinutes), float64(contentMinutes))
	if denominator <= 0 {
		return 1
	}
	return 1 - math.Abs(float64(slotMinutes-contentMinutes))/denominator
}

func studentAvailability(slot models.TimeSlot, students []models.StudentProgress) float64 {
	if len(students) == 0 {
		return 0
	}
	var sum float64
	for _, student := range students {
		if overlapsAny(slot, student.PreferredTimes) {
			sum += preferredTimeScore
			continue
		}
		performance := defaultPerformance
		if overlapsAny(slot, student.PerformanceMetrics.BestPerformingTimes) {
			performance = bestPerformanceScore
		}
		sum += 0.5 + 0.5*performance
	}
	return sum / float64(len(students))
}

func utilization(groupSize int, slot models.TimeSlot) float64 {
	if slot.Capacity.MaxStudents <= 0 {
		return 0
	}
	return float64(groupSize) / float64(slot.Capacity.MaxStudents)
}

// TimeOfDayScore rates a slot by its start hour.
func TimeOfDayScore(slot models.TimeSlot) float64 {
	hour := startHour(slot)
	switch {
	case hour >= 9 && hour < 11:
		return 1.0
	case hour >= 11 && hour < 13:
		return 0.9
	case hour >= 14 && hour < 16:
		return 0.8
	case hour >= 16 && hour < 18:
		return 0.7
	case hour >= 8 && hour < 9:
		return 0.6
	case hour >= 18 && hour < 20:
		return 0.5
	default:
		return 0.3
	}
}

// ScoreSlot evaluates a slot for a group and its selected content.
func ScoreSlot(slot models.TimeSlot, group Group, content []models.LearningContent, weights models.SchedulingScoringWeights) SlotScore {
	score := SlotScore{
		Slot:                slot,
		DurationMatch:       durationMatch(slot.Duration, TotalDuration(content)),
		StudentAvailability: studentAvailability(slot, group.Students),
		Utilization:         utilization(group.Size(), slot),
		TimeOfDay:           TimeOfDayScore(slot),
	}
	score.Total = score.DurationMatch*weights.ContentProgression +
		score.StudentAvailability*weights.StudentAvailability +
		score.Utilization*weights.ClassSizeOptimization +
		score.TimeOfDay*weights.ScheduleContinuity
	return score
}

// RankSlots scores every eligible slot in the inventory, best first. Exact ties
// go to the lowest slot ID.
func RankSlots(inv *Inventory, group Group, content []models.LearningContent, weights models.SchedulingScoringWeights) []SlotScore {
	eligible := inv.Eligible(group.Size())
	scores := make([]SlotScore, 0, len(eligible))
	for _, slot := range eligible {
		scores = append(scores, ScoreSlot(slot, group, content, weights))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Total == scores[j].Total {
			return scores[i].Slot.ID < scores[j].Slot.ID
		}
		return scores[i].Total > scores[j].Total
	})
	return scores
}

// FindBestSlot returns the top-scoring eligible slot plus up to three runner-ups.
// The boolean is false when no slot can seat the group.
func FindBestSlot(inv *Inventory, group Group, content []models.LearningContent, weights models.SchedulingScoringWeights) (SlotScore, []SlotScore, bool) {
	ranked := RankSlots(inv, group, content, weights)
	if len(ranked) == 0 {
		return SlotScore{}, nil, false
	}
	rest := ranked[1:]
	if len(rest) > maxAlternatives {
		rest = rest[:maxAlternatives]
	}
	return ranked[0], rest, true
}

// ContentAlignment averages, over students and content items, how well each
// item suits each student. Each pair is normalised to [0,1].
func ContentAlignment(students []models.StudentProgress, content []models.LearningContent) float64 {
	if len(students) == 0 || len(content) == 0 {
		return 0
	}
	const maxPair = alignmentUnlearned + alignmentPrerequisites + alignmentDifficulty
	var total float64
	for _, student := range students {
		unlearned := newStringSet(student.UnlearnedContent)
		completed := newStringSet(student.CompletedContent)
		skill := studentSkillLevel(student)
		var perStudent float64
		for _, item := range content {
			var pair float64
			if unlearned.has(item.ID) {
				pair += alignmentUnlearned
			}
			if completed.hasAll(item.Prerequisites) {
				pair += alignmentPrerequisites
			}
			pair += alignmentDifficulty * difficultyFit(item.DifficultyLevel, skill)
			perStudent += pair / maxPair
		}
		total += perStudent / float64(len(content))
	}
	return total / float64(len(students))
}

// GroupCohesion is 1 for a single student, otherwise shrinks with the
// population variance of progress percentages.
func GroupCohesion(students []models.StudentProgress) float64 {
	if len(students) <= 1 {
		return 1
	}
	var mean float64
	for _, student := range students {
		mean += student.ProgressPercentage
	}
	mean /= float64(len(students))
	var variance float64
	for _, student := range students {
		diff := student.ProgressPercentage - mean
		variance += diff * diff
	}
	variance /= float64(len(students))
	return 1 - math.Min(variance/cohesionVarianceScale, 1)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Confidence blends content alignment, slot score, cohesion and utilization
// into a [0,1] quality estimate.
func Confidence(group Group, content []models.LearningContent, slot SlotScore) float64 {
	value := confidenceContent*ContentAlignment(group.Students, content) +
		confidenceSlot*slot.Total +
		confidenceCohesion*GroupCohesion(group.Students) +
		confidenceUtilization*slot.Utilization
	return clamp01(value)
}
