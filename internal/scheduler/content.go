package scheduler

import (
	"math"
	"sort"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

const (
	defaultSkillLevel = 5.0

	prerequisitePoints = 50.0
	difficultyPoints   = 30.0
	requiredPoints     = 20.0
	durationPoints     = 10.0
)

// ContentScore breaks down how well a content item fits a group.
type ContentScore struct {
	Content             models.LearningContent
	PrerequisitesMet    bool
	DifficultyAlignment float64
	DurationScore       float64
	Total               float64
}

type stringSet map[string]struct{}

func newStringSet(items []string) stringSet {
	set := make(stringSet, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func (s stringSet) has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s stringSet) hasAll(items []string) bool {
	for _, item := range items {
		if !s.has(item) {
			return false
		}
	}
	return true
}

// DurationScore rates a content duration in minutes: 1.0 for 45-90, 0.7 for
// 30-120, 0.3 otherwise.
func DurationScore(minutes int) float64 {
	switch {
	case minutes >= 45 && minutes <= 90:
		return 1.0
	case minutes >= 30 && minutes <= 120:
		return 0.7
	default:
		return 0.3
	}
}

// studentSkillLevel is the mean assessment score, defaulting to 5.
func studentSkillLevel(student models.StudentProgress) float64 {
	if len(student.SkillAssessments) == 0 {
		return defaultSkillLevel
	}
	var sum float64
	for _, score := range student.SkillAssessments {
		sum += score
	}
	return sum / float64(len(student.SkillAssessments))
}

// averageSkillLevel is the group mean of per-student skill levels.
func averageSkillLevel(students []models.StudentProgress) float64 {
	if len(students) == 0 {
		return defaultSkillLevel
	}
	var sum float64
	for _, student := range students {
		sum += studentSkillLevel(student)
	}
	return sum / float64(len(students))
}

func difficultyFit(difficulty, skill float64) float64 {
	return 1 - math.Abs(difficulty-skill)/10
}

// CommonUnlearned returns catalog items present in every member's unlearned set,
// in catalog order.
func CommonUnlearned(students []models.StudentProgress, catalog []models.LearningContent) []models.LearningContent {
	if len(students) == 0 {
		return nil
	}
	sets := make([]stringSet, len(students))
	for i, student := range students {
		sets[i] = newStringSet(student.UnlearnedContent)
	}

	var common []models.LearningContent
	for _, content := range catalog {
		shared := true
		for _, set := range sets {
			if !set.has(content.ID) {
				shared = false
				break
			}
		}
		if shared {
			common = append(common, content)
		}
	}
	return common
}

func groupMeetsPrerequisites(students []models.StudentProgress, content models.LearningContent) bool {
	for _, student := range students {
		if !newStringSet(student.CompletedContent).hasAll(content.Prerequisites) {
			return false
		}
	}
	return true
}

// ScoreContent rates a content item against a group of students.
func ScoreContent(students []models.StudentProgress, content models.LearningContent) ContentScore {
	score := ContentScore{
		Content:             content,
		PrerequisitesMet:    groupMeetsPrerequisites(students, content),
		DifficultyAlignment: difficultyFit(content.DifficultyLevel, averageSkillLevel(students)),
		DurationScore:       DurationScore(content.EstimatedDuration),
	}
	if score.PrerequisitesMet {
		score.Total += prerequisitePoints
	}
	score.Total += score.DifficultyAlignment * difficultyPoints
	if content.IsRequired {
		score.Total += requiredPoints
	}
	score.Total += score.DurationScore * durationPoints
	return score
}

// RankContent scores the group's common unlearned content, best first. Equal
// totals keep catalog order.
func RankContent(group Group, catalog []models.LearningContent) []ContentScore {
	common := CommonUnlearned(group.Students, catalog)
	scores := make([]ContentScore, 0, len(common))
	for _, content := range common {
		scores = append(scores, ScoreContent(group.Students, content))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total > scores[j].Total
	})
	return scores
}

// SelectContent returns the ranked content for a group. The result is empty
// when the group shares no unlearned content.
func SelectContent(group Group, catalog []models.LearningContent) []models.LearningContent {
	ranked := RankContent(group, catalog)
	selected := make([]models.LearningContent, 0, len(ranked))
	for _, score := range ranked {
		selected = append(selected, score.Content)
	}
	return selected
}
