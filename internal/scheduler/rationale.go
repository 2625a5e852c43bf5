package scheduler

import (
	"fmt"
	"strings"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// Rationale explains a scheduling decision in plain language. It is pure
// formatting and plays no part in slot selection.
func Rationale(group Group, content []models.LearningContent, slot models.TimeSlot) string {
	var b strings.Builder
	if group.Size() == 1 {
		fmt.Fprintf(&b, "Individual class for 1 student at unit %d, lesson %d", group.Unit, group.Lesson)
	} else {
		fmt.Fprintf(&b, "Group class for %d students at unit %d, lesson %d", group.Size(), group.Unit, group.Lesson)
	}

	titles := make([]string, 0, len(content))
	for _, item := range content {
		title := item.Title
		if title == "" {
			title = item.ID
		}
		titles = append(titles, title)
	}
	if len(titles) > 0 {
		fmt.Fprintf(&b, " covering %s", strings.Join(titles, ", "))
	}

	fmt.Fprintf(&b, ". Scheduled %s %s-%s, %s.", slot.DayOfWeek, slot.StartTime, slot.EndTime, timeOfDayRemark(slot))
	return b.String()
}

func timeOfDayRemark(slot models.TimeSlot) string {
	hour := startHour(slot)
	switch {
	case hour >= 8 && hour < 11:
		return "a morning slot when focus is usually highest"
	case hour >= 11 && hour < 13:
		return "a late-morning slot with good engagement"
	case hour >= 13 && hour < 18:
		return "an afternoon slot"
	case hour >= 18 && hour < 20:
		return "an evening slot"
	default:
		return "an off-peak slot"
	}
}
