package scheduler

import (
	"strings"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// parseClock converts a two-digit HH:MM clock into minutes after midnight.
// 24:00 is accepted as the end of day.
func parseClock(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 5 || raw[2] != ':' {
		return 0, false
	}
	hour, ok := twoDigits(raw[:2])
	if !ok || hour > 24 {
		return 0, false
	}
	minute, ok := twoDigits(raw[3:])
	if !ok || minute > 59 {
		return 0, false
	}
	if hour == 24 && minute != 0 {
		return 0, false
	}
	return hour*60 + minute, true
}

func twoDigits(raw string) (int, bool) {
	if raw[0] < '0' || raw[0] > '9' || raw[1] < '0' || raw[1] > '9' {
		return 0, false
	}
	return int(raw[0]-'0')*10 + int(raw[1]-'0'), true
}

func normalizeDay(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

type span struct {
	day        string
	start, end int
}

func toSpan(w models.TimeWindow) (span, bool) {
	start, ok := parseClock(w.StartTime)
	if !ok {
		return span{}, false
	}
	end, ok := parseClock(w.EndTime)
	if !ok || end <= start {
		return span{}, false
	}
	return span{day: normalizeDay(w.DayOfWeek), start: start, end: end}, true
}

// WindowsOverlap reports whether two windows intersect on the same weekday.
// Touching windows (one ends when the other starts) do not overlap.
func WindowsOverlap(a, b models.TimeWindow) bool {
	sa, ok := toSpan(a)
	if !ok {
		return false
	}
	sb, ok := toSpan(b)
	if !ok {
		return false
	}
	return sa.day == sb.day && sa.start < sb.end && sb.start < sa.end
}

// SlotsOverlap reports whether two time slots intersect.
func SlotsOverlap(a, b models.TimeSlot) bool {
	return WindowsOverlap(a.Window(), b.Window())
}

// windowCovers reports whether outer fully contains inner on the same weekday.
func windowCovers(outer, inner models.TimeWindow) bool {
	so, ok := toSpan(outer)
	if !ok {
		return false
	}
	si, ok := toSpan(inner)
	if !ok {
		return false
	}
	return so.day == si.day && so.start <= si.start && si.end <= so.end
}

func overlapsAny(slot models.TimeSlot, windows []models.TimeWindow) bool {
	w := slot.Window()
	for _, candidate := range windows {
		if WindowsOverlap(w, candidate) {
			return true
		}
	}
	return false
}

// startHour returns the slot start hour, or -1 when the start time is unparseable.
func startHour(slot models.TimeSlot) int {
	minutes, ok := parseClock(slot.StartTime)
	if !ok {
		return -1
	}
	return minutes / 60
}
