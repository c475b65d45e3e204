package calendar

import (
	"fmt"
	"strings"
	"time"

	"eventcal/internal/model"
)

// View is a calendar presentation granularity.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// ParseView maps "day", "week" or "month" (any case) to a View; empty
// means month.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewMonth:
		return ViewMonth, nil
	case ViewWeek:
		return ViewWeek, nil
	case ViewDay:
		return ViewDay, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Days lists the dates a view shows around anchor: the anchor alone for a
// day view, the seven days of its week for a week view, and whole weeks
// covering its month for a month view. weekStart is "monday" or "sunday".
func Days(view View, anchor time.Time, weekStart string) []string {
	anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	var from, to time.Time
	switch view {
	case ViewDay:
		return []string{model.FormatDate(anchor)}
	case ViewWeek:
		from = startOfWeek(anchor, weekStart)
		to = from.AddDate(0, 0, 6)
	default:
		first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		from = startOfWeek(first, weekStart)
		to = startOfWeek(last, weekStart).AddDate(0, 0, 6)
	}

	out := make([]string, 0, 42)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, model.FormatDate(d))
	}
	return out
}

func startOfWeek(d time.Time, weekStart string) time.Time {
	first := time.Monday
	if weekStart == "sunday" {
		first = time.Sunday
	}
	offset := (int(d.Weekday()) - int(first) + 7) % 7
	return d.AddDate(0, 0, -offset)
}
