package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"eventcal/internal/timeofday"
)

// DateLayout is the calendar date format used by every Event and Occurrence.
const DateLayout = "2006-01-02"

// DefaultColor is used when an event carries no display color.
const DefaultColor = "#3b82f6"

// Category is informational only; the scheduling core never branches on it.
type Category string

const (
	CategoryMeeting  Category = "meeting"
	CategoryDeadline Category = "deadline"
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryReminder Category = "reminder"
)

// Priority is used for secondary ordering in agenda views only.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recurrence drives the recurrence expander.
type Recurrence string

const (
	RecurNone    Recurrence = "none"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
	RecurYearly  Recurrence = "yearly"
)

var categoryColors = map[Category]string{
	CategoryMeeting:  "#3b82f6",
	CategoryDeadline: "#ef4444",
	CategoryPersonal: "#8b5cf6",
	CategoryWork:     "#10b981",
	CategoryReminder: "#f59e0b",
}

// ErrInvalidEvent is wrapped by Validate failures.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the canonical, persisted calendar record. For recurring events
// Date is the anchor (first) occurrence.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Date        string     `json:"date"`
	StartTime   string     `json:"startTime"`
	EndTime     string     `json:"endTime"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Priority    Priority   `json:"priority"`
	Color       string     `json:"color"`
	Recurring   Recurrence `json:"recurring"`
}

// Occurrence is one concrete dated instance of an Event. It is derived on
// every query and never persisted.
type Occurrence struct {
	Event

	// OriginalDate is the anchor date of the source event; empty for
	// non-recurring events.
	OriginalDate string `json:"originalDate,omitempty"`
	IsRecurring  bool   `json:"isRecurring,omitempty"`
}

// ConflictGroup lists the events on Date that overlap at least one other
// event on the same date, ordered by start time.
type ConflictGroup struct {
	Date   string       `json:"date"`
	Events []Occurrence `json:"events"`
}

// Slot is a candidate time window on a single date.
type Slot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// StartMinutes returns the start time as minutes after midnight.
func (e Event) StartMinutes() int { return timeofday.Minutes(e.StartTime) }

// EndMinutes returns the end time as minutes after midnight.
func (e Event) EndMinutes() int { return timeofday.Minutes(e.EndTime) }

// DurationMinutes is EndMinutes - StartMinutes, which may be non-positive
// for events that were never validated.
func (e Event) DurationMinutes() int { return e.EndMinutes() - e.StartMinutes() }

// IsRecurringRule reports whether the event carries a recurrence rule
// other than none.
func (e Event) IsRecurringRule() bool {
	return e.Recurring != "" && e.Recurring != RecurNone
}

// Validate performs the checks an input form would: non-empty title,
// well-formed date and times, end strictly after start and known enum values.
// The scheduling core itself never calls this.
func (e Event) Validate() error {
	var problems []string

	if strings.TrimSpace(e.Title) == "" {
		problems = append(problems, "title is required")
	}
	if _, err := ParseDate(e.Date); err != nil {
		problems = append(problems, fmt.Sprintf("date %q is not YYYY-MM-DD", e.Date))
	}
	start, serr := timeofday.Parse(e.StartTime)
	if serr != nil {
		problems = append(problems, fmt.Sprintf("startTime %q is not HH:MM", e.StartTime))
	}
	end, eerr := timeofday.Parse(e.EndTime)
	if eerr != nil {
		problems = append(problems, fmt.Sprintf("endTime %q is not HH:MM", e.EndTime))
	}
	if serr == nil && eerr == nil && end <= start {
		problems = append(problems, "endTime must be after startTime")
	}
	if e.Category != "" && !e.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", e.Category))
	}
	if e.Priority != "" && !NormalizePriority(string(e.Priority)).Valid() {
		problems = append(problems, fmt.Sprintf("unknown priority %q", e.Priority))
	}
	if e.Recurring != "" && !e.Recurring.Valid() {
		problems = append(problems, fmt.Sprintf("unknown recurrence %q", e.Recurring))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(problems, "; "))
	}
	return nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryColors[c]
	return ok
}

// Color returns the display color associated with the category, or
// DefaultColor for unknown categories.
func (c Category) Color() string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return DefaultColor
}

// Valid reports whether p is one of high, medium or low.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities high (0) before medium (1) before low (2). Unknown
// values rank as medium.
func (p Priority) Rank() int {
	switch NormalizePriority(string(p)) {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// NormalizePriority lowercases p and defaults empty input to medium.
func NormalizePriority(p string) Priority {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return PriorityMedium
	}
	return Priority(p)
}

// Valid reports whether r is a known recurrence rule.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC. UTC is used purely as
// a fixed zone for day arithmetic; dates carry no timezone meaning.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AsOccurrences wraps plain events as non-recurring occurrences so they can
// be fed to the conflict detector and slot finder directly.
func AsOccurrences(events []Event) []Occurrence {
	out := make([]Occurrence, 0, len(events))
	for _, ev := range events {
		out = append(out, Occurrence{Event: ev})
	}
	return out
}
