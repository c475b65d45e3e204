// Package importer validates and normalizes externally supplied event
// records before they enter the store.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"eventcal/internal/model"
)

// Mode selects how an accepted batch is applied to the existing events.
type Mode string

const (
	// Merge appends the imported events to the existing ones.
	Merge Mode = "merge"
	// Replace discards existing events and keeps only the imported ones.
	Replace Mode = "replace"
)

// ParseMode maps "merge"/"replace" (any case) to a Mode. Empty means Merge.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Merge:
		return Merge, nil
	case Replace:
		return Replace, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// RequiredFields must be present on every imported record.
var RequiredFields = []string{"title", "date", "startTime", "endTime"}

// ErrMissingFields is wrapped by ValidationError.
var ErrMissingFields = errors.New("some events are missing required fields")

// Record is one raw event as supplied by an import source. Nil pointers
// mark absent fields.
type Record struct {
	Title       *string `json:"title"`
	Date        *string `json:"date"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	Color       *string `json:"color"`
	Recurring   *string `json:"recurring"`
}

// RecordProblem lists the required fields absent from the record at Index.
type RecordProblem struct {
	Index   int      `json:"index"`
	Missing []string `json:"missing"`
}

// ValidationError rejects a whole batch.
type ValidationError struct {
	Problems []RecordProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("event %d missing %s", p.Index, strings.Join(p.Missing, ", ")))
	}
	return fmt.Sprintf("%s (each event must have: %s): %s",
		ErrMissingFields, strings.Join(RequiredFields, ", "), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrMissingFields }

// ErrEmpty rejects a batch with no records.
var ErrEmpty = errors.New("import contains no events")

// Decode parses a JSON array of records. A JSON null is rejected.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("import must be a JSON array of events: %w", err)
	}
	if records == nil {
		return nil, errors.New("import must be a JSON array of events, got null")
	}
	return records, nil
}

// Validate checks every record for the required fields. A single record
// with a missing field rejects the batch.
func Validate(records []Record) error {
	var problems []RecordProblem
	for i, r := range records {
		if missing := r.missing(); len(missing) > 0 {
			problems = append(problems, RecordProblem{Index: i, Missing: missing})
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (r Record) missing() []string {
	var out []string
	if r.Title == nil {
		out = append(out, "title")
	}
	if r.Date == nil {
		out = append(out, "date")
	}
	if r.StartTime == nil {
		out = append(out, "startTime")
	}
	if r.EndTime == nil {
		out = append(out, "endTime")
	}
	return out
}

// Normalize turns a validated record into an Event with id and defaults:
// category meeting, priority lowercased (default medium), empty
// description, recurring none, default color.
func Normalize(r Record, id string) model.Event {
	ev := model.Event{
		ID:          id,
		Title:       deref(r.Title),
		Date:        deref(r.Date),
		StartTime:   deref(r.StartTime),
		EndTime:     deref(r.EndTime),
		Description: deref(r.Description),
		Category:    model.Category(deref(r.Category)),
		Priority:    model.NormalizePriority(deref(r.Priority)),
		Color:       deref(r.Color),
		Recurring:   model.Recurrence(deref(r.Recurring)),
	}
	if ev.Category == "" {
		ev.Category = model.CategoryMeeting
	}
	if ev.Recurring == "" {
		ev.Recurring = model.RecurNone
	}
	if ev.Color == "" {
		ev.Color = model.DefaultColor
	}
	return ev
}

// Prepare validates the batch and normalizes every record, assigning ids
// from newID. Nothing is returned unless every record is acceptable.
func Prepare(records []Record, newID func() string) ([]model.Event, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	if err := Validate(records); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(records))
	for _, r := range records {
		out = append(out, Normalize(r, newID()))
	}
	return out, nil
}

// Apply combines existing and imported events according to mode.
func Apply(existing, imported []model.Event, mode Mode) []model.Event {
	if mode == Replace {
		return append([]model.Event{}, imported...)
	}
	out := make([]model.Event, 0, len(existing)+len(imported))
	out = append(out, existing...)
	return append(out, imported...)
}

// Ptr returns a pointer to s; handy when building records in code.
func Ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
