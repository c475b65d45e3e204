// Package slots searches working-hour windows for free time to move an
// event to.
package slots

import (
	"eventcal/internal/model"
	"eventcal/internal/timeofday"
)

const (
	// DefaultMaxResults bounds the number of suggestions returned.
	DefaultMaxResults = 5
	// DefaultStepMinutes is the distance between candidate start times.
	DefaultStepMinutes = 30
)

// Window is a working-hour range in minutes after midnight, [Start, End).
type Window struct {
	Start int
	End   int
}

// DefaultWindows are the morning and afternoon working hours, searched in
// this order.
var DefaultWindows = []Window{
	{Start: 8 * 60, End: 12 * 60},
	{Start: 13 * 60, End: 18 * 60},
}

// Options configures a search. Zero values fall back to the defaults.
type Options struct {
	Windows     []Window
	StepMinutes int
	MaxResults  int
}

func (o Options) normalized() Options {
	if len(o.Windows) == 0 {
		o.Windows = DefaultWindows
	}
	if o.StepMinutes <= 0 {
		o.StepMinutes = DefaultStepMinutes
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	return o
}

// FindAlternatives returns up to maxResults free slots on date with the same
// duration as target, using the default windows and step. maxResults <= 0
// means DefaultMaxResults.
func FindAlternatives(target model.Event, date string, others []model.Occurrence, maxResults int) []model.Slot {
	return Find(target, date, others, Options{MaxResults: maxResults})
}

// Find walks each window from its opening time in StepMinutes increments
// and accepts every candidate of target's duration that fits inside the
// window and overlaps none of the occurrences on date (target itself, by id,
// is ignored). Results are in time order, windows in the order given. An
// empty result means no free slot exists; it is not an error.
func Find(target model.Event, date string, others []model.Occurrence, opts Options) []model.Slot {
	opts = opts.normalized()
	out := make([]model.Slot, 0, opts.MaxResults)

	duration := target.DurationMinutes()
	if duration <= 0 {
		return out
	}

	type busy struct{ start, end int }
	day := make([]busy, 0, len(others))
	for _, o := range others {
		if o.Date != date || o.ID == target.ID {
			continue
		}
		day = append(day, busy{start: o.StartMinutes(), end: o.EndMinutes()})
	}

	for _, w := range opts.Windows {
		for start := w.Start; start+duration <= w.End; start += opts.StepMinutes {
			end := start + duration

			free := true
			for _, b := range day {
				if timeofday.Overlap(start, end, b.start, b.end) {
					free = false
					break
				}
			}
			if !free {
				continue
			}

			out = append(out, model.Slot{
				StartTime: timeofday.Format(start),
				EndTime:   timeofday.Format(end),
			})
			if len(out) >= opts.MaxResults {
				return out
			}
		}
	}

	return out
}
