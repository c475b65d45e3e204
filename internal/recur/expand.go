package recur

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	// DefaultHorizonMonths is how far ahead of "now" recurring events are
	// expanded when the caller does not configure it.
	DefaultHorizonMonths = 12
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// HorizonEnd is the last date (inclusive) that may carry an occurrence.
	// Only the calendar date is used.
	HorizonEnd time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records ids that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// Horizon returns the expansion boundary months calendar months after the
// date of now. A day-of-month missing from the target month is clamped to
// that month's last day.
func Horizon(now time.Time, months int) time.Time {
	if months <= 0 {
		months = DefaultHorizonMonths
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return addMonthsClamped(today, months)
}

// Expand produces every occurrence of events up to and including horizonEnd
// using the default safety cap. Output order follows the input: each event's
// occurrences are emitted together, in date order.
func Expand(events []model.Event, horizonEnd time.Time) []model.Occurrence {
	res, _ := ExpandOccurrences(events, ExpandConfig{HorizonEnd: horizonEnd})
	return res.Occurrences
}

// ExpandOccurrences expands each event into concrete occurrences:
//
//   - events without a rule (or with "none") are emitted once, unchanged
//   - daily/weekly/monthly/yearly events are emitted from their anchor date
//     while the occurrence date is not after cfg.HorizonEnd
//
// Monthly and yearly rules keep the anchor's day-of-month and clamp it to
// the last day of shorter months, so Jan 31 recurs on Feb 28/29, Mar 31,
// Apr 30 and so on.
func ExpandOccurrences(events []model.Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.HorizonEnd.IsZero() {
		return result, errors.New("expand: HorizonEnd is not set")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	horizon := dateOnly(cfg.HorizonEnd)

	out := make([]model.Occurrence, 0, len(events))

	for _, ev := range events {
		if !ev.IsRecurringRule() {
			out = append(out, model.Occurrence{Event: ev})
			continue
		}
		if !ev.Recurring.Valid() {
			// Unknown rules are treated as one-off events.
			appLog.Debug("expand: unknown recurrence, emitting once", "id", ev.ID, "recurring", ev.Recurring)
			out = append(out, model.Occurrence{Event: ev})
			continue
		}

		occ, hitCap, err := expandRecurringEvent(ev, horizon, cfg.MaxOccurrencesPerEvent)
		if err != nil {
			appLog.Error("expand: skipping recurring event", err, "id", ev.ID, "date", ev.Date, "recurring", ev.Recurring)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.ID)
			appLog.Error("expand: truncated occurrences for event due to cap",
				errors.New("max occurrences reached"),
				"id", ev.ID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		out = append(out, occ...)
	}

	result.Occurrences = out
	return result, nil
}

func expandRecurringEvent(ev model.Event, horizon time.Time, maxOcc int) ([]model.Occurrence, bool, error) {
	anchor, err := model.ParseDate(ev.Date)
	if err != nil {
		return nil, false, fmt.Errorf("parse anchor date: %w", err)
	}
	if anchor.After(horizon) {
		return nil, false, nil
	}

	opt, err := ruleFor(ev.Recurring, anchor)
	if err != nil {
		return nil, false, err
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, false, fmt.Errorf("build rule: %w", err)
	}

	dates := r.Between(anchor, horizon, true)

	hitCap := false
	if len(dates) > maxOcc {
		dates = dates[:maxOcc]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(dates))
	for _, d := range dates {
		occ := model.Occurrence{
			Event:        ev,
			OriginalDate: ev.Date,
			IsRecurring:  true,
		}
		occ.Date = model.FormatDate(d)
		out = append(out, occ)
	}
	return out, hitCap, nil
}

// RuleString renders the RRULE value (without DTSTART) that Expand uses for
// ev, for export to other calendar programs.
func RuleString(ev model.Event) (string, error) {
	anchor, err := model.ParseDate(ev.Date)
	if err != nil {
		return "", fmt.Errorf("parse anchor date: %w", err)
	}
	opt, err := ruleFor(ev.Recurring, anchor)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// ruleFor maps a recurrence to an RRULE anchored at dtstart. Anchors on the
// 29th-31st use BYMONTHDAY=28..day;BYSETPOS=-1, which selects the anchor
// day when the month has it and the month's last day otherwise.
func ruleFor(rec model.Recurrence, dtstart time.Time) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: dtstart}

	switch rec {
	case model.RecurDaily:
		opt.Freq = rrule.DAILY
	case model.RecurWeekly:
		opt.Freq = rrule.WEEKLY
	case model.RecurMonthly:
		opt.Freq = rrule.MONTHLY
		if dtstart.Day() > 28 {
			opt.Bymonthday = daysFrom28(dtstart.Day())
			opt.Bysetpos = []int{-1}
		}
	case model.RecurYearly:
		opt.Freq = rrule.YEARLY
		if dtstart.Month() == time.February && dtstart.Day() == 29 {
			opt.Bymonth = []int{int(time.February)}
			opt.Bymonthday = []int{28, 29}
			opt.Bysetpos = []int{-1}
		}
	default:
		return opt, fmt.Errorf("unknown recurrence %q", rec)
	}
	return opt, nil
}

func daysFrom28(day int) []int {
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
