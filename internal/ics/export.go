package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recur"
	"eventcal/internal/timeofday"
)

// ProductID identifies exported calendars.
const ProductID = "-//eventcal//eventcal 1.0//EN"

const propertyColor = ical.ComponentProperty("COLOR")

// Export renders events as an iCalendar document. Times are written as
// floating local times, matching how the calendar stores them. Events that
// cannot be represented are logged and left out.
func Export(events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	stamp := now.UTC()
	written := 0
	for _, ev := range events {
		start, end, err := bounds(ev)
		if err != nil {
			appLog.Info("ics export skipped event", "id", ev.ID, "reason", err.Error())
			continue
		}

		ve := cal.AddEvent(ev.ID + "@eventcal")
		ve.SetDtStampTime(stamp)
		ve.SetProperty(ical.ComponentPropertyDtStart, start.Format("20060102T150405"))
		ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format("20060102T150405"))
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Category != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(ev.Category)))
		}
		ve.SetProperty(ical.ComponentPropertyPriority, strconv.Itoa(icalPriority(ev.Priority)))
		if ev.Color != "" {
			ve.SetProperty(propertyColor, ev.Color)
		}
		if ev.IsRecurringRule() && ev.Recurring.Valid() {
			if rule, err := recur.RuleString(ev); err == nil {
				ve.AddRrule(rule)
			}
		}
		written++
	}

	appLog.Debug("ics export completed", "event_count", written, "skipped", len(events)-written)
	return cal.Serialize()
}

func bounds(ev model.Event) (time.Time, time.Time, error) {
	day, err := model.ParseDate(ev.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	s, e := ev.StartMinutes(), ev.EndMinutes()
	if s < 0 || e < 0 || e <= s || e > timeofday.MinutesPerDay {
		return time.Time{}, time.Time{}, fmt.Errorf("bad times %q-%q", ev.StartTime, ev.EndTime)
	}
	start := day.Add(time.Duration(s) * time.Minute)
	end := day.Add(time.Duration(e) * time.Minute)
	return start, end, nil
}

// icalPriority maps to RFC 5545 values: high 1, medium 5, low 9.
func icalPriority(p model.Priority) int {
	switch p.Rank() {
	case 0:
		return 1
	case 2:
		return 9
	default:
		return 5
	}
}
