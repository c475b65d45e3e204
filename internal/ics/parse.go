// Package ics converts between the event list and iCalendar documents.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventcal/internal/importer"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// ErrEmpty is returned for an empty payload.
var ErrEmpty = errors.New("empty ICS body")

// Parse reads every VEVENT in body into an import record.
//
//   - DTSTART/DTEND become date, startTime and endTime. Times with a TZID or
//     a trailing Z are converted to loc; floating times are taken as-is.
//   - All-day and multi-day events cannot be represented and are skipped.
//   - RRULE contributes only its FREQ; anything else becomes "none".
//   - UIDs are not kept; the calendar assigns its own ids on import.
func Parse(body []byte, loc *time.Location) ([]importer.Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmpty
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "bytes", len(body))
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	records := make([]importer.Record, 0)
	skipped := 0
	for _, ve := range cal.Events() {
		rec, perr := parseVEvent(ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			skipped++
			appLog.Info("ics vevent skipped", "uid", propValue(ve, ical.ComponentPropertyUniqueId), "reason", perr.Error())
			continue
		}
		records = append(records, rec)
	}

	appLog.Info("ics parse completed", "event_count", len(records), "skipped", skipped)
	return records, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (importer.Record, error) {
	var rec importer.Record

	start, allDay, err := eventTime(ve.GetProperty(ical.ComponentPropertyDtStart), loc)
	if err != nil {
		return rec, fmt.Errorf("DTSTART: %w", err)
	}
	if allDay {
		return rec, errors.New("all-day event")
	}
	end, _, err := eventTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
	if err != nil {
		return rec, fmt.Errorf("DTEND: %w", err)
	}
	if !sameDay(start, end) {
		return rec, errors.New("event spans multiple days")
	}

	rec.Date = importer.Ptr(start.Format(model.DateLayout))
	rec.StartTime = importer.Ptr(start.Format("15:04"))
	rec.EndTime = importer.Ptr(end.Format("15:04"))

	title := propValue(ve, ical.ComponentPropertySummary)
	rec.Title = importer.Ptr(unescape(title))
	if d := propValue(ve, ical.ComponentPropertyDescription); d != "" {
		rec.Description = importer.Ptr(unescape(d))
	}

	if c := categoryFrom(propValue(ve, ical.ComponentPropertyCategories)); c != "" {
		rec.Category = importer.Ptr(string(c))
	}
	if p := priorityFrom(propValue(ve, ical.ComponentPropertyPriority)); p != "" {
		rec.Priority = importer.Ptr(string(p))
	}
	if c := propValue(ve, propertyColor); c != "" {
		rec.Color = importer.Ptr(c)
	}
	rec.Recurring = importer.Ptr(string(recurrenceFrom(propValue(ve, ical.ComponentPropertyRrule))))

	return rec, nil
}

// eventTime resolves a DTSTART/DTEND property into a wall-clock time in loc.
func eventTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return time.Time{}, false, errors.New("missing")
	}
	val := strings.TrimSpace(p.Value)

	allDay := !strings.Contains(val, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	if allDay {
		t, err := time.ParseInLocation("20060102", val, loc)
		return t, true, err
	}

	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		tz, err := time.LoadLocation(tzs[0])
		if err != nil {
			return time.Time{}, false, fmt.Errorf("unknown TZID %q", tzs[0])
		}
		t, err := time.ParseInLocation("20060102T150405", val, tz)
		if err != nil {
			return time.Time{}, false, err
		}
		return t.In(loc), false, nil
	}

	t, err := parseICSTime(val, loc)
	return t, false, err
}

// parseICSTime parses a basic ICS date-time. UTC values are converted to
// loc; floating values are read in loc unchanged.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}
	return time.ParseInLocation("20060102T150405", v, loc)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// categoryFrom picks the first known category from a CATEGORIES list.
func categoryFrom(v string) model.Category {
	for _, part := range strings.Split(v, ",") {
		c := model.Category(strings.ToLower(strings.TrimSpace(part)))
		if c.Valid() {
			return c
		}
	}
	return ""
}

// priorityFrom maps the RFC 5545 1-9 scale: 1-4 high, 5 medium, 6-9 low.
// 0 and garbage mean undefined.
func priorityFrom(v string) model.Priority {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	switch {
	case err != nil || n <= 0 || n > 9:
		return ""
	case n < 5:
		return model.PriorityHigh
	case n == 5:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func recurrenceFrom(rule string) model.Recurrence {
	for _, part := range strings.Split(rule, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "FREQ") {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "DAILY":
			return model.RecurDaily
		case "WEEKLY":
			return model.RecurWeekly
		case "MONTHLY":
			return model.RecurMonthly
		case "YEARLY":
			return model.RecurYearly
		}
	}
	return model.RecurNone
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescape(s string) string { return textUnescaper.Replace(s) }
