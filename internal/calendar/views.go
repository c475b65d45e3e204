package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"eventcal/internal/conflict"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recur"
	"eventcal/internal/slots"
)

// Query narrows the expanded occurrence set before conflicts are detected.
// Empty fields and "all" match everything.
type Query struct {
	Search   string
	Category string
	Priority string
}

func (q Query) normalized() Query {
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	q.Priority = strings.ToLower(strings.TrimSpace(q.Priority))
	if q.Category == "all" {
		q.Category = ""
	}
	if q.Priority == "all" {
		q.Priority = ""
	}
	return q
}

// Match reports whether ev passes the query: Search is a case-insensitive
// substring of title or description, Category and Priority compare exactly.
func (q Query) Match(ev model.Event) bool {
	q = q.normalized()
	if q.Search != "" &&
		!strings.Contains(strings.ToLower(ev.Title), q.Search) &&
		!strings.Contains(strings.ToLower(ev.Description), q.Search) {
		return false
	}
	if q.Category != "" && string(ev.Category) != q.Category {
		return false
	}
	if q.Priority != "" && string(ev.Priority) != q.Priority {
		return false
	}
	return true
}

// maxViews bounds the memo between writes. Reaching it drops every entry.
const maxViews = 32

type viewKey struct {
	revision uint64
	horizon  string
	query    Query
}

// view memoizes the derivations for one (revision, horizon, query).
type view struct {
	occurrences []model.Occurrence
	truncated   []string
	conflicts   []model.ConflictGroup
	conflictsOK bool
}

// Occurrences expands the current events up to the horizon and applies q.
func (s *Service) Occurrences(q Query) []model.Occurrence {
	v := s.view(q)
	return append([]model.Occurrence{}, v.occurrences...)
}

// Conflicts runs conflict detection over Occurrences(q).
func (s *Service) Conflicts(q Query) []model.ConflictGroup {
	v := s.view(q)

	s.viewsMu.Lock()
	if !v.conflictsOK {
		v.conflicts = conflict.Detect(v.occurrences)
		v.conflictsOK = true
	}
	groups := v.conflicts
	s.viewsMu.Unlock()

	out := make([]model.ConflictGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.ConflictGroup{
			Date:   g.Date,
			Events: append([]model.Occurrence{}, g.Events...),
		})
	}
	return out
}

// Truncated lists events whose expansion hit the occurrence cap.
func (s *Service) Truncated(q Query) []string {
	return append([]string{}, s.view(q).truncated...)
}

// Agenda returns the occurrences on date ordered by start time, then
// priority (high first).
func (s *Service) Agenda(date string, q Query) []model.Occurrence {
	out := make([]model.Occurrence, 0)
	for _, occ := range s.view(q).occurrences {
		if occ.Date == date {
			out = append(out, occ)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].StartMinutes(), out[j].StartMinutes()
		if si != sj {
			return si < sj
		}
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

// SuggestSlots proposes free slots on date for the event with id, checked
// against the current occurrence set for q. maxResults <= 0 uses the
// configured default.
func (s *Service) SuggestSlots(id, date string, maxResults int, q Query) ([]model.Slot, error) {
	target, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = target.Date
	}

	opts := s.opts.Slots
	if maxResults > 0 {
		opts.MaxResults = maxResults
	}
	return slots.Find(target, date, s.view(q).occurrences, opts), nil
}

func (s *Service) view(q Query) *view {
	q = q.normalized()
	horizon := recur.Horizon(s.opts.Now(), s.opts.HorizonMonths)

	s.mu.RLock()
	key := viewKey{revision: s.revision, horizon: model.FormatDate(horizon), query: q}
	s.viewsMu.Lock()
	if v, ok := s.views[key]; ok {
		s.viewsMu.Unlock()
		s.mu.RUnlock()
		return v
	}
	s.viewsMu.Unlock()
	events := append([]model.Event{}, s.events...)
	s.mu.RUnlock()

	res, err := recur.ExpandOccurrences(events, recur.ExpandConfig{
		HorizonEnd:             horizon,
		MaxOccurrencesPerEvent: s.opts.MaxOccurrencesPerEvent,
	})
	if err != nil {
		appLog.Error("calendar: expansion failed", err)
	}

	filtered := make([]model.Occurrence, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		if q.Match(occ.Event) {
			filtered = append(filtered, occ)
		}
	}

	v := &view{occurrences: filtered, truncated: res.TruncatedEvents}

	s.viewsMu.Lock()
	if len(s.views) >= maxViews {
		s.views = make(map[viewKey]*view)
	}
	s.views[key] = v
	s.viewsMu.Unlock()
	return v
}

// Action is a conflict resolution action.
type Action string

const (
	ActionDelete     Action = "delete"
	ActionEdit       Action = "edit"
	ActionReschedule Action = "reschedule"
)

// Resolution reports the outcome of Resolve. For ActionEdit the event is
// returned unchanged for the caller's edit flow.
type Resolution struct {
	Action Action      `json:"action"`
	Event  model.Event `json:"event"`
}

// Resolve applies a conflict resolution action to the event with id.
// slot is only used by ActionReschedule.
func (s *Service) Resolve(ctx context.Context, action Action, id string, slot model.Slot) (Resolution, error) {
	var (
		ev  model.Event
		err error
	)
	switch action {
	case ActionDelete:
		ev, err = s.Delete(ctx, id)
	case ActionEdit:
		ev, err = s.Get(id)
	case ActionReschedule:
		ev, err = s.Reschedule(ctx, id, slot.StartTime, slot.EndTime)
	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Action: action, Event: ev}, nil
}
