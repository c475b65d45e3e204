// Package calendar owns the mutable event collection and derives
// occurrences, conflicts, agendas and reschedule suggestions from it.
package calendar

import (
	"context"
	"errors"
	"sync"
	"time"

	"eventcal/internal/importer"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recur"
	"eventcal/internal/slots"
	"eventcal/internal/store"
)

var (
	// ErrNotFound indicates no event has the requested id.
	ErrNotFound = errors.New("event not found")
	// ErrUnknownAction is returned by Resolve for unsupported actions.
	ErrUnknownAction = errors.New("unknown resolution action")
)

// Options tunes derivation policy. Zero values use the package defaults.
type Options struct {
	HorizonMonths          int
	MaxOccurrencesPerEvent int
	Slots                  slots.Options

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Service is the single owner of the canonical event list. Every mutation
// persists the full list through the store and invalidates derived views.
type Service struct {
	store *store.Store
	opts  Options

	mu       sync.RWMutex
	events   []model.Event
	revision uint64

	viewsMu sync.Mutex
	views   map[viewKey]*view
}

// New loads the current event list from st.
func New(ctx context.Context, st *store.Store, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HorizonMonths <= 0 {
		opts.HorizonMonths = recur.DefaultHorizonMonths
	}
	s := &Service{
		store:  st,
		opts:   opts,
		events: st.Load(ctx),
		views:  make(map[viewKey]*view),
	}
	appLog.Info("calendar loaded", "events", len(s.events), "key", st.Key())
	return s
}

// Events returns a copy of the canonical event list.
func (s *Service) Events() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Event{}, s.events...)
}

// Get returns the event with the given id.
func (s *Service) Get(id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.events[i], nil
	}
	return model.Event{}, ErrNotFound
}

// Create assigns a new id, fills defaults and appends the event.
func (s *Service) Create(ctx context.Context, ev model.Event) model.Event {
	ev.ID = s.store.NewID()
	ev = withDefaults(ev)

	s.mu.Lock()
	s.events = append(s.events, ev)
	s.commitLocked(ctx, "create", "id", ev.ID)
	s.mu.Unlock()

	return ev
}

// Update replaces every field of the event with the given id except the id.
func (s *Service) Update(ctx context.Context, id string, ev model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, ErrNotFound
	}
	ev.ID = id
	ev = withDefaults(ev)
	s.events[i] = ev
	s.commitLocked(ctx, "update", "id", id)
	return ev, nil
}

// Reschedule overwrites the time fields of an event in place.
func (s *Service) Reschedule(ctx context.Context, id, startTime, endTime string) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, ErrNotFound
	}
	s.events[i].StartTime = startTime
	s.events[i].EndTime = endTime
	s.commitLocked(ctx, "reschedule", "id", id, "start", startTime, "end", endTime)
	return s.events[i], nil
}

// Delete removes the event with the given id. Callers confirm beforehand.
func (s *Service) Delete(ctx context.Context, id string) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, ErrNotFound
	}
	removed := s.events[i]
	s.events = append(append([]model.Event{}, s.events[:i]...), s.events[i+1:]...)
	s.commitLocked(ctx, "delete", "id", id)
	return removed, nil
}

// Clear removes every event. Callers confirm beforehand.
func (s *Service) Clear(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events)
	s.events = []model.Event{}
	s.commitLocked(ctx, "clear", "removed", n)
	return n
}

// Import validates and normalizes records, then merges them into or
// replaces the current list. A single invalid record rejects the batch and
// leaves the calendar untouched.
func (s *Service) Import(ctx context.Context, records []importer.Record, mode importer.Mode) ([]model.Event, error) {
	imported, err := importer.Prepare(records, s.store.NewID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = importer.Apply(s.events, imported, mode)
	s.commitLocked(ctx, "import", "mode", mode, "imported", len(imported), "total", len(s.events))
	return imported, nil
}

// commitLocked bumps the revision and persists the list. Save failures are
// logged and never surface to callers. s.mu must be held.
func (s *Service) commitLocked(ctx context.Context, op string, kv ...any) {
	s.revision++
	s.viewsMu.Lock()
	s.views = make(map[viewKey]*view)
	s.viewsMu.Unlock()

	if err := s.store.Save(ctx, s.events); err != nil {
		appLog.Error("calendar save failed", err, append([]any{"op", op}, kv...)...)
		return
	}
	appLog.Debug("calendar saved", append([]any{"op", op, "revision", s.revision, "events", len(s.events)}, kv...)...)
}

func (s *Service) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

// withDefaults normalizes the fields the edit form would have defaulted.
func withDefaults(ev model.Event) model.Event {
	ev.Priority = model.NormalizePriority(string(ev.Priority))
	if ev.Category == "" {
		ev.Category = model.CategoryMeeting
	}
	if ev.Recurring == "" {
		ev.Recurring = model.RecurNone
	}
	if ev.Color == "" {
		ev.Color = ev.Category.Color()
	}
	return ev
}
