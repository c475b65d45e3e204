// Package store persists the canonical event list as one serialized blob
// under a single key. Everything else in the module works on in-memory
// copies; this is the only package that performs I/O.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// DefaultKey is the key the event list is stored under.
const DefaultKey = "calendar_events"

// Backend is an opaque key/value blob getter/setter. Get reports ok=false
// when the key has never been written.
type Backend interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte) error
}

// Store is the read-all/write-all facade over a Backend. It provides no
// transactional guarantees: concurrent saves are last-write-wins and
// callers are expected to serialize them.
type Store struct {
	backend Backend
	key     string
	now     func() time.Time
}

// New constructs a Store writing to key (DefaultKey if empty).
func New(backend Backend, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{backend: backend, key: key, now: time.Now}
}

// Key returns the key the event list is stored under.
func (s *Store) Key() string { return s.key }

// Load returns every stored event. Missing or unreadable state is treated as
// an empty calendar and logged, never returned as an error.
func (s *Store) Load(ctx context.Context) []model.Event {
	data, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		appLog.Error("store load failed; starting with empty calendar", err, "key", s.key)
		return []model.Event{}
	}
	if !ok || len(data) == 0 {
		return []model.Event{}
	}

	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		appLog.Error("store data is corrupt; starting with empty calendar", err, "key", s.key, "bytes", len(data))
		return []model.Event{}
	}
	if events == nil {
		events = []model.Event{}
	}
	return events
}

// Save serializes the full list and replaces whatever was stored. Failures
// are returned for the caller to log; they must not reach scheduling logic.
func (s *Store) Save(ctx context.Context, events []model.Event) error {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("store: marshal events: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("store: write %q: %w", s.key, err)
	}
	return nil
}

// NewID returns a fresh event id of the form event_<unix millis>_<suffix>,
// where suffix is nine random hex characters.
func (s *Store) NewID() string {
	return NewID(s.now())
}

// NewID builds an event id for the given instant.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("event_%d_%s", now.UnixMilli(), suffix)
}
