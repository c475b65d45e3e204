package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/model"
)

type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingBackend) Set(context.Context, string, []byte) error         { return f.err }

func sampleEvents() []model.Event {
	return []model.Event{
		{ID: "event_1", Title: "Planning", Date: "2024-01-08", StartTime: "09:00", EndTime: "10:00", Category: model.CategoryWork, Priority: model.PriorityHigh, Color: "#10b981", Recurring: model.RecurWeekly},
		{ID: "event_2", Title: "Gym", Date: "2024-01-09", StartTime: "18:00", EndTime: "19:00", Category: model.CategoryPersonal, Priority: model.PriorityLow, Color: "#8b5cf6", Recurring: model.RecurNone},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	backends := map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   NewFileBackendFs(afero.NewMemMapFs(), "/data"),
	}

	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(b, "")
			assert.Equal(t, DefaultKey, s.Key())

			assert.Empty(t, s.Load(ctx))

			require.NoError(t, s.Save(ctx, sampleEvents()))
			assert.Equal(t, sampleEvents(), s.Load(ctx))

			// Full replace, not append.
			require.NoError(t, s.Save(ctx, sampleEvents()[:1]))
			assert.Equal(t, sampleEvents()[:1], s.Load(ctx))
		})
	}
}

func TestStore_SaveNilWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := New(b, "k")

	require.NoError(t, s.Save(ctx, nil))
	data, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(data))
}

func TestStore_FieldNames(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := New(b, "k")
	require.NoError(t, s.Save(ctx, sampleEvents()[:1]))

	data, _, err := b.Get(ctx, "k")
	require.NoError(t, err)
	for _, field := range []string{`"id"`, `"title"`, `"date"`, `"startTime"`, `"endTime"`, `"description"`, `"category"`, `"priority"`, `"color"`, `"recurring"`} {
		assert.Contains(t, string(data), field)
	}
}

func TestStore_CorruptStateIsEmpty(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Set(ctx, DefaultKey, []byte(`{not json`)))

	events := New(b, "").Load(ctx)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestStore_BackendErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	s := New(failingBackend{err: boom}, "")

	assert.Empty(t, s.Load(ctx))
	assert.ErrorIs(t, s.Save(ctx, sampleEvents()), boom)
}

func TestFileBackend_WritesUnderDir(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	b := NewFileBackendFs(fsys, "/var/eventcal")

	require.NoError(t, b.Set(ctx, "calendar_events", []byte("[]")))

	exists, err := afero.Exists(fsys, "/var/eventcal/calendar_events.json")
	require.NoError(t, err)
	assert.True(t, exists)

	leftovers, err := afero.Glob(fsys, "/var/eventcal/*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestNewID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	pattern := regexp.MustCompile(`^event_1700000000123_[0-9a-f]{9}$`)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := NewID(now)
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	s := New(NewMemoryBackend(), "")
	s.now = func() time.Time { return now }
	assert.Regexp(t, pattern, s.NewID())
}
