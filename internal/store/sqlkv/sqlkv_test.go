package sqlkv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/model"
	"eventcal/internal/store"
)

func runBackendSuite(t *testing.T, b *Backend) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := b.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then overwrite", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "k", []byte(`[1]`)))
		require.NoError(t, b.Set(ctx, "k", []byte(`[2,3]`)))

		data, ok, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `[2,3]`, string(data))
	})

	t.Run("store round trip", func(t *testing.T) {
		s := store.New(b, "suite_events")
		events := []model.Event{
			{ID: "event_1", Title: "Dentist", Date: "2024-02-01", StartTime: "10:00", EndTime: "11:00", Priority: model.PriorityLow, Recurring: model.RecurNone},
		}
		require.NoError(t, s.Save(ctx, events))
		assert.Equal(t, events, s.Load(ctx))
	})
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "eventcal.db")

	b, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	runBackendSuite(t, b)

	t.Run("reopen keeps data and reapplies migrations", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "persist", []byte("kept")))
		require.NoError(t, b.Close())

		again, err := OpenSQLite(ctx, path)
		require.NoError(t, err)
		defer again.Close()

		data, ok, err := again.Get(ctx, "persist")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "kept", string(data))
	})
}

func TestOpenRejectsEmptyTargets(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.Error(t, err)
	_, err = OpenPostgres(context.Background(), "")
	assert.Error(t, err)
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("EVENTCAL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EVENTCAL_TEST_POSTGRES_DSN not set")
	}

	b, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	runBackendSuite(t, b)
}
