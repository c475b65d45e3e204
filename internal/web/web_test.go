package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/calendar"
	"eventcal/internal/config"
	"eventcal/internal/importer"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

var testNow = time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, seed ...model.Event) (*Server, *calendar.Service) {
	t.Helper()
	ctx := context.Background()

	st := store.New(store.NewMemoryBackend(), "")
	require.NoError(t, st.Save(ctx, seed))
	cal := calendar.New(ctx, st, calendar.Options{Now: func() time.Time { return testNow }})

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	srv := NewServer(cfg, cal)
	srv.now = func() time.Time { return testNow }
	return srv, cal
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func seedPair() []model.Event {
	return []model.Event{
		{ID: "a", Title: "Design review", Date: "2024-03-04", StartTime: "09:00", EndTime: "10:00", Category: model.CategoryWork, Priority: model.PriorityHigh},
		{ID: "b", Title: "Dentist", Date: "2024-03-04", StartTime: "09:30", EndTime: "10:30", Category: model.CategoryPersonal, Priority: model.PriorityLow},
	}
}

func TestHealthAndBasicAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("me", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventCRUD(t *testing.T) {
	srv, cal := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/events", map[string]string{
		"title": "Lunch", "date": "2024-03-05", "startTime": "12:00", "endTime": "13:00", "priority": "Low",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Event](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.PriorityLow, created.Priority)
	assert.Equal(t, model.CategoryMeeting, created.Category)

	rec = do(t, h, http.MethodGet, "/api/events/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/events/"+created.ID, map[string]string{
		"title": "Long lunch", "date": "2024-03-05", "startTime": "12:00", "endTime": "14:00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Long lunch", decode[model.Event](t, rec).Title)

	rec = do(t, h, http.MethodPut, "/api/events/nope", map[string]string{
		"title": "x", "date": "2024-03-05", "startTime": "12:00", "endTime": "14:00",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/events/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, cal.Events())

	rec = do(t, h, http.MethodGet, "/api/events/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEvent_Validation(t *testing.T) {
	srv, cal := newTestServer(t)
	h := srv.Handler()

	cases := map[string]any{
		"not json":    "{",
		"no title":    map[string]string{"title": " ", "date": "2024-03-05", "startTime": "12:00", "endTime": "13:00"},
		"bad date":    map[string]string{"title": "x", "date": "05/03/2024", "startTime": "12:00", "endTime": "13:00"},
		"end first":   map[string]string{"title": "x", "date": "2024-03-05", "startTime": "13:00", "endTime": "12:00"},
		"bad minutes": map[string]string{"title": "x", "date": "2024-03-05", "startTime": "12:75", "endTime": "13:00"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/events", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, cal.Events())
}

func TestClearRequiresConfirm(t *testing.T) {
	srv, cal := newTestServer(t, seedPair()...)
	h := srv.Handler()

	rec := do(t, h, http.MethodDelete, "/api/events", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, cal.Events(), 2)

	rec = do(t, h, http.MethodDelete, "/api/events?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"removed": 2}, decode[map[string]int](t, rec))
	assert.Empty(t, cal.Events())
}

func TestListEvents_Filters(t *testing.T) {
	srv, _ := newTestServer(t, seedPair()...)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/events?q=dent&category=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]model.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ID)
}

func TestConflictsAndOccurrences(t *testing.T) {
	srv, _ := newTestServer(t, seedPair()...)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/conflicts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[conflictsResponse](t, rec)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "2024-03-04", resp.Groups[0].Date)

	rec = do(t, h, http.MethodGet, "/api/conflicts?priority=high", nil)
	assert.Equal(t, 0, decode[conflictsResponse](t, rec).Count)

	rec = do(t, h, http.MethodGet, "/api/occurrences?category=personal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	occs := decode[occurrencesResponse](t, rec)
	require.Len(t, occs.Occurrences, 1)
	assert.Equal(t, "Dentist", occs.Occurrences[0].Title)
}

func TestAgendaAndDays(t *testing.T) {
	srv, _ := newTestServer(t, seedPair()...)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/agenda/2024-03-04", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agenda := decode[[]model.Occurrence](t, rec)
	require.Len(t, agenda, 2)
	assert.Equal(t, "a", agenda[0].ID)

	rec = do(t, h, http.MethodGet, "/api/agenda/tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/days?view=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[daysResponse](t, rec)
	assert.Equal(t, calendar.ViewWeek, days.View)
	require.Len(t, days.Days, 7)
	assert.Equal(t, "2024-03-04", days.Days[0].Date)
	assert.Len(t, days.Days[0].Occurrences, 2)
	assert.Empty(t, days.Days[1].Occurrences)

	rec = do(t, h, http.MethodGet, "/api/days?view=year", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlotsAndResolve(t *testing.T) {
	srv, cal := newTestServer(t, seedPair()...)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/events/b/slots?max=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]model.Slot](t, rec)
	assert.Equal(t, []model.Slot{
		{StartTime: "08:00", EndTime: "09:00"},
		{StartTime: "10:00", EndTime: "11:00"},
	}, slots)

	rec = do(t, h, http.MethodGet, "/api/events/missing/slots", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/events/b/resolve", map[string]string{
		"action": "reschedule", "startTime": "11:00", "endTime": "10:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/events/b/resolve", map[string]string{"action": "archive"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/events/b/resolve", map[string]string{
		"action": "reschedule", "startTime": "10:00", "endTime": "11:00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[calendar.Resolution](t, rec)
	assert.Equal(t, "10:00", res.Event.StartTime)
	assert.Empty(t, cal.Conflicts(calendar.Query{}))
}

func TestImportJSON(t *testing.T) {
	srv, cal := newTestServer(t, seedPair()...)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/import?mode=merge", `[
		{"title":"One","date":"2024-03-06","startTime":"09:00","endTime":"10:00"},
		{"title":"Two","date":"2024-03-07","startTime":"09:00","endTime":"10:00","priority":"HIGH"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, importResponse{Mode: "merge", Imported: 2, Total: 4}, decode[importResponse](t, rec))

	rec = do(t, h, http.MethodPost, "/api/import?mode=replace", `[
		{"title":"One","date":"2024-03-06","startTime":"09:00"}
	]`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[importErrorResponse](t, rec)
	require.Len(t, errResp.Problems, 1)
	assert.Equal(t, []string{"endTime"}, errResp.Problems[0].Missing)
	assert.Len(t, cal.Events(), 4)

	rec = do(t, h, http.MethodPost, "/api/import?mode=append", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/import", `{"title":"not an array"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportJSON_EmptyBatchKeepsEvents(t *testing.T) {
	srv, cal := newTestServer(t, seedPair()...)
	h := srv.Handler()

	for _, body := range []string{`[]`, `null`} {
		rec := do(t, h, http.MethodPost, "/api/import?mode=replace", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Len(t, cal.Events(), 2, body)
	}

	rec := do(t, h, http.MethodPost, "/api/import?mode=replace", `[]`)
	assert.Equal(t, importer.ErrEmpty.Error(), decode[map[string]string](t, rec)["error"])
}

func TestImportAndExportICS(t *testing.T) {
	srv, cal := newTestServer(t, seedPair()...)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/export.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	exported := rec.Body.String()
	assert.Contains(t, exported, "SUMMARY:Design review")

	rec = do(t, h, http.MethodPost, "/api/import/ics?mode=replace", exported)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, importResponse{Mode: "replace", Imported: 2, Total: 2}, decode[importResponse](t, rec))

	events := cal.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Design review", events[0].Title)
	assert.NotEqual(t, "a", events[0].ID)

	rec = do(t, h, http.MethodPost, "/api/import/ics", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodGet, "/api/nope", nil).Code)
}
