package web

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"eventcal/internal/calendar"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/timeofday"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r)
	events := s.cal.Events()
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if q.Match(ev) {
			out = append(out, ev)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.cal.Get(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.cal.Create(r.Context(), ev))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := s.cal.Update(r.Context(), mux.Vars(r)["id"], ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	removed, err := s.cal.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// handleClearEvents removes every event. The caller must pass confirm=true.
func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "clearing all events requires confirm=true")
		return
	}
	n := s.cal.Clear(r.Context())
	appLog.Info("all events cleared", "removed", n)
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := model.ParseDate(date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}
	maxResults := parseIntDefault(r.URL.Query().Get("max"), 0)

	out, err := s.cal.SuggestSlots(mux.Vars(r)["id"], date, maxResults, queryFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type resolveRequest struct {
	Action    calendar.Action `json:"action"`
	StartTime string          `json:"startTime"`
	EndTime   string          `json:"endTime"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Action == calendar.ActionReschedule {
		if err := validateSlot(req.StartTime, req.EndTime); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	res, err := s.cal.Resolve(r.Context(), req.Action, mux.Vars(r)["id"], model.Slot{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func validateSlot(start, end string) error {
	s, err := timeofday.Parse(start)
	if err != nil {
		return errors.New("startTime must be HH:MM")
	}
	e, err := timeofday.Parse(end)
	if err != nil {
		return errors.New("endTime must be HH:MM")
	}
	if e <= s {
		return errors.New("endTime must be after startTime")
	}
	return nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, calendar.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
