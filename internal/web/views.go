package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"eventcal/internal/calendar"
	"eventcal/internal/conflict"
	"eventcal/internal/model"
)

type occurrencesResponse struct {
	Occurrences []model.Occurrence `json:"occurrences"`
	// Truncated lists events whose expansion hit the per-event cap.
	Truncated []string `json:"truncated,omitempty"`
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r)
	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences: s.cal.Occurrences(q),
		Truncated:   s.cal.Truncated(q),
	})
}

type conflictsResponse struct {
	Count  int                   `json:"count"`
	Groups []model.ConflictGroup `json:"groups"`
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	groups := s.cal.Conflicts(queryFrom(r))
	writeJSON(w, http.StatusOK, conflictsResponse{Count: conflict.Count(groups), Groups: groups})
}

func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := model.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, s.cal.Agenda(date, queryFrom(r)))
}

type dayResponse struct {
	Date        string             `json:"date"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

type daysResponse struct {
	View calendar.View `json:"view"`
	Days []dayResponse `json:"days"`
}

// handleDays returns the dates shown by a day, week or month view around
// ?date= (default today) with each date's agenda.
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	view, err := calendar.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	anchor := s.now().In(s.loc)
	if d := r.URL.Query().Get("date"); d != "" {
		if anchor, err = model.ParseDate(d); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	q := queryFrom(r)
	byDate := make(map[string][]model.Occurrence)
	for _, occ := range s.cal.Occurrences(q) {
		byDate[occ.Date] = append(byDate[occ.Date], occ)
	}

	dates := calendar.Days(view, anchor, s.cfg.WeekStart)
	resp := daysResponse{View: view, Days: make([]dayResponse, 0, len(dates))}
	for _, d := range dates {
		occs := []model.Occurrence{}
		if len(byDate[d]) > 0 {
			occs = s.cal.Agenda(d, q)
		}
		resp.Days = append(resp.Days, dayResponse{Date: d, Occurrences: occs})
	}
	writeJSON(w, http.StatusOK, resp)
}
