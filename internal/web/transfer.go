package web

import (
	"errors"
	"net/http"

	"eventcal/internal/ics"
	"eventcal/internal/importer"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

type importResponse struct {
	Mode     importer.Mode `json:"mode"`
	Imported int           `json:"imported"`
	Total    int           `json:"total"`
}

type importErrorResponse struct {
	Error    string                   `json:"error"`
	Problems []importer.RecordProblem `json:"problems,omitempty"`
}

func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, importer.Decode)
}

func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, func(body []byte) ([]importer.Record, error) {
		return ics.Parse(body, s.loc)
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, decode func([]byte) ([]importer.Record, error)) {
	mode, err := importer.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	imported, err := s.cal.Import(r.Context(), records, mode)
	if err != nil {
		var verr *importer.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, importErrorResponse{Error: err.Error(), Problems: verr.Problems})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		Mode:     mode,
		Imported: len(imported),
		Total:    len(s.cal.Events()),
	})
}

func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	body := ics.Export(s.cal.Events(), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar-`+model.FormatDate(s.now().In(s.loc))+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		appLog.Error("failed to write ics export", err)
	}
}
