package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"unitdeck/internal/unit"
)

func (s *Server) handleWatchedTimers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.watch.TimerStatuses(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (s *Server) handleAvailableTimers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.timers.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// timerSettingsBody mirrors the stored shape: a plain list of timer
// unit names.
type timerSettingsBody struct {
	WatchedTimers []string `json:"watched_timers"`
}

func (s *Server) handleTimerSettings(w http.ResponseWriter, r *http.Request) {
	names, err := s.watch.Timers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timerSettingsBody{WatchedTimers: nonNil(names)})
}

func (s *Server) handleSaveTimerSettings(w http.ResponseWriter, r *http.Request) {
	var req timerSettingsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if err := s.watch.SetTimers(r.Context(), req.WatchedTimers); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody("settings saved"))
}

func (s *Server) handleTimerAction(verb string) http.HandlerFunc {
	var do func(context.Context, string) error
	var done string
	switch verb {
	case "run":
		do, done = s.timers.Run, "triggered"
	case "enable":
		do, done = s.timers.Enable, "enabled"
	case "disable":
		do, done = s.timers.Disable, "disabled"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		start := time.Now()
		err := do(r.Context(), name)
		s.auditAction(r.Context(), verb, name, time.Since(start), err)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, successBody(name+" "+done))
	}
}

func (s *Server) handleTimerHistory(w http.ResponseWriter, r *http.Request) {
	service, err := unit.ServiceFor(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit := parseCount(r, "limit", defaultHistory, maxHistory)
	records, err := s.history.History(r.Context(), service, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

func (s *Server) handleTimerHistoryDetail(w http.ResponseWriter, r *http.Request) {
	service, err := unit.ServiceFor(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	detail, err := s.history.Detail(r.Context(), service, r.PathValue("invocation"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
