package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) handleServiceList(w http.ResponseWriter, r *http.Request) {
	units, err := s.services.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(units))
}

func (s *Server) handleWatchedServices(w http.ResponseWriter, r *http.Request) {
	rows, err := s.watch.ServiceStatuses(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

type watchedServicesBody struct {
	WatchedServices []string `json:"watched_services"`
}

func (s *Server) handleSaveWatchedServices(w http.ResponseWriter, r *http.Request) {
	var req watchedServicesBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if err := s.watch.SetServices(r.Context(), req.WatchedServices); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody("watch list saved"))
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.services.Status(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleServiceLogs(w http.ResponseWriter, r *http.Request) {
	lines := parseCount(r, "lines", defaultLogLines, maxLogLines)
	logs, err := s.services.Logs(r.Context(), r.PathValue("name"), lines)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(logs))
}

func (s *Server) handleServiceAction(verb string) http.HandlerFunc {
	var do func(context.Context, string) error
	var done string
	switch verb {
	case "start":
		do, done = s.services.Start, "started"
	case "stop":
		do, done = s.services.Stop, "stopped"
	case "restart":
		do, done = s.services.Restart, "restarted"
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
