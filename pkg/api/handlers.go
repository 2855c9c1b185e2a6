package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.index.ListRuns(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")

		return
	}

	s.writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	runs, err := s.index.GetRun(r.Context(), runID)
	if err != nil {
		s.log.WithError(err).WithField("run_id", runID).Error("Failed to get run")
		s.writeError(w, http.StatusInternalServerError, "failed to get run")

		return
	}

	if len(runs) == 0 {
		s.writeError(w, http.StatusNotFound, "run not found")

		return
	}

	s.writeJSON(w, http.StatusOK, runs)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("Failed to encode response")
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
