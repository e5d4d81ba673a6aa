package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/stresslab/internal/apiutil"
)

// handleHealth reports liveness plus history database reachability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":  "healthy",
		"service": "stresslab",
	}
	status := http.StatusOK

	if err := s.container.HistoryDB.HealthCheck(ctx); err != nil {
		s.log.Warn().Err(err).Msg("History database health check failed")
		response["status"] = "degraded"
		response["history_db"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	apiutil.WriteJSON(w, s.log, status, response)
}
