package api

import (
	"net/http"
	"time"
)

// handleHealth reports liveness: database reachability, uptime, and
// fanout load.
//
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	dbStatus := "ok"
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("health check: database unreachable", "error", err)
			dbStatus = "unreachable"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"database":       dbStatus,
		"ws_clients":     s.hub.ClientCount(),
		"ws_rooms":       s.hub.RoomCount(),
	})
}
