package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Liveness (no auth required)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Auth endpoints (no auth required)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Telemetry ingest (device key, not JWT)
		r.With(s.deviceKeyMiddleware).Post("/sensor/{deviceId}", s.handleSensor)

		// Dashboard routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status/{deviceId}", s.handleStatus)
			r.Post("/toggle/{deviceId}", s.handleToggle)
			r.Post("/config/{deviceId}", s.handleConfig)
			r.Get("/logs/{deviceId}", s.handleLogs)
			r.Get("/history/{deviceId}", s.handleHistory)

			// WS ticket requires authentication; the socket itself
			// authenticates via the single-use ticket.
			r.Post("/ws/ticket", s.handleWSTicket)
		})
	})

	// WebSocket (auth via ticket, validated in handler)
	r.Get("/ws", s.handleWebSocket)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}
