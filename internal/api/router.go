package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/armlink/internal/auth"
)

// healthTimeout bounds the dependency checks behind GET /health.
const healthTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Post("/auth/token", s.handleToken)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/armbands", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermArmbandRead)).Group(func(r chi.Router) {
					r.Get("/", s.handleListArmbands)
					r.Get("/stats", s.handleArmbandStats)
					r.Get("/frame", s.handleArmbandFrame)
					r.Get("/emg", s.handleLatestEMG)
					r.Get("/{handle}", s.handleGetArmband)
					r.Get("/{handle}/emg", s.handleArmbandEMG)
				})

				r.With(s.requirePermission(auth.PermArmbandCommand)).Group(func(r chi.Router) {
					r.Post("/{handle}/lock", s.handleLock)
					r.Post("/{handle}/unlock", s.handleUnlock)
					r.Post("/{handle}/vibrate", s.handleVibrate)
					r.Post("/{handle}/streaming", s.handleStreaming)
				})
			})

			r.With(s.requirePermission(auth.PermSessionRead)).Get("/sessions", s.handleListSessions)

			r.With(s.requirePermission(auth.PermSystemAdmin)).Get("/metrics", s.handleMetrics)
		})
	})

	return r
}

// handleHealth reports server status. Broker and database failures degrade
// the status but the endpoint still answers 200 so the hub stays reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := "ok"
	checks := map[string]string{}

	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			status = "degraded"
		}
	}
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"hub_id":   s.hubID,
		"version":  s.version,
		"armbands": s.hub.Count(),
		"checks":   checks,
	})
}
