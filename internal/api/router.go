package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check of the health endpoint.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Token is checked before the upgrade, so a bad token is a plain 401.
			r.Get("/ws", s.handleWebSocket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/claim-status", s.handleClaimStatus)
				r.Post("/claim", s.handleClaimDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", s.handleDeleteDevice)
					r.Put("/state", s.handleSetDeviceState)
					r.Put("/config", s.handleSetDeviceConfig)
					r.Post("/provisioning", s.handleEnterProvisioning)
				})
			})

			r.Post("/account/push-tokens", s.handleAddPushToken)
			r.Post("/budget/check", s.handleBudgetCheck)
		})
	})

	return r
}

// handleHealth reports the status of each registered dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	components := make(map[string]string, len(s.health))

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"version":    s.version,
		"components": components,
		"sessions":   s.router.Count(),
	})
}
