package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.withRequestID)
	r.Use(s.withAccessLog)
	r.Use(s.withRecovery)
	r.Use(s.withCORS)
	r.Use(s.withBodyLimit)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metadata", s.handleMetadata)

		// Component registry
		r.Route("/components", func(r chi.Router) {
			r.Get("/", s.handleListComponents)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetComponent)
				r.Get("/can-stream", s.handleCanStream)
				r.Get("/data", s.handleComponentData)
				r.Post("/commands/{command}", s.handleCommand)
			})
		})

		// Connection graph
		r.Get("/connections", s.handleListConnections)

		// Command audit trail
		r.Get("/commands/log", s.handleCommandLog)

		// Operating-bound updates (WebSocket client stream)
		r.Get("/bounds/stream", s.handleBoundsStream)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleMetadata returns the static microgrid metadata.
func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"microgrid_id": s.microgrid.ID,
		"name":         s.microgrid.Name,
		"location": map[string]float64{
			"latitude":  s.microgrid.Location.Latitude,
			"longitude": s.microgrid.Location.Longitude,
		},
		"version": s.version,
	})
}
