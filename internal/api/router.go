package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/reload", s.handleReload)
		r.Get("/journal", s.handleJournal)
	})

	return r
}

// handleHealth answers 200 when the service and every extra check pass.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.HealthCheck(r.Context()); err != nil {
		writeUnavailable(w, err.Error())
		return
	}
	for _, c := range s.checks {
		if err := c.HealthCheck(r.Context()); err != nil {
			writeUnavailable(w, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleReload queues a reload. The outcome is only visible in the logs,
// the status document and the reload metrics.
func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	s.service.Reload()
	s.logger.Info("reload requested via admin API")
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "reload queued"})
}
