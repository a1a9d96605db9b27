package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.observeMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(limitBodyMiddleware)
	r.Use(middleware.StripSlashes)

	// Unknown paths and verbs answer the guidance envelope, never a bare 405.
	r.NotFound(s.handleUnknown)
	r.MethodNotAllowed(s.handleUnknown)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/broker", s.handleBroker)
	r.Get("/main_topic", s.handleMainTopic)

	r.Put("/devices/status", s.handleDeviceStatus)

	r.Route("/{kind}", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleRegister)
		r.Put("/", s.handleRegister)
		r.Get("/{id}", s.handleGet)
	})

	return r
}

// handleHealth pings the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeEnvelope(w, Envelope{
			Message: "store unreachable: " + err.Error(),
			Status:  http.StatusServiceUnavailable,
		})
		return
	}
	writeEnvelope(w, Envelope{
		Success: true,
		Content: map[string]string{"status": "ok", "version": s.version},
		Status:  http.StatusOK,
	})
}
