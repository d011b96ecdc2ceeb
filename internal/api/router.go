package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.middlewares()...)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/workflows", s.handleListWorkflows)
		r.Post("/workflows/{id}/trigger", s.handleTrigger)
		r.Post("/reload", s.handleReload)
		r.Post("/actions", s.handleAction)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Post("/run-now", s.handleRunNow)
			})
		})

		r.Route("/reactions", func(r chi.Router) {
			r.Get("/", s.handleListReactions)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteReaction)
				r.Post("/react-now", s.handleReactNow)
			})
		})

		r.Get("/traces", s.handleListTraces)
		r.Get("/traces/{run_id}", s.handleGetTrace)

		r.Get("/states", s.handleListStates)
		r.Put("/states/{entity}", s.handleSetState)

		r.Get("/audit", s.handleListAudit)

		r.Get("/ws", s.handleWebSocket)
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
