package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/agent-faceid/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	agentsHandler := handlers.NewAgentsHandler(s.service, s.log)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/enroll", agentsHandler.Enroll)
		r.Post("/login-face", agentsHandler.LoginFace)

		r.Get("/agents", agentsHandler.List)
		r.Post("/agents/reindex", agentsHandler.Reindex)
		r.Get("/agents/{employeeID}", agentsHandler.Get)
		r.Patch("/agents/{employeeID}/status", agentsHandler.UpdateStatus)
		r.Delete("/agents/{employeeID}", agentsHandler.Delete)
	})

	// Files written by the local storage backend
	if s.mediaDir != "" {
		fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(s.mediaDir)))
		s.router.Get("/media/*", func(w http.ResponseWriter, r *http.Request) {
			// no directory listings
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	}
}
