package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/agent-faceid/internal/config"
	"github.com/kozaktomas/agent-faceid/internal/web/handlers"
	"github.com/kozaktomas/agent-faceid/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	service    handlers.AgentService
	mediaDir   string
	log        logrus.FieldLogger
}

// NewServer creates a new web server. mediaDir, when set, is served under /media.
func NewServer(cfg *config.Config, service handlers.AgentService, mediaDir string, log logrus.FieldLogger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:   cfg,
		router:   r,
		service:  service,
		mediaDir: mediaDir,
		log:      log,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  2 * time.Minute, // multi-photo uploads
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
