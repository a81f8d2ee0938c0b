package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/regwatch/internal/app"
)

// Server wraps the HTTP server and route configuration
type Server struct {
	app        *app.App
	mux        *http.ServeMux
	httpServer *http.Server
}

// New creates a server for the given application
func New(application *app.App) *Server {
	s := &Server{
		app: application,
		mux: http.NewServeMux(),
	}

	s.registerRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.withConditionalMiddleware(s.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("HTTP server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
