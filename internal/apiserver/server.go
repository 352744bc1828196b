// Package apiserver hosts the HTTP surface: the /v1 REST API, the MCP
// endpoint, Prometheus metrics and liveness probes.
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/moolen/atlas/internal/api/handlers"
	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/logging"
)

// Server handles HTTP API requests. It implements lifecycle.Component.
type Server struct {
	port     int
	server   *http.Server
	router   *http.ServeMux
	logger   *logging.Logger
	handlers *handlers.Handlers

	// semaphore bounds concurrent request handling.
	semaphore chan struct{}

	mcpServer *server.MCPServer
}

// New creates the API server. The MCP server is optional; when nil the
// /v1/mcp endpoint is not registered.
func New(cfg config.APIConfig, h *handlers.Handlers, mcpServer *server.MCPServer) *Server {
	s := &Server{
		port:      cfg.Port,
		router:    http.NewServeMux(),
		logger:    logging.GetLogger("api"),
		handlers:  h,
		semaphore: make(chan struct{}, cfg.MaxConcurrentRequests),
		mcpServer: mcpServer,
	}

	s.registerHandlers()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.corsMiddleware(s.timingMiddleware(s.concurrencyMiddleware(s.router))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start implements the lifecycle.Component interface.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server on port %d", s.port)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server listening on port %d", s.port)
	return nil
}

// Stop implements the lifecycle.Component interface.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")

	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("HTTP server shutdown error: %v", err)
			return err
		}
		s.logger.Info("API server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("API server shutdown timeout")
		return ctx.Err()
	}
}

// Name implements the lifecycle.Component interface.
func (s *Server) Name() string {
	return "API Server"
}

// GetPort returns the port the server is listening on.
func (s *Server) GetPort() int {
	return s.port
}
