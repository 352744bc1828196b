package apiserver

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/moolen/atlas/internal/api/response"
	"github.com/moolen/atlas/internal/metrics"
)

// registerHandlers registers all HTTP handlers.
func (s *Server) registerHandlers() {
	s.handlers.Register(s.router)

	s.router.Handle("GET /metrics", metrics.Handler())
	s.router.HandleFunc("GET /health", s.handleLiveness)
	s.router.HandleFunc("GET /ready", s.handleLiveness)

	s.registerMCPHandler()
}

// registerMCPHandler exposes the MCP query tools over streamable HTTP.
func (s *Server) registerMCPHandler() {
	if s.mcpServer == nil {
		s.logger.Debug("MCP server not configured, skipping /v1/mcp endpoint")
		return
	}

	endpointPath := "/v1/mcp"
	streamableServer := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath(endpointPath),
		server.WithStateLess(true),
	)
	s.router.Handle(endpointPath, streamableServer)
	s.logger.Info("MCP endpoint registered at %s", endpointPath)
}

// handleLiveness is the process-level probe. Dependency health lives at
// /v1/health.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = response.WriteJSON(w, map[string]string{"status": "ok"})
}
