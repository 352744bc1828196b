// Package mcp exposes the read-only graph query operations as Model
// Context Protocol tools so agent runtimes can pull their own context.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/moolen/atlas/internal/retrieval"
)

// Tool defines the interface for our tool implementations
type Tool interface {
	Execute(ctx context.Context, input json.RawMessage) (interface{}, error)
}

// AtlasServer wraps the mcp-go server with the query tool set.
type AtlasServer struct {
	mcpServer *server.MCPServer
	query     *retrieval.Service
	tools     map[string]Tool
	version   string
}

// NewAtlasServer creates the MCP server backed by the retrieval service.
// Tools call the service directly instead of going through HTTP.
func NewAtlasServer(query *retrieval.Service, version string) *AtlasServer {
	mcpServer := server.NewMCPServer(
		"Atlas MCP Server",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &AtlasServer{
		mcpServer: mcpServer,
		query:     query,
		tools:     make(map[string]Tool),
		version:   version,
	}
	s.registerTools()
	return s
}

func (s *AtlasServer) registerTools() {
	s.registerTool(
		"query_context",
		"Get the recent context of an agent session: events ordered by recency, ranked by memory score",
		&contextTool{query: s.query},
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session to assemble context for",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Optional: max events to return (default 100, max 500)",
				},
			},
			"required": []string{"session_id"},
		},
	)

	s.registerTool(
		"query_subgraph",
		"Run an intent-aware subgraph query: seeds are selected from the query text and expanded along weighted edges",
		&subgraphTool{query: s.query},
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language query, e.g. 'why did the deploy fail'",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional: session to scope seed selection to",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Optional: override the inferred intent (why, when, what, related, who_is, how_does, personalize)",
				},
				"max_nodes": map[string]interface{}{
					"type":        "integer",
					"description": "Optional: max nodes to return (default 100, max 500)",
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Optional: traversal depth (default 3, max 10)",
				},
			},
			"required": []string{"query"},
		},
	)

	s.registerTool(
		"query_lineage",
		"Trace the causal chain behind an event: which events caused it, up to a bounded depth",
		&lineageTool{query: s.query},
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"node_id": map[string]interface{}{
					"type":        "string",
					"description": "Event ID to trace backwards from",
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Optional: max causal hops (default 3, max 10)",
				},
			},
			"required": []string{"node_id"},
		},
	)
}

func (s *AtlasServer) registerTool(name, description string, tool Tool, inputSchema map[string]interface{}) {
	s.tools[name] = tool

	schemaJSON, err := json.Marshal(inputSchema)
	if err != nil {
		// This should never happen with well-formed schemas
		panic(fmt.Sprintf("Failed to marshal schema for tool %s: %v", name, err))
	}

	mcpTool := mcp.NewToolWithRawSchema(name, description, schemaJSON)
	s.mcpServer.AddTool(mcpTool, s.createToolHandler(tool))
}

func (s *AtlasServer) createToolHandler(tool Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %v", err)), nil
		}

		resultJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
		}

		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

// GetMCPServer returns the underlying mcp-go server for transport setup
func (s *AtlasServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
