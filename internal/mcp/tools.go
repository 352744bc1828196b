package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moolen/atlas/internal/models"
	"github.com/moolen/atlas/internal/retrieval"
)

type contextTool struct {
	query *retrieval.Service
}

type contextArgs struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit,omitempty"`
	Query     string `json:"query,omitempty"`
}

func (t *contextTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args contextArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if args.Limit == 0 {
		args.Limit = models.DefaultResultNodes
	}
	return t.query.SessionContext(ctx, args.SessionID, args.Limit, args.Query)
}

type subgraphTool struct {
	query *retrieval.Service
}

func (t *subgraphTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args models.SubgraphQuery
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return t.query.Subgraph(ctx, &args)
}

type lineageTool struct {
	query *retrieval.Service
}

func (t *lineageTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args models.LineageQuery
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.NodeID == "" {
		return nil, fmt.Errorf("node_id is required")
	}
	return t.query.Lineage(ctx, &args)
}
