package models

import "time"

// Traversal bounds. Requests outside these ranges are clamped, not
// rejected.
const (
	MinTraversalDepth     = 1
	MaxTraversalDepth     = 10
	DefaultTraversalDepth = 3

	MinResultNodes     = 1
	MaxResultNodes     = 500
	DefaultResultNodes = 100

	MinQueryTimeoutMs     = 100
	MaxQueryTimeoutMs     = 30000
	DefaultQueryTimeoutMs = 5000
)

// EventQuery filters a ledger search.
type EventQuery struct {
	SessionID string     `json:"session_id,omitempty"`
	AgentID   string     `json:"agent_id,omitempty"`
	TraceID   string     `json:"trace_id,omitempty"`
	EventType string     `json:"event_type,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	After     *time.Time `json:"after,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// Normalize applies the default limit and clamps pagination.
func (q *EventQuery) Normalize() {
	if q.Limit < 1 {
		q.Limit = 100
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// SubgraphQuery describes an intent-aware subgraph retrieval. Intent and
// seed nodes are inferred from the query text when not provided.
type SubgraphQuery struct {
	Query     string   `json:"query"`
	SessionID string   `json:"session_id"`
	AgentID   string   `json:"agent_id"`
	MaxNodes  int      `json:"max_nodes,omitempty"`
	MaxDepth  int      `json:"max_depth,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
	Intent    string   `json:"intent,omitempty"`
	SeedNodes []string `json:"seed_nodes,omitempty"`
}

// Normalize clamps traversal bounds into their allowed ranges.
func (q *SubgraphQuery) Normalize() {
	q.MaxDepth = clampInt(q.MaxDepth, MinTraversalDepth, MaxTraversalDepth, DefaultTraversalDepth)
	q.MaxNodes = clampInt(q.MaxNodes, MinResultNodes, MaxResultNodes, DefaultResultNodes)
	q.TimeoutMs = clampInt(q.TimeoutMs, MinQueryTimeoutMs, MaxQueryTimeoutMs, DefaultQueryTimeoutMs)
}

// LineageQuery describes a causal-chain traversal from a node.
type LineageQuery struct {
	NodeID   string `json:"node_id"`
	MaxDepth int    `json:"max_depth,omitempty"`
	MaxNodes int    `json:"max_nodes,omitempty"`
	Intent   string `json:"intent,omitempty"`
}

// Normalize clamps traversal bounds into their allowed ranges.
func (q *LineageQuery) Normalize() {
	q.MaxDepth = clampInt(q.MaxDepth, MinTraversalDepth, MaxTraversalDepth, DefaultTraversalDepth)
	q.MaxNodes = clampInt(q.MaxNodes, MinResultNodes, MaxResultNodes, DefaultResultNodes)
}

func clampInt(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
