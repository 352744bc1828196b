package models

import "time"

// Provenance points a graph node back at its ledger record.
type Provenance struct {
	EventID        string    `json:"event_id"`
	GlobalPosition string    `json:"global_position"`
	Source         string    `json:"source"`
	OccurredAt     time.Time `json:"occurred_at"`
	SessionID      string    `json:"session_id"`
	AgentID        string    `json:"agent_id"`
	TraceID        string    `json:"trace_id"`
}

// NodeScores carries the scoring factors for a returned node.
// Decay and relevance are rounded to six decimal places; importance is the
// 1-10 integer hint.
type NodeScores struct {
	DecayScore      float64 `json:"decay_score"`
	RelevanceScore  float64 `json:"relevance_score"`
	ImportanceScore int     `json:"importance_score"`
}

// AtlasNode is a node in a query response.
type AtlasNode struct {
	NodeID          string         `json:"node_id"`
	NodeType        string         `json:"node_type"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	Provenance      *Provenance    `json:"provenance,omitempty"`
	Scores          NodeScores     `json:"scores"`
	RetrievalReason string         `json:"retrieval_reason"`
	ProactiveSignal string         `json:"proactive_signal,omitempty"`
}

// AtlasEdge is an edge in a query response.
type AtlasEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	EdgeType   string         `json:"edge_type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// QueryCapacity reports the bounds a query ran under.
type QueryCapacity struct {
	MaxNodes  int `json:"max_nodes"`
	UsedNodes int `json:"used_nodes"`
	MaxDepth  int `json:"max_depth"`
}

// QueryMeta carries retrieval reasoning alongside results.
type QueryMeta struct {
	QueryMs         int64              `json:"query_ms"`
	NodesReturned   int                `json:"nodes_returned"`
	Truncated       bool               `json:"truncated"`
	InferredIntents map[string]float64 `json:"inferred_intents,omitempty"`
	IntentOverride  string             `json:"intent_override,omitempty"`
	SeedNodes       []string           `json:"seed_nodes,omitempty"`
	ProactiveNodes  int                `json:"proactive_nodes"`
	ScoringWeights  map[string]float64 `json:"scoring_weights,omitempty"`
	Capacity        *QueryCapacity     `json:"capacity,omitempty"`
}

// Pagination is a cursor for continuing a truncated result set.
type Pagination struct {
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// AtlasResponse is the envelope every graph query returns: nodes keyed by
// ID, edges, pagination and query metadata.
type AtlasResponse struct {
	Nodes      map[string]AtlasNode `json:"nodes"`
	Edges      []AtlasEdge          `json:"edges"`
	Pagination Pagination           `json:"pagination"`
	Meta       QueryMeta            `json:"meta"`
}

// NewAtlasResponse returns an empty envelope with initialized collections.
func NewAtlasResponse() *AtlasResponse {
	return &AtlasResponse{
		Nodes: make(map[string]AtlasNode),
		Edges: []AtlasEdge{},
	}
}
