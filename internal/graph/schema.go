package graph

import "context"

// schemaIndexes are created at startup. FalkorDB tolerates re-creation
// attempts with an "already indexed" error, which the client ignores.
var schemaIndexes = []string{
	"CREATE INDEX FOR (n:Event) ON (n.event_id)",
	"CREATE INDEX FOR (n:Event) ON (n.session_id)",
	"CREATE INDEX FOR (n:Event) ON (n.agent_id)",
	"CREATE INDEX FOR (n:Event) ON (n.trace_id)",
	"CREATE INDEX FOR (n:Event) ON (n.occurred_at)",
	"CREATE INDEX FOR (n:Event) ON (n.event_type)",
	"CREATE INDEX FOR (n:Entity) ON (n.entity_id)",
	"CREATE INDEX FOR (n:Entity) ON (n.name)",
	"CREATE INDEX FOR (n:Entity) ON (n.entity_type)",
	"CREATE INDEX FOR (n:Summary) ON (n.summary_id)",
	"CREATE INDEX FOR (n:Summary) ON (n.scope_id)",
	"CREATE INDEX FOR (n:UserProfile) ON (n.user_id)",
	"CREATE INDEX FOR (n:Preference) ON (n.preference_id)",
	"CREATE INDEX FOR (n:Skill) ON (n.skill_id)",
	"CREATE INDEX FOR (n:BehavioralPattern) ON (n.pattern_id)",
}

// Schema provides utilities for graph schema management
type Schema struct {
	client Client
}

// NewSchema creates a new Schema manager
func NewSchema(client Client) *Schema {
	return &Schema{
		client: client,
	}
}

// Initialize sets up the graph schema with indexes and constraints
func (s *Schema) Initialize(ctx context.Context) error {
	return s.client.InitializeSchema(ctx)
}
