package models

import "time"

// NodeType identifies a node label in the context graph.
type NodeType string

const (
	NodeTypeEvent             NodeType = "Event"
	NodeTypeEntity            NodeType = "Entity"
	NodeTypeSummary           NodeType = "Summary"
	NodeTypeUserProfile       NodeType = "UserProfile"
	NodeTypePreference        NodeType = "Preference"
	NodeTypeSkill             NodeType = "Skill"
	NodeTypeWorkflow          NodeType = "Workflow"
	NodeTypeBehavioralPattern NodeType = "BehavioralPattern"
)

// EdgeType identifies a relationship type in the context graph.
type EdgeType string

const (
	EdgeTypeFollows    EdgeType = "FOLLOWS"
	EdgeTypeCausedBy   EdgeType = "CAUSED_BY"
	EdgeTypeSimilarTo  EdgeType = "SIMILAR_TO"
	EdgeTypeReferences EdgeType = "REFERENCES"
	EdgeTypeSummarizes EdgeType = "SUMMARIZES"
	EdgeTypeSameAs     EdgeType = "SAME_AS"
	EdgeTypeRelatedTo  EdgeType = "RELATED_TO"

	// Personalization edges.
	EdgeTypeHasProfile      EdgeType = "HAS_PROFILE"
	EdgeTypeHasPreference   EdgeType = "HAS_PREFERENCE"
	EdgeTypeHasSkill        EdgeType = "HAS_SKILL"
	EdgeTypeExhibitsPattern EdgeType = "EXHIBITS_PATTERN"
	EdgeTypeInterestedIn    EdgeType = "INTERESTED_IN"
	EdgeTypeAbout           EdgeType = "ABOUT"
	EdgeTypeDerivedFrom     EdgeType = "DERIVED_FROM"
	EdgeTypeParentSkill     EdgeType = "PARENT_SKILL"
	EdgeTypeAbstractedFrom  EdgeType = "ABSTRACTED_FROM"
)

// EntityType categorizes entities derived during extraction.
type EntityType string

const (
	EntityTypeAgent    EntityType = "agent"
	EntityTypeUser     EntityType = "user"
	EntityTypeService  EntityType = "service"
	EntityTypeTool     EntityType = "tool"
	EntityTypeResource EntityType = "resource"
	EntityTypeConcept  EntityType = "concept"
)

// EventNode is the graph projection of a ledger event. Derived attributes
// are populated by the enrichment consumer.
type EventNode struct {
	EventID        string     `json:"event_id"`
	EventType      string     `json:"event_type"`
	OccurredAt     time.Time  `json:"occurred_at"`
	SessionID      string     `json:"session_id"`
	AgentID        string     `json:"agent_id"`
	TraceID        string     `json:"trace_id"`
	ToolName       string     `json:"tool_name,omitempty"`
	GlobalPosition string     `json:"global_position"`
	Keywords       []string   `json:"keywords,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	Embedding      []float64  `json:"embedding,omitempty"`
	ImportanceScore *int      `json:"importance_score,omitempty"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// EntityNode is a named entity derived during extraction.
type EntityNode struct {
	EntityID     string     `json:"entity_id"`
	Name         string     `json:"name"`
	EntityType   EntityType `json:"entity_type"`
	FirstSeen    time.Time  `json:"first_seen"`
	LastSeen     time.Time  `json:"last_seen"`
	MentionCount int        `json:"mention_count"`
}

// SummaryNode is created during re-consolidation. Scope is one of
// "episode", "session" or "agent".
type SummaryNode struct {
	SummaryID  string      `json:"summary_id"`
	Scope      string      `json:"scope"`
	ScopeID    string      `json:"scope_id"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
	EventCount int         `json:"event_count"`
	TimeRange  []time.Time `json:"time_range,omitempty"`
}

// UserProfileNode holds stable user-level attributes.
type UserProfileNode struct {
	ProfileID          string    `json:"profile_id"`
	UserID             string    `json:"user_id"`
	DisplayName        string    `json:"display_name,omitempty"`
	Timezone           string    `json:"timezone,omitempty"`
	Language           string    `json:"language,omitempty"`
	CommunicationStyle string    `json:"communication_style,omitempty"`
	TechnicalLevel     string    `json:"technical_level,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PreferenceNode is a single observed user preference.
type PreferenceNode struct {
	PreferenceID     string    `json:"preference_id"`
	Category         string    `json:"category"`
	Key              string    `json:"key"`
	Polarity         string    `json:"polarity"`
	Strength         float64   `json:"strength"`
	Confidence       float64   `json:"confidence"`
	Source           string    `json:"source"`
	Context          string    `json:"context,omitempty"`
	Scope            string    `json:"scope"`
	ScopeID          string    `json:"scope_id,omitempty"`
	ObservationCount int       `json:"observation_count"`
	FirstObservedAt  time.Time `json:"first_observed_at"`
	LastConfirmedAt  time.Time `json:"last_confirmed_at"`
	AccessCount      int       `json:"access_count"`
	Stability        float64   `json:"stability"`
	SupersededBy     string    `json:"superseded_by,omitempty"`
}

// SkillNode is a user competency shared across users; proficiency lives on
// the HAS_SKILL edge.
type SkillNode struct {
	SkillID     string    `json:"skill_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// BehavioralPatternNode is a recurring observed behavior.
type BehavioralPatternNode struct {
	PatternID        string    `json:"pattern_id"`
	PatternType      string    `json:"pattern_type"`
	Description      string    `json:"description"`
	Confidence       float64   `json:"confidence"`
	ObservationCount int       `json:"observation_count"`
	InvolvedAgents   []string  `json:"involved_agents,omitempty"`
	FirstDetectedAt  time.Time `json:"first_detected_at"`
	LastConfirmedAt  time.Time `json:"last_confirmed_at"`
	AccessCount      int       `json:"access_count"`
	Stability        float64   `json:"stability"`
}

// Edge is a typed relationship between two node IDs.
type Edge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	EdgeType   EdgeType       `json:"edge_type"`
	Properties map[string]any `json:"properties,omitempty"`
}
