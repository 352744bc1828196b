package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus describes the lifecycle state of an event, when known.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusRunning   EventStatus = "running"
	EventStatusCompleted EventStatus = "completed"
	EventStatusFailed    EventStatus = "failed"
	EventStatusTimeout   EventStatus = "timeout"
)

// Valid reports whether the status is one of the known states. The
// empty status is valid, the field is optional.
func (s EventStatus) Valid() bool {
	switch s {
	case "", EventStatusPending, EventStatusRunning, EventStatusCompleted,
		EventStatusFailed, EventStatusTimeout:
		return true
	}
	return false
}

// Event is the immutable ledger record. Eight required fields plus six
// optional fields; global_position is assigned by the ledger on append and
// must be empty on ingestion.
type Event struct {
	EventID    uuid.UUID `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	SessionID  string    `json:"session_id"`
	AgentID    string    `json:"agent_id"`
	TraceID    string    `json:"trace_id"`
	PayloadRef string    `json:"payload_ref"`

	// GlobalPosition is the Redis stream entry ID, auto-assigned on append.
	GlobalPosition string `json:"global_position,omitempty"`

	ToolName       string      `json:"tool_name,omitempty"`
	ParentEventID  *uuid.UUID  `json:"parent_event_id,omitempty"`
	EndedAt        *time.Time  `json:"ended_at,omitempty"`
	Status         EventStatus `json:"status,omitempty"`
	SchemaVersion  int         `json:"schema_version,omitempty"`
	ImportanceHint *int        `json:"importance_hint,omitempty"`
}

// OccurredAtEpochMs returns the event timestamp as epoch milliseconds,
// the unit used for stream trimming and index range filters.
func (e *Event) OccurredAtEpochMs() int64 {
	return e.OccurredAt.UnixMilli()
}
