// Package validation holds the event envelope rules applied before a
// record enters the ledger. Errors are collected, not fail-fast, so a
// caller can report every problem with a submission at once.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moolen/atlas/internal/models"
)

// Dot-namespaced event type pattern: <category>.<action>[.<sub>]
var eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(\.[a-z][a-z0-9_]*)+$`)

// Known event type prefixes.
var knownPrefixes = map[string]struct{}{
	"agent":       {},
	"tool":        {},
	"llm":         {},
	"observation": {},
	"system":      {},
	"user":        {},
}

const (
	// MaxPayloadRefLength bounds the payload pointer.
	MaxPayloadRefLength = 2048

	// MaxFutureDrift is how far into the future occurred_at may be.
	MaxFutureDrift = 300 * time.Second
)

// FieldError is a single validation failure tied to a field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result accumulates validation errors for an event.
type Result struct {
	Errors []FieldError
}

// IsValid reports whether no errors were collected.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// ValidateEvent checks an event envelope before ingestion: required
// fields present, dot-namespaced event_type, bounded future drift, no
// self-referential parent, ended_at ordering, payload_ref length,
// importance_hint range and status membership.
func ValidateEvent(event *models.Event) *Result {
	result := &Result{}

	if event.EventID == uuid.Nil {
		result.addError("event_id", "Required field is missing")
	}
	if event.SessionID == "" {
		result.addError("session_id", "Required field is missing")
	}
	if event.AgentID == "" {
		result.addError("agent_id", "Required field is missing")
	}
	if event.TraceID == "" {
		result.addError("trace_id", "Required field is missing")
	}
	if event.PayloadRef == "" {
		result.addError("payload_ref", "Required field is missing")
	}
	if event.OccurredAt.IsZero() {
		result.addError("occurred_at", "Required field is missing")
	}

	if !eventTypePattern.MatchString(event.EventType) {
		result.addError("event_type",
			fmt.Sprintf("Must be dot-namespaced (e.g., 'agent.invoke'), got '%s'", event.EventType))
	}

	if drift := time.Until(event.OccurredAt); drift > MaxFutureDrift {
		result.addError("occurred_at",
			fmt.Sprintf("Event timestamp is %.0fs in the future (max %.0fs)",
				drift.Seconds(), MaxFutureDrift.Seconds()))
	}

	if event.ParentEventID != nil && *event.ParentEventID == event.EventID {
		result.addError("parent_event_id", "Cannot reference own event_id as parent")
	}

	if event.EndedAt != nil && event.EndedAt.Before(event.OccurredAt) {
		result.addError("ended_at", "ended_at must be >= occurred_at")
	}

	if len(event.PayloadRef) > MaxPayloadRefLength {
		result.addError("payload_ref",
			fmt.Sprintf("payload_ref exceeds max length of %d", MaxPayloadRefLength))
	}

	if event.ImportanceHint != nil && (*event.ImportanceHint < 1 || *event.ImportanceHint > 10) {
		result.addError("importance_hint",
			fmt.Sprintf("Must be between 1 and 10, got %d", *event.ImportanceHint))
	}

	if !event.Status.Valid() {
		result.addError("status",
			fmt.Sprintf("Unknown status '%s' (expected pending, running, completed, failed or timeout)", event.Status))
	}

	return result
}

// HasKnownPrefix reports whether the event type starts with one of the
// known category prefixes.
func HasKnownPrefix(eventType string) bool {
	prefix := eventType
	if idx := strings.Index(eventType, "."); idx >= 0 {
		prefix = eventType[:idx]
	}
	_, ok := knownPrefixes[prefix]
	return ok
}
