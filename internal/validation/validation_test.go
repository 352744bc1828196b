package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/atlas/internal/models"
)

func validEvent() *models.Event {
	return &models.Event{
		EventID:    uuid.New(),
		EventType:  "tool.invoke",
		OccurredAt: time.Now().UTC().Add(-time.Minute),
		SessionID:  "sess-1",
		AgentID:    "agent-1",
		TraceID:    "trace-1",
		PayloadRef: "s3://bucket/payload",
	}
}

func TestValidateEvent_Valid(t *testing.T) {
	result := ValidateEvent(validEvent())
	require.True(t, result.IsValid())
	assert.Empty(t, result.Errors)
}

func TestValidateEvent_EventTypePattern(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		valid     bool
	}{
		{"two segments", "agent.invoke", true},
		{"three segments", "tool.invoke.retry", true},
		{"underscore in action", "system.session_end", true},
		{"single segment", "agent", false},
		{"uppercase", "Agent.Invoke", false},
		{"leading digit", "1agent.invoke", false},
		{"trailing dot", "agent.", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			event.EventType = tt.eventType
			result := ValidateEvent(event)
			if tt.valid {
				assert.True(t, result.IsValid())
			} else {
				require.False(t, result.IsValid())
				assert.Equal(t, "event_type", result.Errors[0].Field)
			}
		})
	}
}

func TestValidateEvent_FutureDrift(t *testing.T) {
	event := validEvent()
	event.OccurredAt = time.Now().UTC().Add(10 * time.Minute)

	result := ValidateEvent(event)
	require.False(t, result.IsValid())
	assert.Equal(t, "occurred_at", result.Errors[0].Field)

	// Within the 5-minute drift window is fine.
	event.OccurredAt = time.Now().UTC().Add(2 * time.Minute)
	assert.True(t, ValidateEvent(event).IsValid())
}

func TestValidateEvent_SelfReferentialParent(t *testing.T) {
	event := validEvent()
	parent := event.EventID
	event.ParentEventID = &parent

	result := ValidateEvent(event)
	require.False(t, result.IsValid())
	assert.Equal(t, "parent_event_id", result.Errors[0].Field)

	other := uuid.New()
	event.ParentEventID = &other
	assert.True(t, ValidateEvent(event).IsValid())
}

func TestValidateEvent_EndedAtOrdering(t *testing.T) {
	event := validEvent()
	before := event.OccurredAt.Add(-time.Second)
	event.EndedAt = &before

	result := ValidateEvent(event)
	require.False(t, result.IsValid())
	assert.Equal(t, "ended_at", result.Errors[0].Field)

	// Zero-duration events are allowed.
	same := event.OccurredAt
	event.EndedAt = &same
	assert.True(t, ValidateEvent(event).IsValid())
}

func TestValidateEvent_PayloadRefLength(t *testing.T) {
	event := validEvent()
	event.PayloadRef = string(make([]byte, MaxPayloadRefLength+1))

	result := ValidateEvent(event)
	require.False(t, result.IsValid())
	assert.Equal(t, "payload_ref", result.Errors[0].Field)
}

func TestValidateEvent_RequiredFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*models.Event)
	}{
		{"event_id", func(e *models.Event) { e.EventID = uuid.Nil }},
		{"session_id", func(e *models.Event) { e.SessionID = "" }},
		{"agent_id", func(e *models.Event) { e.AgentID = "" }},
		{"trace_id", func(e *models.Event) { e.TraceID = "" }},
		{"payload_ref", func(e *models.Event) { e.PayloadRef = "" }},
		{"occurred_at", func(e *models.Event) { e.OccurredAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)
			result := ValidateEvent(event)
			require.False(t, result.IsValid())
			assert.Equal(t, tt.field, result.Errors[0].Field)
			assert.Equal(t, "Required field is missing", result.Errors[0].Message)
		})
	}
}

func TestValidateEvent_ImportanceHintRange(t *testing.T) {
	event := validEvent()
	hint := 42
	event.ImportanceHint = &hint

	result := ValidateEvent(event)
	require.False(t, result.IsValid())
	assert.Equal(t, "importance_hint", result.Errors[0].Field)

	hint = 10
	assert.True(t, ValidateEvent(event).IsValid())
	hint = 0
	assert.False(t, ValidateEvent(event).IsValid())
}

func TestValidateEvent_StatusMembership(t *testing.T) {
	event := validEvent()
	event.Status = "partial"

	result := ValidateEvent(event)
	require.False(t, result.IsValid())
	assert.Equal(t, "status", result.Errors[0].Field)

	for _, status := range []models.EventStatus{
		"", models.EventStatusPending, models.EventStatusRunning,
		models.EventStatusCompleted, models.EventStatusFailed, models.EventStatusTimeout,
	} {
		event.Status = status
		assert.True(t, ValidateEvent(event).IsValid(), "status %q", status)
	}
}

func TestValidateEvent_EmptyEventRejected(t *testing.T) {
	hint := 42
	event := &models.Event{ImportanceHint: &hint}

	result := ValidateEvent(event)
	require.False(t, result.IsValid())

	fields := map[string]bool{}
	for _, fe := range result.Errors {
		fields[fe.Field] = true
	}
	for _, field := range []string{"event_id", "session_id", "agent_id", "trace_id",
		"payload_ref", "occurred_at", "event_type", "importance_hint"} {
		assert.True(t, fields[field], "expected an error for %s", field)
	}
}

func TestValidateEvent_CollectsAllErrors(t *testing.T) {
	event := validEvent()
	event.EventType = "BAD"
	event.OccurredAt = time.Now().UTC().Add(time.Hour)
	parent := event.EventID
	event.ParentEventID = &parent

	result := ValidateEvent(event)
	assert.Len(t, result.Errors, 3)
}

func TestHasKnownPrefix(t *testing.T) {
	assert.True(t, HasKnownPrefix("tool.invoke"))
	assert.True(t, HasKnownPrefix("system.session_end"))
	assert.True(t, HasKnownPrefix("agent"))
	assert.False(t, HasKnownPrefix("custom.event"))
	assert.False(t, HasKnownPrefix(""))
}
