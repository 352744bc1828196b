package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/models"
)

// tagSpecialChars are the RediSearch TAG punctuation characters that must
// be backslash-escaped to match literally.
const tagSpecialChars = ".,<>{}[]\"':;!@#$%^&*()-+=~/ "

// EscapeTagValue escapes a value for use inside a TAG filter clause.
func EscapeTagValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if strings.ContainsRune(tagSpecialChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureIndex creates the events search index when it does not exist.
// An existing index is left untouched.
func (s *Store) EnsureIndex(ctx context.Context) error {
	if err := s.client.FTInfo(ctx, s.cfg.EventIndex).Err(); err == nil {
		s.logger.Debug("Search index %s already exists", s.cfg.EventIndex)
		return nil
	}

	options := &redis.FTCreateOptions{
		OnHash: true,
		Prefix: []interface{}{searchHashPrefix},
	}
	schema := []*redis.FieldSchema{
		{FieldName: "session_id", FieldType: redis.SearchFieldTypeTag},
		{FieldName: "agent_id", FieldType: redis.SearchFieldTypeTag},
		{FieldName: "trace_id", FieldType: redis.SearchFieldTypeTag},
		{FieldName: "event_type", FieldType: redis.SearchFieldTypeTag},
		{FieldName: "tool_name", FieldType: redis.SearchFieldTypeTag},
		{FieldName: "occurred_at_epoch_ms", FieldType: redis.SearchFieldTypeNumeric, Sortable: true},
		{FieldName: "importance_hint", FieldType: redis.SearchFieldTypeNumeric, Sortable: true},
	}

	if err := s.client.FTCreate(ctx, s.cfg.EventIndex, options, schema...).Err(); err != nil {
		// Concurrent startup can race index creation.
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return fmt.Errorf("creating search index %s: %w", s.cfg.EventIndex, err)
	}
	s.logger.Info("Created search index %s", s.cfg.EventIndex)
	return nil
}

// BuildSearchQuery renders an EventQuery into a RediSearch query string.
// An empty query matches everything.
func BuildSearchQuery(query *models.EventQuery) string {
	var filters []string

	if query.SessionID != "" {
		filters = append(filters, fmt.Sprintf("@session_id:{%s}", EscapeTagValue(query.SessionID)))
	}
	if query.AgentID != "" {
		filters = append(filters, fmt.Sprintf("@agent_id:{%s}", EscapeTagValue(query.AgentID)))
	}
	if query.TraceID != "" {
		filters = append(filters, fmt.Sprintf("@trace_id:{%s}", EscapeTagValue(query.TraceID)))
	}
	if query.EventType != "" {
		filters = append(filters, fmt.Sprintf("@event_type:{%s}", EscapeTagValue(query.EventType)))
	}
	if query.ToolName != "" {
		filters = append(filters, fmt.Sprintf("@tool_name:{%s}", EscapeTagValue(query.ToolName)))
	}

	if query.After != nil || query.Before != nil {
		afterMs := "-inf"
		beforeMs := "+inf"
		if query.After != nil {
			afterMs = strconv.FormatInt(query.After.UnixMilli(), 10)
		}
		if query.Before != nil {
			beforeMs = strconv.FormatInt(query.Before.UnixMilli(), 10)
		}
		filters = append(filters, fmt.Sprintf("@occurred_at_epoch_ms:[%s %s]", afterMs, beforeMs))
	}

	if len(filters) == 0 {
		return "*"
	}
	return strings.Join(filters, " ")
}

// Search runs a filtered, time-ordered event search against the index and
// resolves matches to full event documents.
func (s *Store) Search(ctx context.Context, query *models.EventQuery) ([]*models.Event, error) {
	query.Normalize()

	options := &redis.FTSearchOptions{
		SortBy: []redis.FTSearchSortBy{
			{FieldName: "occurred_at_epoch_ms", Asc: true},
		},
		LimitOffset: query.Offset,
		Limit:       query.Limit,
	}

	result, err := s.client.FTSearchWithArgs(ctx, s.cfg.EventIndex, BuildSearchQuery(query), options).Result()
	if err != nil {
		return nil, fmt.Errorf("searching events: %w", err)
	}

	events := make([]*models.Event, 0, len(result.Docs))
	for _, doc := range result.Docs {
		eventID := strings.TrimPrefix(doc.ID, searchHashPrefix)
		event, err := s.GetByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if event != nil {
			events = append(events, event)
		}
	}
	return events, nil
}
