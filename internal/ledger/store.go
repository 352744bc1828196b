// Package ledger implements the append-only event ledger on Redis:
// streams carry the ordered ledger, string keys hold the full JSON
// documents, hashes feed the RediSearch secondary index, and a sorted set
// provides idempotency.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/models"
)

// searchHashPrefix is the key prefix for the index hashes the Lua script
// maintains alongside each event document.
const searchHashPrefix = "evtidx:"

// Store is the Redis-backed event ledger.
type Store struct {
	client redis.UniversalClient
	cfg    config.RedisConfig
	logger *logging.Logger

	// now supplies the ingestion timestamp for dedup scoring.
	now func() time.Time
}

// NewStore creates a ledger store on an existing Redis client.
func NewStore(client redis.UniversalClient, cfg config.RedisConfig) *Store {
	return &Store{
		client: client,
		cfg:    cfg,
		logger: logging.GetLogger("ledger"),
		now:    time.Now,
	}
}

// Client exposes the underlying Redis client for consumers that share the
// connection.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// DocKey returns the document key for an event ID.
func (s *Store) DocKey(eventID string) string {
	return s.cfg.EventKeyPrefix + eventID
}

// SessionStreamKey returns the per-session mirror stream key.
func (s *Store) SessionStreamKey(sessionID string) string {
	return s.cfg.SessionStreamPrefix + sessionID
}

func (s *Store) searchHashKey(eventID string) string {
	return searchHashPrefix + eventID
}

// Append atomically appends one event and returns its global position.
// Duplicate event IDs return the position assigned on first ingestion.
func (s *Store) Append(ctx context.Context, event *models.Event) (string, error) {
	eventID := event.EventID.String()
	epochMs := event.OccurredAtEpochMs()

	doc, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("serializing event %s: %w", eventID, err)
	}

	hint := ""
	if event.ImportanceHint != nil {
		hint = strconv.Itoa(*event.ImportanceHint)
	}

	keys := []string{
		s.cfg.GlobalStream,
		s.DocKey(eventID),
		s.cfg.DedupSet,
		s.SessionStreamKey(event.SessionID),
		s.searchHashKey(eventID),
	}
	args := []interface{}{
		eventID,
		string(doc),
		strconv.FormatInt(epochMs, 10),
		event.SessionID,
		event.AgentID,
		event.TraceID,
		event.EventType,
		event.ToolName,
		hint,
		strconv.FormatInt(s.now().UTC().UnixMilli(), 10),
	}

	result, err := ingestScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return "", fmt.Errorf("appending event %s: %w", eventID, err)
	}

	if s.cfg.WaitForReplica {
		if err := s.client.Do(ctx, "WAIT", 1, 100).Err(); err != nil {
			s.logger.Warn("Replica WAIT failed: %v", err)
		}
	}

	position := fmt.Sprintf("%v", result)
	s.logger.Debug("Appended event %s at position %s", eventID, position)
	return position, nil
}

// AppendBatch appends events in order; each append is individually
// atomic. Positions are returned in input order.
func (s *Store) AppendBatch(ctx context.Context, events []*models.Event) ([]string, error) {
	positions := make([]string, 0, len(events))
	for _, event := range events {
		position, err := s.Append(ctx, event)
		if err != nil {
			return positions, err
		}
		positions = append(positions, position)
	}
	return positions, nil
}

// GetByID retrieves a single event document, or nil when absent.
func (s *Store) GetByID(ctx context.Context, eventID string) (*models.Event, error) {
	raw, err := s.client.Get(ctx, s.DocKey(eventID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching event %s: %w", eventID, err)
	}
	return decodeEvent([]byte(raw))
}

// GetBySession returns up to limit events of a session ordered by
// occurred_at ascending, read from the session mirror stream. cursor is
// a numeric offset into that ordering; the second return value is the
// cursor for the next page, or 0 when the session is exhausted.
func (s *Store) GetBySession(ctx context.Context, sessionID string, limit, cursor int64) ([]*models.Event, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	if cursor < 0 {
		cursor = 0
	}

	entries, err := s.client.XRange(ctx, s.SessionStreamKey(sessionID), "-", "+").Result()
	if err != nil {
		return nil, 0, fmt.Errorf("reading session stream %s: %w", sessionID, err)
	}

	events := make([]*models.Event, 0, len(entries))
	for _, entry := range entries {
		eventID, ok := entry.Values["event_id"].(string)
		if !ok {
			continue
		}
		event, err := s.GetByID(ctx, eventID)
		if err != nil {
			return nil, 0, err
		}
		if event != nil {
			events = append(events, event)
		}
	}

	// Producers may submit out of time order; the read view is by
	// occurred_at, with the ledger position breaking ties.
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].GlobalPosition < events[j].GlobalPosition
	})

	if cursor >= int64(len(events)) {
		return []*models.Event{}, 0, nil
	}
	page := events[cursor:]
	next := int64(0)
	if int64(len(page)) > limit {
		page = page[:limit]
		next = cursor + limit
	}
	return page, next, nil
}

// StreamLength returns the global stream length.
func (s *Store) StreamLength(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, s.cfg.GlobalStream).Result()
}

// Ping checks ledger connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeEvent(raw []byte) (*models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decoding event document: %w", err)
	}
	return &event, nil
}
