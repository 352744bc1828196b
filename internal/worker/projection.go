package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/models"
	"github.com/moolen/atlas/internal/projection"
)

// NewProjectionConsumer builds the consumer that projects ledger events
// into graph nodes and ordering edges.
func NewProjectionConsumer(cfg *config.Config, client redis.UniversalClient, graphClient graph.Client) (*Consumer, error) {
	projector, err := projection.NewProjector(graphClient, cfg.Worker.SessionTailSize)
	if err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, msg redis.XMessage) error {
		event, err := decodeStreamEvent(msg)
		if err != nil {
			return err
		}
		if event == nil {
			// Trigger and other non-event messages belong to other groups.
			return nil
		}
		return projector.Project(ctx, event)
	}

	return NewConsumer(client, cfg.Redis.GlobalStream, cfg.Worker.GroupProjection,
		consumerName(cfg.Worker.GroupProjection),
		time.Duration(cfg.Worker.BlockTimeoutMs)*time.Millisecond,
		cfg.Worker.BatchSize, handler), nil
}

// decodeStreamEvent parses the event document carried on a global stream
// entry. Entries without an event_json field return nil.
func decodeStreamEvent(msg redis.XMessage) (*models.Event, error) {
	raw := messageString(msg, "event_json")
	if raw == "" {
		return nil, nil
	}

	var event models.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("decoding event in stream entry %s: %w", msg.ID, err)
	}
	// The entry ID was assigned after the document was serialized.
	event.GlobalPosition = msg.ID
	return &event, nil
}

func consumerName(group string) string {
	return group + "-1"
}
