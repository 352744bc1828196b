// Package projection turns ledger events into graph structure: event
// nodes, FOLLOWS edges along each session, and CAUSED_BY edges for
// explicit parent links.
package projection

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/models"
)

// sessionTail remembers the last projected event of a session so the
// FOLLOWS edge can be built without a graph round trip.
type sessionTail struct {
	EventID      string
	OccurredAtMs int64
}

// Projector writes events into the context graph.
type Projector struct {
	client graph.Client
	tails  *lru.Cache[string, sessionTail]
	logger *logging.Logger
}

// NewProjector creates a projector with a bounded session-tail cache.
func NewProjector(client graph.Client, tailCacheSize int) (*Projector, error) {
	tails, err := lru.New[string, sessionTail](tailCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating session tail cache: %w", err)
	}
	return &Projector{
		client: client,
		tails:  tails,
		logger: logging.GetLogger("projection"),
	}, nil
}

// Project writes one event and its edges. It is idempotent: replays of
// the same event MERGE into the existing structure. Edges are collected
// first and written grouped by type in one batch per type.
func (p *Projector) Project(ctx context.Context, event *models.Event) error {
	eventID := event.EventID.String()

	if _, err := p.client.ExecuteQuery(ctx, graph.MergeEventNodeQuery(event)); err != nil {
		return fmt.Errorf("projecting event %s: %w", eventID, err)
	}

	batch := &graph.EdgeBatch{}
	if err := p.linkFollows(ctx, event, batch); err != nil {
		return err
	}

	if event.ParentEventID != nil {
		batch.CausedBy = append(batch.CausedBy, graph.CausedByEdge{
			EffectEventID: eventID,
			CauseEventID:  event.ParentEventID.String(),
			Mechanism:     "direct",
			Confidence:    1.0,
		})
	}

	if !batch.Empty() {
		if err := graph.CreateEdgesBatch(ctx, p.client, batch); err != nil {
			return fmt.Errorf("linking event %s: %w", eventID, err)
		}
	}

	p.tails.Add(event.SessionID, sessionTail{
		EventID:      eventID,
		OccurredAtMs: event.OccurredAtEpochMs(),
	})
	return nil
}

// linkFollows connects the event to its session predecessor. On a cache
// miss (restart, evicted session) the tail is recovered from the graph.
func (p *Projector) linkFollows(ctx context.Context, event *models.Event, batch *graph.EdgeBatch) error {
	eventID := event.EventID.String()

	tail, ok := p.tails.Get(event.SessionID)
	if !ok {
		recovered, err := p.recoverTail(ctx, event.SessionID, eventID)
		if err != nil {
			return err
		}
		if recovered == nil {
			// First event of the session.
			return nil
		}
		tail = *recovered
	}

	if tail.EventID == eventID {
		return nil
	}

	deltaMs := event.OccurredAtEpochMs() - tail.OccurredAtMs
	if deltaMs < 0 {
		// Out-of-order arrival; the ledger order wins, so the edge still
		// points at the previously projected event.
		p.logger.Debug("Out-of-order event %s in session %s (delta %dms)", eventID, event.SessionID, deltaMs)
		deltaMs = 0
	}

	batch.Follows = append(batch.Follows, graph.FollowsEdge{
		EventID:     eventID,
		PrevEventID: tail.EventID,
		SessionID:   event.SessionID,
		DeltaMs:     deltaMs,
	})
	return nil
}

func (p *Projector) recoverTail(ctx context.Context, sessionID, excludeEventID string) (*sessionTail, error) {
	result, err := p.client.ExecuteQuery(ctx, graph.LastSessionEventQuery(sessionID))
	if err != nil {
		return nil, fmt.Errorf("recovering tail of session %s: %w", sessionID, err)
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) < 2 {
		return nil, nil
	}
	eventID := graph.RowString(result.Rows[0][0])
	if eventID == "" || eventID == excludeEventID {
		return nil, nil
	}
	return &sessionTail{
		EventID:      eventID,
		OccurredAtMs: graph.RowInt64(result.Rows[0][1]),
	}, nil
}
