package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/extraction"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/ledger"
	"github.com/moolen/atlas/internal/logging"
)

// sessionEndEventType marks the end of a session and triggers knowledge
// extraction over its transcript.
const sessionEndEventType = "system.session_end"

// sessionReadLimit bounds how much of a session transcript is fed to the
// extraction prompt.
const sessionReadLimit = 500

// NewExtractionConsumer builds the consumer that extracts entities,
// preferences, skills and interests from completed sessions.
func NewExtractionConsumer(cfg *config.Config, store *ledger.Store, graphClient graph.Client, extractor extraction.Extractor) *Consumer {
	persister := extraction.NewPersister(graphClient)
	logger := logging.GetLogger("worker.extraction")

	handler := func(ctx context.Context, msg redis.XMessage) error {
		event, err := decodeStreamEvent(msg)
		if err != nil {
			return err
		}
		if event == nil || event.EventType != sessionEndEventType {
			return nil
		}

		events, _, err := store.GetBySession(ctx, event.SessionID, sessionReadLimit, 0)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		known, err := persister.KnownEntities(ctx)
		if err != nil {
			return err
		}
		names := make([]string, len(known))
		for i, k := range known {
			names[i] = k.Name
		}

		result, err := extractor.ExtractSession(ctx, event.SessionID, events, names)
		if err != nil {
			return err
		}

		logger.Info("Extracted %d entities, %d preferences, %d skills, %d interests from session %s",
			len(result.Entities), len(result.Preferences), len(result.Skills),
			len(result.Interests), event.SessionID)

		return persister.Persist(ctx, result)
	}

	return NewConsumer(store.Client(), cfg.Redis.GlobalStream, cfg.Worker.GroupExtraction,
		consumerName(cfg.Worker.GroupExtraction),
		time.Duration(cfg.Worker.BlockTimeoutMs)*time.Millisecond,
		cfg.Worker.BatchSize, handler)
}
