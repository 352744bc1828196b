package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/consolidation"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/metrics"
)

// consolidationTriggerType marks a stream entry as a consolidation
// trigger rather than an event.
const consolidationTriggerType = "consolidation_trigger"

// NewConsolidationConsumer builds the consumer that runs consolidation
// cycles on trigger messages. Event entries are acknowledged untouched.
func NewConsolidationConsumer(cfg *config.Config, client redis.UniversalClient,
	store consolidation.LedgerMaintenance, graphClient graph.Client) *Consumer {
	engine := consolidation.NewEngine(graphClient, store, cfg)
	logger := logging.GetLogger("worker.consolidation")

	handler := func(ctx context.Context, msg redis.XMessage) error {
		if messageString(msg, "message_type") != consolidationTriggerType {
			return nil
		}

		sessionID := messageString(msg, "session_id")
		report, err := engine.RunCycle(ctx, sessionID)
		if err != nil {
			metrics.ConsolidationCycles.WithLabelValues("error").Inc()
			return err
		}
		metrics.ConsolidationCycles.WithLabelValues("ok").Inc()

		logger.Info("Consolidation cycle: %d sessions, %d summaries, %d pruned edges, %d deleted events, %d archived",
			report.SessionsConsolidated, report.SummariesWritten, report.SimilarEdgesDeleted,
			report.ColdEventsDeleted, report.EventsArchived)
		return nil
	}

	return NewConsumer(client, cfg.Redis.GlobalStream, cfg.Worker.GroupConsolidation,
		consumerName(cfg.Worker.GroupConsolidation),
		time.Duration(cfg.Worker.BlockTimeoutMs)*time.Millisecond,
		cfg.Worker.BatchSize, handler)
}
