package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/logging"
)

// Scheduler posts consolidation trigger messages to the global stream on
// a fixed interval. The consolidation consumer picks them up like any
// other stream entry, so a cycle runs exactly once per trigger even with
// multiple replicas.
type Scheduler struct {
	client   redis.UniversalClient
	stream   string
	interval time.Duration
	logger   *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewScheduler creates the consolidation scheduler.
func NewScheduler(cfg *config.Config, client redis.UniversalClient) *Scheduler {
	return &Scheduler{
		client:   client,
		stream:   cfg.Redis.GlobalStream,
		interval: time.Duration(cfg.Decay.ReconsolidationIntervalHours) * time.Hour,
		logger:   logging.GetLogger("worker.scheduler"),
		now:      time.Now,
	}
}

// Name implements lifecycle.Component.
func (s *Scheduler) Name() string {
	return "consolidation-scheduler"
}

// Start begins the trigger ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(runCtx)

	s.logger.Info("Scheduler started, interval %s", s.interval)
	return nil
}

// Stop terminates the ticker.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PostTrigger(ctx, ""); err != nil {
				s.logger.Error("Posting consolidation trigger: %v", err)
			}
		}
	}
}

// PostTrigger appends one consolidation trigger to the global stream. A
// non-empty session ID forces consolidation of that session regardless
// of its event count.
func (s *Scheduler) PostTrigger(ctx context.Context, sessionID string) error {
	values := map[string]interface{}{
		"message_type": consolidationTriggerType,
		"triggered_at": strconv.FormatInt(s.now().UnixMilli(), 10),
	}
	if sessionID != "" {
		values["session_id"] = sessionID
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}).Err()
}
