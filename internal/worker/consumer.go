// Package worker runs the stream consumer groups that fan the global
// event stream out into the graph: projection, enrichment, session
// extraction and consolidation, plus the consolidation scheduler.
package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/metrics"
)

// HandlerFunc processes one stream message. A nil error acknowledges the
// message; an error leaves it pending for recovery on the next start.
type HandlerFunc func(ctx context.Context, msg redis.XMessage) error

// Consumer is a lifecycle-managed XREADGROUP loop over the global stream.
// On start it drains its pending entries list before reading new messages.
type Consumer struct {
	client redis.UniversalClient
	stream string
	group  string
	name   string

	block   time.Duration
	batch   int64
	handler HandlerFunc
	logger  *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a consumer for one group on the given stream.
func NewConsumer(client redis.UniversalClient, stream, group, consumerName string,
	blockTimeout time.Duration, batchSize int, handler HandlerFunc) *Consumer {
	return &Consumer{
		client:  client,
		stream:  stream,
		group:   group,
		name:    consumerName,
		block:   blockTimeout,
		batch:   int64(batchSize),
		handler: handler,
		logger:  logging.GetLogger("worker." + group),
	}
}

// Name implements lifecycle.Component.
func (c *Consumer) Name() string {
	return "consumer-" + c.group
}

// Start creates the consumer group if needed and begins the read loop.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}

	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx)

	c.logger.Info("Consumer %s started on %s", c.group, c.stream)
	return nil
}

// Stop terminates the read loop and waits for the in-flight batch.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.cancel = nil
	c.logger.Info("Consumer %s stopped", c.group)
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	// First pass over the pending entries list recovers messages left
	// unacknowledged by a previous run. Advancing past each batch keeps a
	// poison message from wedging the loop.
	pelID := "0"
	draining := true

	for {
		if ctx.Err() != nil {
			return
		}

		readID := ">"
		if draining {
			readID = pelID
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, readID},
			Count:    c.batch,
			Block:    c.block,
		}).Result()
		if err == redis.Nil {
			if draining {
				draining = false
				c.logger.Debug("Pending entries drained for %s", c.group)
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Reading %s as %s: %v", c.stream, c.group, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var handled int
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				handled++
				if draining {
					pelID = msg.ID
				}
				c.process(ctx, msg)
			}
		}

		if draining && handled == 0 {
			draining = false
			c.logger.Debug("Pending entries drained for %s", c.group)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	if err := c.handler(ctx, msg); err != nil {
		metrics.ConsumerFailures.WithLabelValues(c.group).Inc()
		c.logger.Error("Handling message %s in %s: %v", msg.ID, c.group, err)
		return
	}

	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		c.logger.Warn("Acknowledging %s in %s: %v", msg.ID, c.group, err)
		return
	}
	metrics.ConsumerProcessed.WithLabelValues(c.group).Inc()
}

// messageString reads a string field from a stream message.
func messageString(msg redis.XMessage, field string) string {
	value, ok := msg.Values[field].(string)
	if !ok {
		return ""
	}
	return value
}
