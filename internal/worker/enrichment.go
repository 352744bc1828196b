package worker

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/models"
)

const defaultImportance = 5

// NewEnrichmentConsumer builds the consumer that attaches derived
// keywords and importance to projected event nodes.
func NewEnrichmentConsumer(cfg *config.Config, client redis.UniversalClient, graphClient graph.Client) *Consumer {
	handler := func(ctx context.Context, msg redis.XMessage) error {
		event, err := decodeStreamEvent(msg)
		if err != nil {
			return err
		}
		if event == nil {
			return nil
		}

		keywords := deriveKeywords(event.EventType, event.ToolName)
		importance := defaultImportance
		if event.ImportanceHint != nil {
			importance = *event.ImportanceHint
		}

		query := graph.UpdateEnrichmentQuery(event.EventID.String(), keywords,
			deriveSummary(event), importance)
		_, err = graphClient.ExecuteQuery(ctx, query)
		return err
	}

	return NewConsumer(client, cfg.Redis.GlobalStream, cfg.Worker.GroupEnrichment,
		consumerName(cfg.Worker.GroupEnrichment),
		time.Duration(cfg.Worker.BlockTimeoutMs)*time.Millisecond,
		cfg.Worker.BatchSize, handler)
}

// deriveKeywords splits the event type on dots and appends the tool name
// when it is not already among the parts.
func deriveKeywords(eventType, toolName string) []string {
	var keywords []string
	for _, part := range strings.Split(eventType, ".") {
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	if toolName != "" {
		found := false
		for _, kw := range keywords {
			if kw == toolName {
				found = true
				break
			}
		}
		if !found {
			keywords = append(keywords, toolName)
		}
	}
	return keywords
}

func deriveSummary(event *models.Event) string {
	var b strings.Builder
	b.WriteString(event.EventType)
	if event.ToolName != "" {
		b.WriteString(" via ")
		b.WriteString(event.ToolName)
	}
	if event.Status != "" {
		b.WriteString(" (")
		b.WriteString(string(event.Status))
		b.WriteString(")")
	}
	return b.String()
}
