package consolidation

import (
	"context"
	"fmt"
	"time"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/logging"
)

// archiveBatchSize bounds how many events one cycle archives.
const archiveBatchSize = 500

// LedgerMaintenance is the slice of the ledger the cycle needs for
// retention trimming.
type LedgerMaintenance interface {
	TrimStream(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error)
	DeleteExpiredDocs(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error)
	CleanupDedupSet(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error)
}

// CycleReport summarizes what one consolidation cycle did.
type CycleReport struct {
	SessionsConsolidated int   `json:"sessions_consolidated"`
	SummariesWritten     int   `json:"summaries_written"`
	ImportanceUpdated    int   `json:"importance_updated"`
	SimilarEdgesDeleted  int   `json:"similar_edges_deleted"`
	ColdEventsDeleted    int   `json:"cold_events_deleted"`
	EventsArchived       int   `json:"events_archived"`
	StreamEntriesTrimmed int64 `json:"stream_entries_trimmed"`
	DocsDeleted          int64 `json:"docs_deleted"`
	DedupEntriesRemoved  int64 `json:"dedup_entries_removed"`
}

// Engine runs consolidation cycles against the graph and the ledger.
type Engine struct {
	client    graph.Client
	ledger    LedgerMaintenance
	decay     config.DecayConfig
	retention config.RetentionConfig
	redis     config.RedisConfig
	logger    *logging.Logger
	now       func() time.Time
}

// NewEngine creates a consolidation engine.
func NewEngine(client graph.Client, ledger LedgerMaintenance, cfg *config.Config) *Engine {
	return &Engine{
		client:    client,
		ledger:    ledger,
		decay:     cfg.Decay,
		retention: cfg.Retention,
		redis:     cfg.Redis,
		logger:    logging.GetLogger("consolidation"),
		now:       time.Now,
	}
}

// RunCycle consolidates eligible sessions, refreshes importance, applies
// the forgetting tiers and trims the ledger.
func (e *Engine) RunCycle(ctx context.Context, sessionID string) (*CycleReport, error) {
	report := &CycleReport{}
	started := e.now()

	sessions, err := e.eligibleSessions(ctx, sessionID)
	if err != nil {
		return report, err
	}
	byAgent := map[string][]EventRef{}
	for _, sid := range sessions {
		written, events, err := e.consolidateSession(ctx, sid)
		if err != nil {
			return report, err
		}
		report.SessionsConsolidated++
		report.SummariesWritten += written
		for _, event := range events {
			if event.AgentID != "" {
				byAgent[event.AgentID] = append(byAgent[event.AgentID], event)
			}
		}
	}

	// Agent-scoped summaries span every consolidated session the agent
	// took part in.
	for agentID, refs := range byAgent {
		start, end := timeBounds(refs)
		if err := e.writeSummary(ctx, "agent", agentID, refs, start, end); err != nil {
			return report, err
		}
		report.SummariesWritten++
	}

	result, err := e.client.ExecuteQuery(ctx, graph.UpdateImportanceFromCentralityQuery())
	if err != nil {
		return report, fmt.Errorf("updating importance from centrality: %w", err)
	}
	report.ImportanceUpdated = result.Stats.PropertiesSet

	if err := e.applyForgetting(ctx, report); err != nil {
		return report, err
	}
	if err := e.trimLedger(ctx, report); err != nil {
		return report, err
	}

	e.logger.Info("Consolidation cycle done in %s: %d sessions, %d summaries, %d cold deleted, %d archived",
		e.now().Sub(started), report.SessionsConsolidated, report.SummariesWritten,
		report.ColdEventsDeleted, report.EventsArchived)
	return report, nil
}

// eligibleSessions lists sessions whose event count crossed the
// reflection threshold. A non-empty sessionID forces that session
// regardless of size.
func (e *Engine) eligibleSessions(ctx context.Context, sessionID string) ([]string, error) {
	if sessionID != "" {
		return []string{sessionID}, nil
	}

	result, err := e.client.ExecuteQuery(ctx, graph.SessionEventCountsQuery())
	if err != nil {
		return nil, fmt.Errorf("counting session events: %w", err)
	}

	var sessions []string
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		sid := graph.RowString(row[0])
		count := graph.RowInt(row[1])
		if sid != "" && count >= e.decay.ReflectionThreshold {
			sessions = append(sessions, sid)
		}
	}
	return sessions, nil
}

func (e *Engine) consolidateSession(ctx context.Context, sessionID string) (int, []EventRef, error) {
	result, err := e.client.ExecuteQuery(ctx, graph.SessionEventsForSummaryQuery(sessionID))
	if err != nil {
		return 0, nil, fmt.Errorf("reading session %s for consolidation: %w", sessionID, err)
	}

	events := make([]EventRef, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 6 {
			continue
		}
		events = append(events, EventRef{
			EventID:    graph.RowString(row[0]),
			EventType:  graph.RowString(row[1]),
			OccurredAt: time.UnixMilli(graph.RowInt64(row[2])).UTC(),
			AgentID:    graph.RowString(row[3]),
			ToolName:   graph.RowString(row[4]),
			Summary:    graph.RowString(row[5]),
		})
	}
	if len(events) == 0 {
		return 0, nil, nil
	}

	written := 0
	episodes := SplitEpisodes(events)
	for _, episode := range episodes {
		if err := e.writeSummary(ctx, "episode", sessionID, episode.Events, episode.Start, episode.End); err != nil {
			return written, events, err
		}
		written++
	}

	if err := e.writeSummary(ctx, "session", sessionID, events, events[0].OccurredAt, events[len(events)-1].OccurredAt); err != nil {
		return written, events, err
	}
	return written + 1, events, nil
}

func timeBounds(refs []EventRef) (time.Time, time.Time) {
	start, end := refs[0].OccurredAt, refs[0].OccurredAt
	for _, ref := range refs[1:] {
		if ref.OccurredAt.Before(start) {
			start = ref.OccurredAt
		}
		if ref.OccurredAt.After(end) {
			end = ref.OccurredAt
		}
	}
	return start, end
}

func (e *Engine) writeSummary(ctx context.Context, scope, scopeID string, events []EventRef, start, end time.Time) error {
	eventIDs := make([]string, len(events))
	for i, event := range events {
		eventIDs[i] = event.EventID
	}
	summaryID := SummaryID(scope, scopeID, eventIDs)
	content := BuildSummaryContent(scope, scopeID, events)
	nowMs := e.now().UnixMilli()

	merge := graph.MergeSummaryQuery(summaryID, scope, scopeID, content, len(events), nowMs, start.UnixMilli(), end.UnixMilli())
	if _, err := e.client.ExecuteQuery(ctx, merge); err != nil {
		return fmt.Errorf("writing %s summary for %s: %w", scope, scopeID, err)
	}
	edges := graph.MergeSummarizesEdgesQuery(summaryID, eventIDs, nowMs)
	if _, err := e.client.ExecuteQuery(ctx, edges); err != nil {
		return fmt.Errorf("linking %s summary for %s: %w", scope, scopeID, err)
	}
	return nil
}

// applyForgetting walks the retention tiers outward: weak similarity
// edges past the hot window, cold events past the warm window, and
// archival past the cold window.
func (e *Engine) applyForgetting(ctx context.Context, report *CycleReport) error {
	now := e.now()
	hotCutoff := now.Add(-time.Duration(e.retention.HotHours) * time.Hour).UnixMilli()
	warmCutoff := now.Add(-time.Duration(e.retention.WarmHours) * time.Hour).UnixMilli()
	coldCutoff := now.Add(-time.Duration(e.retention.ColdHours) * time.Hour).UnixMilli()

	result, err := e.client.ExecuteQuery(ctx,
		graph.DeleteWeakSimilarEdgesQuery(e.retention.WarmMinSimilarityScore, hotCutoff))
	if err != nil {
		return fmt.Errorf("deleting weak similarity edges: %w", err)
	}
	report.SimilarEdgesDeleted = result.Stats.RelationshipsDeleted

	result, err = e.client.ExecuteQuery(ctx,
		graph.DeleteColdEventsQuery(warmCutoff, e.retention.ColdMinImportance, e.retention.ColdMinAccessCount))
	if err != nil {
		return fmt.Errorf("deleting cold events: %w", err)
	}
	report.ColdEventsDeleted = result.Stats.NodesDeleted

	archived, err := e.archive(ctx, coldCutoff)
	if err != nil {
		return err
	}
	report.EventsArchived = archived

	if _, err := e.client.ExecuteQuery(ctx, graph.OrphanEntityCleanupQuery()); err != nil {
		return fmt.Errorf("cleaning orphan entities: %w", err)
	}
	return nil
}

// archive summarizes events past the cold window per session, then
// deletes them. The summaries keep the gist retrievable.
func (e *Engine) archive(ctx context.Context, coldCutoffMs int64) (int, error) {
	result, err := e.client.ExecuteQuery(ctx, graph.ArchiveCandidatesQuery(coldCutoffMs, archiveBatchSize))
	if err != nil {
		return 0, fmt.Errorf("listing archive candidates: %w", err)
	}
	if len(result.Rows) == 0 {
		return 0, nil
	}

	bySession := map[string][]EventRef{}
	var allIDs []string
	for _, row := range result.Rows {
		if len(row) < 3 {
			continue
		}
		ref := EventRef{
			EventID:    graph.RowString(row[0]),
			OccurredAt: time.UnixMilli(graph.RowInt64(row[2])).UTC(),
		}
		sid := graph.RowString(row[1])
		bySession[sid] = append(bySession[sid], ref)
		allIDs = append(allIDs, ref.EventID)
	}

	for sid, refs := range bySession {
		if err := e.writeSummary(ctx, "archive", sid, refs, refs[0].OccurredAt, refs[len(refs)-1].OccurredAt); err != nil {
			return 0, err
		}
	}

	if _, err := e.client.ExecuteQuery(ctx, graph.DeleteEventsByIDQuery(allIDs)); err != nil {
		return 0, fmt.Errorf("deleting archived events: %w", err)
	}
	return len(allIDs), nil
}

func (e *Engine) trimLedger(ctx context.Context, report *CycleReport) error {
	now := e.now()

	trimmed, err := e.ledger.TrimStream(ctx, time.Duration(e.redis.HotWindowDays)*24*time.Hour, now)
	if err != nil {
		return fmt.Errorf("trimming ledger stream: %w", err)
	}
	report.StreamEntriesTrimmed = trimmed

	ceiling := time.Duration(e.redis.RetentionCeilingDays) * 24 * time.Hour
	deleted, err := e.ledger.DeleteExpiredDocs(ctx, ceiling, now)
	if err != nil {
		return fmt.Errorf("expiring ledger documents: %w", err)
	}
	report.DocsDeleted = deleted

	removed, err := e.ledger.CleanupDedupSet(ctx, ceiling, now)
	if err != nil {
		return fmt.Errorf("cleaning dedup set: %w", err)
	}
	report.DedupEntriesRemoved = removed
	return nil
}
