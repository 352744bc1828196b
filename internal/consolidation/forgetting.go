package consolidation

import (
	"context"
	"fmt"
	"time"

	"github.com/moolen/atlas/internal/graph"
)

// Pruning tiers selectable through the admin API.
const (
	TierWarm = "warm"
	TierCold = "cold"
)

// PruneResult reports what a pruning pass would do (dry run) or did.
type PruneResult struct {
	Tier          string `json:"tier"`
	DryRun        bool   `json:"dry_run"`
	AffectedCount int    `json:"affected_count"`
	CutoffMs      int64  `json:"cutoff_ms"`
}

// Prune applies (or simulates) one forgetting tier on demand.
func (e *Engine) Prune(ctx context.Context, tier string, dryRun bool) (*PruneResult, error) {
	now := e.now()

	switch tier {
	case TierWarm:
		hotCutoff := now.Add(-time.Duration(e.retention.HotHours) * time.Hour).UnixMilli()
		if dryRun {
			// Edge deletion has no cheap count query; report the events
			// holding prunable edges instead.
			result, err := e.client.ExecuteQuery(ctx, graph.GraphQuery{
				Query: `
					MATCH (a:Event)-[r:SIMILAR_TO]-(b:Event)
					WHERE r.similarity_score < $minScore AND a.occurred_at < $hotCutoff
					RETURN count(r) as count
				`,
				Parameters: map[string]interface{}{
					"minScore":  e.retention.WarmMinSimilarityScore,
					"hotCutoff": hotCutoff,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("counting prunable edges: %w", err)
			}
			return &PruneResult{Tier: tier, DryRun: true, AffectedCount: firstCount(result), CutoffMs: hotCutoff}, nil
		}
		result, err := e.client.ExecuteQuery(ctx,
			graph.DeleteWeakSimilarEdgesQuery(e.retention.WarmMinSimilarityScore, hotCutoff))
		if err != nil {
			return nil, fmt.Errorf("pruning warm tier: %w", err)
		}
		return &PruneResult{Tier: tier, AffectedCount: result.Stats.RelationshipsDeleted, CutoffMs: hotCutoff}, nil

	case TierCold:
		warmCutoff := now.Add(-time.Duration(e.retention.WarmHours) * time.Hour).UnixMilli()
		if dryRun {
			result, err := e.client.ExecuteQuery(ctx,
				graph.CountEventsOlderThanQuery(warmCutoff, e.retention.ColdMinImportance, e.retention.ColdMinAccessCount))
			if err != nil {
				return nil, fmt.Errorf("counting prunable events: %w", err)
			}
			return &PruneResult{Tier: tier, DryRun: true, AffectedCount: firstCount(result), CutoffMs: warmCutoff}, nil
		}
		result, err := e.client.ExecuteQuery(ctx,
			graph.DeleteColdEventsQuery(warmCutoff, e.retention.ColdMinImportance, e.retention.ColdMinAccessCount))
		if err != nil {
			return nil, fmt.Errorf("pruning cold tier: %w", err)
		}
		return &PruneResult{Tier: tier, AffectedCount: result.Stats.NodesDeleted, CutoffMs: warmCutoff}, nil

	default:
		return nil, fmt.Errorf("unknown pruning tier %q", tier)
	}
}

func firstCount(result *graph.QueryResult) int {
	if len(result.Rows) > 0 && len(result.Rows[0]) > 0 {
		return graph.RowInt(result.Rows[0][0])
	}
	return 0
}
