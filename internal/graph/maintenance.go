package graph

import "fmt"

// Maintenance queries used by the consolidation worker: summary writes,
// centrality-based importance updates and tiered forgetting.

// SessionEventCountsQuery returns per-session event counts, largest
// sessions first.
func SessionEventCountsQuery() GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event)
			RETURN e.session_id as session_id, count(e) as event_count
			ORDER BY event_count DESC
		`,
	}
}

// SessionEventsForSummaryQuery returns the oldest-first events of a
// session with the fields summarization needs.
func SessionEventsForSummaryQuery(sessionID string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event {session_id: $sessionID})
			RETURN e.event_id as event_id, e.event_type as event_type,
			       e.occurred_at as occurred_at, e.agent_id as agent_id,
			       e.tool_name as tool_name, e.summary as summary
			ORDER BY e.occurred_at ASC
		`,
		Parameters: map[string]interface{}{
			"sessionID": sessionID,
		},
	}
}

// MergeSummaryQuery upserts a summary node. The deterministic summary ID
// makes re-consolidation idempotent.
func MergeSummaryQuery(summaryID, scope, scopeID, content string, eventCount int, createdAtMs, fromMs, toMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MERGE (s:Summary {summary_id: $summaryID})
			ON CREATE SET
				s.scope = $scope,
				s.scope_id = $scopeID,
				s.created_at = $createdAt
			SET s.content = $content,
			    s.event_count = $eventCount,
			    s.time_range_start = $fromMs,
			    s.time_range_end = $toMs
		`,
		Parameters: map[string]interface{}{
			"summaryID":  summaryID,
			"scope":      scope,
			"scopeID":    scopeID,
			"content":    content,
			"eventCount": eventCount,
			"createdAt":  createdAtMs,
			"fromMs":     fromMs,
			"toMs":       toMs,
		},
	}
}

// MergeSummarizesEdgesQuery links a summary to the events it covers.
func MergeSummarizesEdgesQuery(summaryID string, eventIDs []string, createdAtMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (s:Summary {summary_id: $summaryID})
			UNWIND $eventIDs as eid
			MATCH (e:Event {event_id: eid})
			MERGE (s)-[r:SUMMARIZES]->(e)
			ON CREATE SET r.created_at = $createdAt
		`,
		Parameters: map[string]interface{}{
			"summaryID": summaryID,
			"eventIDs":  eventIDs,
			"createdAt": createdAtMs,
		},
	}
}

// UpdateImportanceFromCentralityQuery raises the stored importance of
// highly connected events. Connectivity is a durable signal that an
// event anchors other context.
func UpdateImportanceFromCentralityQuery() GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event)
			OPTIONAL MATCH (other)-[r]->(e)
			WITH e, count(r) as in_degree
			SET e.importance_score = CASE
				WHEN in_degree >= 10 THEN 10
				WHEN in_degree >= 5 THEN 8
				WHEN in_degree >= 3 THEN 6
				ELSE coalesce(e.importance_score, 5)
			END
		`,
	}
}

// DeleteWeakSimilarEdgesQuery removes low-score SIMILAR_TO edges between
// events that have left the hot window.
func DeleteWeakSimilarEdgesQuery(minScore float64, hotCutoffMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (a:Event)-[r:SIMILAR_TO]-(b:Event)
			WHERE r.similarity_score < $minScore AND a.occurred_at < $hotCutoff
			DELETE r
		`,
		Parameters: map[string]interface{}{
			"minScore":  minScore,
			"hotCutoff": hotCutoffMs,
		},
	}
}

// DeleteColdEventsQuery drops unimportant, rarely accessed events that
// aged past the warm window.
func DeleteColdEventsQuery(warmCutoffMs int64, minImportance, minAccessCount int) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event)
			WHERE e.occurred_at < $warmCutoff
			  AND coalesce(e.importance_score, 0) < $minImportance
			  AND coalesce(e.access_count, 0) < $minAccessCount
			DETACH DELETE e
		`,
		Parameters: map[string]interface{}{
			"warmCutoff":     warmCutoffMs,
			"minImportance":  minImportance,
			"minAccessCount": minAccessCount,
		},
	}
}

// ArchiveCandidatesQuery lists events older than the cold window. They
// are summarized before deletion, so their gist survives archival.
func ArchiveCandidatesQuery(coldCutoffMs int64, limit int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (e:Event)
			WHERE e.occurred_at < $coldCutoff
			RETURN e.event_id as event_id, e.session_id as session_id,
			       e.occurred_at as occurred_at
			ORDER BY e.occurred_at ASC
			LIMIT %d
		`, limit),
		Parameters: map[string]interface{}{
			"coldCutoff": coldCutoffMs,
		},
	}
}

// DeleteEventsByIDQuery removes a batch of events after archival.
func DeleteEventsByIDQuery(eventIDs []string) GraphQuery {
	return GraphQuery{
		Query: `
			UNWIND $eventIDs as eid
			MATCH (e:Event {event_id: eid})
			DETACH DELETE e
		`,
		Parameters: map[string]interface{}{
			"eventIDs": eventIDs,
		},
	}
}

// CountEventsOlderThanQuery counts events past a cutoff, used by the
// dry-run pruning planner.
func CountEventsOlderThanQuery(cutoffMs int64, minImportance, minAccessCount int) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event)
			WHERE e.occurred_at < $cutoff
			  AND coalesce(e.importance_score, 0) < $minImportance
			  AND coalesce(e.access_count, 0) < $minAccessCount
			RETURN count(e) as count
		`,
		Parameters: map[string]interface{}{
			"cutoff":         cutoffMs,
			"minImportance":  minImportance,
			"minAccessCount": minAccessCount,
		},
	}
}

// OrphanEntityCleanupQuery removes entities no event references anymore.
func OrphanEntityCleanupQuery() GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (n:Entity)
			WHERE NOT ()-[:REFERENCES]->(n)
			DETACH DELETE n
		`,
	}
}
