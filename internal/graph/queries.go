package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/moolen/atlas/internal/models"
)

// Timestamps are stored as epoch milliseconds on node and edge
// properties; the graph has no native time type.

// MergeEventNodeQuery inserts an event node. Events are immutable, so
// properties are only set on create; enrichment updates them separately.
func MergeEventNodeQuery(event *models.Event) GraphQuery {
	return GraphQuery{
		Query: `
			MERGE (e:Event {event_id: $eventID})
			ON CREATE SET
				e.event_type = $eventType,
				e.occurred_at = $occurredAt,
				e.session_id = $sessionID,
				e.agent_id = $agentID,
				e.trace_id = $traceID,
				e.tool_name = $toolName,
				e.payload_ref = $payloadRef,
				e.global_position = $globalPosition,
				e.importance_hint = $importanceHint,
				e.access_count = 0
		`,
		Parameters: map[string]interface{}{
			"eventID":        event.EventID.String(),
			"eventType":      event.EventType,
			"occurredAt":     event.OccurredAtEpochMs(),
			"sessionID":      event.SessionID,
			"agentID":        event.AgentID,
			"traceID":        event.TraceID,
			"toolName":       event.ToolName,
			"payloadRef":     event.PayloadRef,
			"globalPosition": event.GlobalPosition,
			"importanceHint": importanceHintValue(event.ImportanceHint),
		},
	}
}

func importanceHintValue(hint *int) interface{} {
	if hint == nil {
		return -1
	}
	return *hint
}

// FollowsEdge links an event to its session predecessor. The edge runs
// from the later event to the earlier one.
type FollowsEdge struct {
	EventID     string
	PrevEventID string
	SessionID   string
	DeltaMs     int64
}

// CausedByEdge records a causal link from effect to cause.
type CausedByEdge struct {
	EffectEventID string
	CauseEventID  string
	Mechanism     string
	Confidence    float64
}

// EdgeBatch groups edges by type so each type is written in a single
// round trip.
type EdgeBatch struct {
	Follows  []FollowsEdge
	CausedBy []CausedByEdge
}

func (b *EdgeBatch) Empty() bool {
	return len(b.Follows) == 0 && len(b.CausedBy) == 0
}

// MergeFollowsEdgesQuery upserts a batch of FOLLOWS edges, each pointing
// from the later event back to its predecessor.
func MergeFollowsEdgesQuery(edges []FollowsEdge) GraphQuery {
	rows := make([]map[string]interface{}, len(edges))
	for i, e := range edges {
		rows[i] = map[string]interface{}{
			"eventID":     e.EventID,
			"prevEventID": e.PrevEventID,
			"sessionID":   e.SessionID,
			"deltaMs":     e.DeltaMs,
		}
	}
	return GraphQuery{
		Query: `
			UNWIND $edges as edge
			MATCH (curr:Event {event_id: edge.eventID})
			MATCH (prev:Event {event_id: edge.prevEventID})
			MERGE (curr)-[r:FOLLOWS]->(prev)
			ON CREATE SET
				r.session_id = edge.sessionID,
				r.delta_ms = edge.deltaMs
		`,
		Parameters: map[string]interface{}{
			"edges": rows,
		},
	}
}

// MergeCausedByEdgesQuery upserts a batch of CAUSED_BY edges from effect
// to cause.
func MergeCausedByEdgesQuery(edges []CausedByEdge) GraphQuery {
	rows := make([]map[string]interface{}, len(edges))
	for i, e := range edges {
		rows[i] = map[string]interface{}{
			"effectEventID": e.EffectEventID,
			"causeEventID":  e.CauseEventID,
			"mechanism":     e.Mechanism,
			"confidence":    e.Confidence,
		}
	}
	return GraphQuery{
		Query: `
			UNWIND $edges as edge
			MATCH (effect:Event {event_id: edge.effectEventID})
			MATCH (cause:Event {event_id: edge.causeEventID})
			MERGE (effect)-[r:CAUSED_BY]->(cause)
			ON CREATE SET
				r.mechanism = edge.mechanism,
				r.confidence = edge.confidence
		`,
		Parameters: map[string]interface{}{
			"edges": rows,
		},
	}
}

// CreateEdgesBatch writes an edge batch, one grouped UPSERT per edge
// type.
func CreateEdgesBatch(ctx context.Context, client Client, batch *EdgeBatch) error {
	if len(batch.Follows) > 0 {
		if _, err := client.ExecuteQuery(ctx, MergeFollowsEdgesQuery(batch.Follows)); err != nil {
			return fmt.Errorf("writing FOLLOWS edges: %w", err)
		}
	}
	if len(batch.CausedBy) > 0 {
		if _, err := client.ExecuteQuery(ctx, MergeCausedByEdgesQuery(batch.CausedBy)); err != nil {
			return fmt.Errorf("writing CAUSED_BY edges: %w", err)
		}
	}
	return nil
}

// MergeEntityQuery upserts an entity by normalized name. A re-mention
// bumps the mention count and last-seen timestamp.
func MergeEntityQuery(entityID, name string, entityType models.EntityType, seenAtMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MERGE (n:Entity {name: $name})
			ON CREATE SET
				n.entity_id = $entityID,
				n.entity_type = $entityType,
				n.first_seen = $seenAt,
				n.last_seen = $seenAt,
				n.mention_count = 1
			ON MATCH SET
				n.last_seen = CASE WHEN $seenAt > n.last_seen THEN $seenAt ELSE n.last_seen END,
				n.mention_count = n.mention_count + 1
			RETURN n.entity_id as entity_id
		`,
		Parameters: map[string]interface{}{
			"entityID":   entityID,
			"name":       name,
			"entityType": string(entityType),
			"seenAt":     seenAtMs,
		},
	}
}

// MergeReferencesEdgeQuery links an event to an entity it mentions.
func MergeReferencesEdgeQuery(eventID, entityName string, confidence float64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event {event_id: $eventID})
			MATCH (n:Entity {name: $entityName})
			MERGE (e)-[r:REFERENCES]->(n)
			ON CREATE SET r.confidence = $confidence
		`,
		Parameters: map[string]interface{}{
			"eventID":    eventID,
			"entityName": entityName,
			"confidence": confidence,
		},
	}
}

// MergeSameAsEdgeQuery links two entities resolved as aliases.
func MergeSameAsEdgeQuery(entityName, canonicalName string, similarity float64, method string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (a:Entity {name: $entityName})
			MATCH (b:Entity {name: $canonicalName})
			MERGE (a)-[r:SAME_AS]->(b)
			ON CREATE SET
				r.similarity = $similarity,
				r.method = $method
		`,
		Parameters: map[string]interface{}{
			"entityName":    entityName,
			"canonicalName": canonicalName,
			"similarity":    similarity,
			"method":        method,
		},
	}
}

// MergeRelatedToEdgeQuery links two entities that are near matches of
// different types.
func MergeRelatedToEdgeQuery(entityName, otherName string, similarity float64, method string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (a:Entity {name: $entityName})
			MATCH (b:Entity {name: $otherName})
			MERGE (a)-[r:RELATED_TO]->(b)
			ON CREATE SET
				r.similarity = $similarity,
				r.method = $method
		`,
		Parameters: map[string]interface{}{
			"entityName": entityName,
			"otherName":  otherName,
			"similarity": similarity,
			"method":     method,
		},
	}
}

// MergeSimilarToEdgeQuery links two events scored as similar.
func MergeSimilarToEdgeQuery(eventID, otherEventID string, score float64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (a:Event {event_id: $eventID})
			MATCH (b:Event {event_id: $otherEventID})
			MERGE (a)-[r:SIMILAR_TO]->(b)
			SET r.similarity_score = $score
		`,
		Parameters: map[string]interface{}{
			"eventID":      eventID,
			"otherEventID": otherEventID,
			"score":        score,
		},
	}
}

// UpdateEnrichmentQuery attaches derived attributes to an event node.
func UpdateEnrichmentQuery(eventID string, keywords []string, summary string, importance int) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event {event_id: $eventID})
			SET e.keywords = $keywords,
			    e.summary = $summary,
			    e.importance_score = $importance
		`,
		Parameters: map[string]interface{}{
			"eventID":    eventID,
			"keywords":   keywords,
			"summary":    summary,
			"importance": importance,
		},
	}
}

// BumpAccessQuery increments access counters for retrieved events. Each
// retrieval reinforces the events it returned.
func BumpAccessQuery(eventIDs []string, accessedAtMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			UNWIND $eventIDs as eid
			MATCH (e:Event {event_id: eid})
			SET e.access_count = coalesce(e.access_count, 0) + 1,
			    e.last_accessed_at = $accessedAt
		`,
		Parameters: map[string]interface{}{
			"eventIDs":   eventIDs,
			"accessedAt": accessedAtMs,
		},
	}
}

// eventReturnClause lists the event properties read back during
// retrieval, in a fixed column order the parsers depend on.
const eventReturnClause = `
	e.event_id as event_id,
	e.event_type as event_type,
	e.occurred_at as occurred_at,
	e.session_id as session_id,
	e.agent_id as agent_id,
	e.trace_id as trace_id,
	e.tool_name as tool_name,
	e.global_position as global_position,
	e.keywords as keywords,
	e.summary as summary,
	e.importance_hint as importance_hint,
	e.importance_score as importance_score,
	e.access_count as access_count,
	e.last_accessed_at as last_accessed_at
`

// SessionEventsQuery returns the newest events of a session.
func SessionEventsQuery(sessionID string, limit int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (e:Event {session_id: $sessionID})
			RETURN %s
			ORDER BY e.occurred_at DESC
			LIMIT %d
		`, eventReturnClause, limit),
		Parameters: map[string]interface{}{
			"sessionID": sessionID,
		},
	}
}

// EventByIDQuery returns a single event node.
func EventByIDQuery(eventID string) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (e:Event {event_id: $eventID})
			RETURN %s
		`, eventReturnClause),
		Parameters: map[string]interface{}{
			"eventID": eventID,
		},
	}
}

// LineageQuery walks the causal chain backward from an event.
func LineageQuery(eventID string, maxDepth int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (start:Event {event_id: $eventID})
			MATCH path = (start)-[:CAUSED_BY*1..%d]->(cause:Event)
			UNWIND relationships(path) as rel
			WITH cause as e, length(path) as depth, collect(rel.mechanism) as mechanisms
			RETURN %s, depth, mechanisms
			ORDER BY depth ASC
		`, maxDepth, eventReturnClause),
		Parameters: map[string]interface{}{
			"eventID": eventID,
		},
	}
}

// NeighborhoodQuery expands from seed events across the given edge
// types, returning neighbors with hop distance and the connecting edge.
func NeighborhoodQuery(seedEventIDs []string, edgeTypes []models.EdgeType, maxDepth, maxNodes int) GraphQuery {
	relPattern := edgeTypePattern(edgeTypes)
	return GraphQuery{
		Query: fmt.Sprintf(`
			UNWIND $seedIDs as sid
			MATCH (seed:Event {event_id: sid})
			MATCH path = (seed)-[%s*1..%d]-(e:Event)
			WITH e, min(length(path)) as depth,
			     [rel in relationships(path) | type(rel)] as edge_types,
			     sid as seed_id
			RETURN %s, depth, edge_types, seed_id
			ORDER BY depth ASC
			LIMIT %d
		`, relPattern, maxDepth, eventReturnClause, maxNodes),
		Parameters: map[string]interface{}{
			"seedIDs": seedEventIDs,
		},
	}
}

// edgeTypePattern renders a relationship type filter like
// ":FOLLOWS|CAUSED_BY". An empty list matches every type.
func edgeTypePattern(edgeTypes []models.EdgeType) string {
	if len(edgeTypes) == 0 {
		return ""
	}
	names := make([]string, len(edgeTypes))
	for i, t := range edgeTypes {
		names[i] = string(t)
	}
	return ":" + strings.Join(names, "|")
}

// EntitySeedQuery finds events referencing entities whose names match
// the query terms, ranked by how connected the entity is.
func EntitySeedQuery(terms []string, limit int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			UNWIND $terms as term
			MATCH (n:Entity)
			WHERE toLower(n.name) CONTAINS toLower(term)
			MATCH (e:Event)-[:REFERENCES]->(n)
			WITH e, n.mention_count as mentions
			RETURN %s, mentions
			ORDER BY mentions DESC, e.occurred_at DESC
			LIMIT %d
		`, eventReturnClause, limit),
		Parameters: map[string]interface{}{
			"terms": terms,
		},
	}
}

// TemporalSeedQuery finds events in a time window, newest first.
func TemporalSeedQuery(fromMs, toMs int64, limit int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (e:Event)
			WHERE e.occurred_at >= $fromMs AND e.occurred_at <= $toMs
			RETURN %s
			ORDER BY e.occurred_at DESC
			LIMIT %d
		`, eventReturnClause, limit),
		Parameters: map[string]interface{}{
			"fromMs": fromMs,
			"toMs":   toMs,
		},
	}
}

// CausalSeedQuery finds events that terminate causal chains: they have
// incoming CAUSED_BY edges but no outgoing ones.
func CausalSeedQuery(sessionID string, limit int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (effect:Event)-[:CAUSED_BY]->(e:Event)
			WHERE ($sessionID = '' OR e.session_id = $sessionID)
			  AND NOT (e)-[:CAUSED_BY]->()
			WITH DISTINCT e
			RETURN %s
			ORDER BY e.occurred_at DESC
			LIMIT %d
		`, eventReturnClause, limit),
		Parameters: map[string]interface{}{
			"sessionID": sessionID,
		},
	}
}

// SimilarClusterSeedQuery finds events with the strongest similarity
// links, the entry points for "related to X" questions.
func SimilarClusterSeedQuery(sessionID string, limit int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (e:Event)-[r:SIMILAR_TO]-()
			WHERE ($sessionID = '' OR e.session_id = $sessionID)
			WITH e, max(r.similarity_score) as best_score
			RETURN %s, best_score
			ORDER BY best_score DESC, e.occurred_at DESC
			LIMIT %d
		`, eventReturnClause, limit),
		Parameters: map[string]interface{}{
			"sessionID": sessionID,
		},
	}
}

// EventInDegreeQuery returns incoming edge counts for the given events,
// an input to importance scoring.
func EventInDegreeQuery(eventIDs []string) GraphQuery {
	return GraphQuery{
		Query: `
			UNWIND $eventIDs as eid
			MATCH (e:Event {event_id: eid})
			OPTIONAL MATCH (other)-[r]->(e)
			RETURN e.event_id as event_id, count(r) as in_degree
		`,
		Parameters: map[string]interface{}{
			"eventIDs": eventIDs,
		},
	}
}

// EntityWithEventsQuery returns an entity and the recent events
// referencing it.
func EntityWithEventsQuery(name string, limit int) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (n:Entity {name: $name})
			OPTIONAL MATCH (e:Event)-[:REFERENCES]->(n)
			WITH n, e
			ORDER BY e.occurred_at DESC
			LIMIT %d
			RETURN n.entity_id as entity_id, n.name as name,
			       n.entity_type as entity_type, n.first_seen as first_seen,
			       n.last_seen as last_seen, n.mention_count as mention_count,
			       collect(e.event_id) as event_ids
		`, limit),
		Parameters: map[string]interface{}{
			"name": name,
		},
	}
}

// EdgesAmongQuery returns the typed edges between events of the given
// set, used to assemble the edge list of a retrieval response.
func EdgesAmongQuery(eventIDs []string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (a:Event)-[r]->(b:Event)
			WHERE a.event_id IN $eventIDs AND b.event_id IN $eventIDs
			RETURN a.event_id as source, b.event_id as target, type(r) as edge_type
		`,
		Parameters: map[string]interface{}{
			"eventIDs": eventIDs,
		},
	}
}

// LastSessionEventQuery returns the most recent event of a session, used
// to rebuild the projection tail after a restart.
func LastSessionEventQuery(sessionID string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (e:Event {session_id: $sessionID})
			RETURN e.event_id as event_id, e.occurred_at as occurred_at
			ORDER BY e.occurred_at DESC
			LIMIT 1
		`,
		Parameters: map[string]interface{}{
			"sessionID": sessionID,
		},
	}
}
