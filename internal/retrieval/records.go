package retrieval

import (
	"time"

	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/models"
	"github.com/moolen/atlas/internal/scoring"
)

// eventRecord is a parsed event row. Every retrieval query returns the
// same leading columns, so one parser covers them all.
type eventRecord struct {
	EventID         string
	EventType       string
	OccurredAt      time.Time
	SessionID       string
	AgentID         string
	TraceID         string
	ToolName        string
	GlobalPosition  string
	Keywords        []string
	Summary         string
	ImportanceHint  *int
	ImportanceScore int
	AccessCount     int
	LastAccessedAt  *time.Time

	// Traversal extras, present on neighborhood and lineage rows.
	Depth     int
	EdgeTypes []string

	// Expansion extras, set when the record entered the result as a
	// neighbor of a seed rather than as a seed itself.
	Proactive    bool
	IncomingEdge string
	BoostWeight  float64
}

// eventColumnCount is the number of leading event columns.
const eventColumnCount = 14

func parseEventRow(row []interface{}) *eventRecord {
	if len(row) < eventColumnCount {
		return nil
	}

	rec := &eventRecord{
		EventID:         graph.RowString(row[0]),
		EventType:       graph.RowString(row[1]),
		OccurredAt:      time.UnixMilli(graph.RowInt64(row[2])).UTC(),
		SessionID:       graph.RowString(row[3]),
		AgentID:         graph.RowString(row[4]),
		TraceID:         graph.RowString(row[5]),
		ToolName:        graph.RowString(row[6]),
		GlobalPosition:  graph.RowString(row[7]),
		Keywords:        graph.RowStrings(row[8]),
		Summary:         graph.RowString(row[9]),
		ImportanceScore: graph.RowInt(row[11]),
		AccessCount:     graph.RowInt(row[12]),
	}
	if rec.EventID == "" {
		return nil
	}

	// A negative hint marks "not provided" in the graph.
	if hint := graph.RowInt(row[10]); hint >= 0 && row[10] != nil {
		rec.ImportanceHint = &hint
	}
	if accessedMs := graph.RowInt64(row[13]); accessedMs > 0 {
		t := time.UnixMilli(accessedMs).UTC()
		rec.LastAccessedAt = &t
	}
	return rec
}

func parseEventRows(result *graph.QueryResult) []*eventRecord {
	records := make([]*eventRecord, 0, len(result.Rows))
	seen := make(map[string]struct{}, len(result.Rows))
	for _, row := range result.Rows {
		rec := parseEventRow(row)
		if rec == nil {
			continue
		}
		if _, dup := seen[rec.EventID]; dup {
			continue
		}
		seen[rec.EventID] = struct{}{}

		if len(row) > eventColumnCount {
			rec.Depth = graph.RowInt(row[eventColumnCount])
		}
		if len(row) > eventColumnCount+1 {
			rec.EdgeTypes = graph.RowStrings(row[eventColumnCount+1])
		}
		records = append(records, rec)
	}
	return records
}

// toAtlasNode converts a scored record into a response node with its
// provenance pointer.
func toAtlasNode(rec *eventRecord, scores models.NodeScores, reason string) models.AtlasNode {
	attrs := map[string]any{
		"event_type":  rec.EventType,
		"occurred_at": rec.OccurredAt,
	}
	if rec.ToolName != "" {
		attrs["tool_name"] = rec.ToolName
	}
	if rec.Summary != "" {
		attrs["summary"] = rec.Summary
	}
	if len(rec.Keywords) > 0 {
		attrs["keywords"] = rec.Keywords
	}
	if rec.AccessCount > 0 {
		attrs["access_count"] = rec.AccessCount
	}

	return models.AtlasNode{
		NodeID:     rec.EventID,
		NodeType:   string(models.NodeTypeEvent),
		Attributes: attrs,
		Provenance: &models.Provenance{
			EventID:        rec.EventID,
			GlobalPosition: rec.GlobalPosition,
			Source:         "ledger",
			OccurredAt:     rec.OccurredAt,
			SessionID:      rec.SessionID,
			AgentID:        rec.AgentID,
			TraceID:        rec.TraceID,
		},
		Scores:          scores,
		RetrievalReason: reason,
	}
}

// proactiveSignal names why a neighbor was pulled into the result,
// derived from the edge type that reached it.
func proactiveSignal(edgeType string) string {
	switch models.EdgeType(edgeType) {
	case models.EdgeTypeReferences:
		return "entity_context"
	case models.EdgeTypeSimilarTo:
		return "recurring_pattern"
	case models.EdgeTypeCausedBy:
		return "causal_chain"
	case models.EdgeTypeFollows:
		return "temporal_sequence"
	case models.EdgeTypeSummarizes:
		return "summary_context"
	}
	return "related_context"
}

func weightsMap(w scoring.Weights) map[string]float64 {
	return map[string]float64{
		"decay":         w.Decay,
		"relevance":     w.Relevance,
		"importance":    w.Importance,
		"user_affinity": w.UserAffinity,
	}
}
