package graph

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/atlas/internal/models"
)

func TestMergeEventNodeQuery(t *testing.T) {
	hint := 8
	event := &models.Event{
		EventID:        uuid.New(),
		EventType:      "tool.invoke",
		OccurredAt:     time.UnixMilli(1700000000000).UTC(),
		SessionID:      "sess-1",
		AgentID:        "agent-1",
		TraceID:        "trace-1",
		ToolName:       "search",
		PayloadRef:     "mem://p/1",
		GlobalPosition: "1700000000000-0",
		ImportanceHint: &hint,
	}

	q := MergeEventNodeQuery(event)
	assert.Contains(t, q.Query, "MERGE (e:Event {event_id: $eventID})")
	assert.Contains(t, q.Query, "ON CREATE SET")
	assert.Equal(t, event.EventID.String(), q.Parameters["eventID"])
	assert.Equal(t, int64(1700000000000), q.Parameters["occurredAt"])
	assert.Equal(t, 8, q.Parameters["importanceHint"])
}

func TestMergeEventNodeQuery_MissingHint(t *testing.T) {
	event := &models.Event{
		EventID:    uuid.New(),
		EventType:  "agent.start",
		OccurredAt: time.Now().UTC(),
		SessionID:  "sess-1",
	}

	q := MergeEventNodeQuery(event)
	assert.Equal(t, -1, q.Parameters["importanceHint"])
}

func TestMergeFollowsEdgesQuery(t *testing.T) {
	q := MergeFollowsEdgesQuery([]FollowsEdge{
		{EventID: "curr-id", PrevEventID: "prev-id", SessionID: "sess-1", DeltaMs: 1500},
	})
	// The later event points back at its predecessor in time.
	assert.Contains(t, q.Query, "MERGE (curr)-[r:FOLLOWS]->(prev)")
	assert.Contains(t, q.Query, "UNWIND $edges")
	edges := q.Parameters["edges"].([]map[string]interface{})
	require.Len(t, edges, 1)
	assert.Equal(t, "sess-1", edges[0]["sessionID"])
	assert.Equal(t, int64(1500), edges[0]["deltaMs"])
}

func TestMergeCausedByEdgesQuery(t *testing.T) {
	q := MergeCausedByEdgesQuery([]CausedByEdge{
		{EffectEventID: "effect-id", CauseEventID: "cause-id", Mechanism: "direct", Confidence: 1.0},
	})
	assert.Contains(t, q.Query, "MERGE (effect)-[r:CAUSED_BY]->(cause)")
	assert.Contains(t, q.Query, "UNWIND $edges")
	edges := q.Parameters["edges"].([]map[string]interface{})
	require.Len(t, edges, 1)
	assert.Equal(t, "direct", edges[0]["mechanism"])
}

func TestMergeSimilarToEdgeQuery(t *testing.T) {
	q := MergeSimilarToEdgeQuery("a-id", "b-id", 0.93)
	assert.Contains(t, q.Query, "MERGE (a)-[r:SIMILAR_TO]->(b)")
	assert.Contains(t, q.Query, "r.similarity_score = $score")
	assert.Equal(t, 0.93, q.Parameters["score"])
}

func TestLineageQuery_BoundsDepth(t *testing.T) {
	q := LineageQuery("some-id", 4)
	assert.Contains(t, q.Query, "[:CAUSED_BY*1..4]")
	assert.Contains(t, q.Query, "ORDER BY depth ASC")
}

func TestNeighborhoodQuery(t *testing.T) {
	q := NeighborhoodQuery([]string{"a", "b"}, []models.EdgeType{models.EdgeTypeFollows, models.EdgeTypeCausedBy}, 3, 100)
	assert.Contains(t, q.Query, ":FOLLOWS|CAUSED_BY*1..3")
	assert.Contains(t, q.Query, "LIMIT 100")
	assert.Equal(t, []string{"a", "b"}, q.Parameters["seedIDs"])
}

func TestEdgeTypePattern(t *testing.T) {
	assert.Equal(t, "", edgeTypePattern(nil))
	assert.Equal(t, ":FOLLOWS", edgeTypePattern([]models.EdgeType{models.EdgeTypeFollows}))
	assert.Equal(t, ":FOLLOWS|SIMILAR_TO",
		edgeTypePattern([]models.EdgeType{models.EdgeTypeFollows, models.EdgeTypeSimilarTo}))
}

func TestBumpAccessQuery(t *testing.T) {
	q := BumpAccessQuery([]string{"e1", "e2"}, 1700000000000)
	assert.Contains(t, q.Query, "coalesce(e.access_count, 0) + 1")
	assert.Equal(t, int64(1700000000000), q.Parameters["accessedAt"])
}

func TestMergeEntityQuery_BumpsMentionsOnMatch(t *testing.T) {
	q := MergeEntityQuery("ent-1", "auth-service", models.EntityTypeService, 1000)
	assert.Contains(t, q.Query, "MERGE (n:Entity {name: $name})")
	assert.Contains(t, q.Query, "n.mention_count = n.mention_count + 1")
	assert.Equal(t, "auth-service", q.Parameters["name"])
	assert.Equal(t, "service", q.Parameters["entityType"])
}

func TestDeleteColdEventsQuery(t *testing.T) {
	q := DeleteColdEventsQuery(5000, 5, 3)
	assert.Contains(t, q.Query, "DETACH DELETE e")
	assert.Equal(t, int64(5000), q.Parameters["warmCutoff"])
	assert.Equal(t, 5, q.Parameters["minImportance"])
	assert.Equal(t, 3, q.Parameters["minAccessCount"])
}

func TestUpdateImportanceFromCentralityQuery(t *testing.T) {
	q := UpdateImportanceFromCentralityQuery()
	assert.Contains(t, q.Query, "WHEN in_degree >= 10 THEN 10")
	assert.Contains(t, q.Query, "coalesce(e.importance_score, 5)")
}

func TestMergeUserProfileQuery_OnlySetsKnownAttributes(t *testing.T) {
	q := MergeUserProfileQuery("user-1", map[string]interface{}{
		"timezone": "Europe/Berlin",
		"ignored":  "value",
	}, 1000)
	assert.Contains(t, q.Query, "p.timezone = $timezone")
	assert.NotContains(t, q.Query, "ignored")
	assert.Equal(t, "Europe/Berlin", q.Parameters["timezone"])
	assert.Equal(t, "profile:user-1", q.Parameters["profileID"])
}

func TestMergePreferenceQuery(t *testing.T) {
	q := MergePreferenceQuery("user-1", "pref-1", "code_style", "tabs", "positive",
		"explicit", "stated in review", "global", "", 0.9, 0.95, 2000)
	assert.Contains(t, q.Query, "p.observation_count = p.observation_count + 1")
	assert.Contains(t, q.Query, "coalesce(p.first_observed_at, $now)")
	assert.Equal(t, 0.95, q.Parameters["confidence"])
}

func TestDeleteUserDataQuery_Redacts(t *testing.T) {
	q := DeleteUserDataQuery("user-1")
	assert.Contains(t, q.Query, "DETACH DELETE p, pref, b")
	assert.Contains(t, q.Query, "SET u.name = 'REDACTED'")
}

func TestRowAccessors(t *testing.T) {
	assert.Equal(t, "x", RowString("x"))
	assert.Equal(t, "", RowString(nil))
	assert.Equal(t, 3, RowInt(int64(3)))
	assert.Equal(t, 3, RowInt(float64(3)))
	assert.Equal(t, int64(9), RowInt64(float64(9)))
	assert.Equal(t, 1.5, RowFloat(1.5))
	assert.Equal(t, 2.0, RowFloat(int64(2)))
	assert.Equal(t, []string{"a", "b"}, RowStrings([]interface{}{"a", "b"}))
	assert.Nil(t, RowStrings("not-an-array"))
}

func TestEscapeCypherString(t *testing.T) {
	require.Equal(t, `it\'s`, escapeCypherString("it's"))
}
