package extraction

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/models"
)

func TestApplyConfidencePrior(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		source     string
		want       float64
	}{
		{"explicit capped", 0.99, "explicit", 0.95},
		{"explicit under ceiling", 0.8, "explicit", 0.8},
		{"inferred capped", 0.9, "inferred", 0.6},
		{"implicit unintentional capped", 0.8, "implicit_unintentional", 0.5},
		{"unknown source passes through", 0.99, "telepathy", 0.99},
		{"case insensitive", 0.99, "Observed", 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyConfidencePrior(tt.confidence, tt.source))
		})
	}
}

func TestValidateSourceQuote(t *testing.T) {
	transcript := "User said: I really prefer using PostgreSQL over MySQL for production workloads."

	assert.True(t, ValidateSourceQuote("I really prefer using PostgreSQL", transcript))
	// Case and whitespace drift are tolerated.
	assert.True(t, ValidateSourceQuote("i REALLY  prefer using postgresql", transcript))
	// Small transcription drift passes the fuzzy window.
	assert.True(t, ValidateSourceQuote("I realy prefer using PostgreSQL", transcript))
	// Fabrications fail.
	assert.False(t, ValidateSourceQuote("I hate relational databases entirely", transcript))
	assert.False(t, ValidateSourceQuote("", transcript))
	assert.False(t, ValidateSourceQuote("quote", ""))
}

func TestBuildPrompt(t *testing.T) {
	eventID := uuid.New()
	events := []*models.Event{
		{
			EventID:    eventID,
			EventType:  "tool.invoke",
			OccurredAt: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
			AgentID:    "agent-1",
			ToolName:   "search",
			PayloadRef: "mem://p/1",
		},
	}

	prompt := BuildPrompt("sess-1", events, []string{"postgresql"})
	assert.Contains(t, prompt, "Session: sess-1")
	assert.Contains(t, prompt, "- postgresql")
	assert.Contains(t, prompt, "[Turn 1] [2026-08-24T10:00:00Z] tool.invoke tool=search")
	assert.Contains(t, prompt, "event_id="+eventID.String())
	assert.Contains(t, prompt, "payload: mem://p/1")
}

func TestParseResult_ToleratesSurroundingProse(t *testing.T) {
	text := `Here is what I found:
{"entities": [{"name": "redis", "entity_type": "service", "confidence": 0.9}]}
Let me know if you need more.`

	result, err := ParseResult(text)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "redis", result.Entities[0].Name)
}

func TestParseResult_NoJSON(t *testing.T) {
	_, err := ParseResult("no structured data here")
	assert.Error(t, err)
}

func TestSanitize_DropsUnsupportedItems(t *testing.T) {
	transcript := "the user mentioned they prefer tabs over spaces in go code"
	result := &SessionExtractionResult{
		Preferences: []ExtractedPreference{
			{UserID: "u1", Key: "tabs", Source: "explicit", Confidence: 0.99,
				SourceQuote: "prefer tabs over spaces"},
			{UserID: "u1", Key: "vim", Source: "explicit", Confidence: 0.9,
				SourceQuote: "the user loves vim keybindings"},
		},
	}

	clean := Sanitize(result, transcript, logging.GetLogger("test"))
	require.Len(t, clean.Preferences, 1)
	assert.Equal(t, "tabs", clean.Preferences[0].Key)
	// The prior caps explicit confidence at 0.95.
	assert.Equal(t, 0.95, clean.Preferences[0].Confidence)
}

type fakeClient struct {
	executed []graph.GraphQuery
	results  map[string]*graph.QueryResult
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                      { return nil }
func (f *fakeClient) Ping(ctx context.Context) error    { return nil }
func (f *fakeClient) GetGraphStats(ctx context.Context) (*graph.GraphStats, error) {
	return &graph.GraphStats{}, nil
}
func (f *fakeClient) InitializeSchema(ctx context.Context) error { return nil }
func (f *fakeClient) DeleteGraph(ctx context.Context) error      { return nil }

func (f *fakeClient) ExecuteQuery(ctx context.Context, q graph.GraphQuery) (*graph.QueryResult, error) {
	f.executed = append(f.executed, q)
	for marker, result := range f.results {
		if strings.Contains(q.Query, marker) {
			return result, nil
		}
	}
	return &graph.QueryResult{}, nil
}

func (f *fakeClient) queriesContaining(marker string) []graph.GraphQuery {
	var out []graph.GraphQuery
	for _, q := range f.executed {
		if strings.Contains(q.Query, marker) {
			out = append(out, q)
		}
	}
	return out
}

func TestPersist_ResolvesEntityAliases(t *testing.T) {
	client := &fakeClient{
		results: map[string]*graph.QueryResult{
			"MATCH (n:Entity) RETURN n.name": {
				Rows: [][]interface{}{{"kubernetes", "service"}},
			},
		},
	}
	persister := NewPersister(client)

	eventID := uuid.NewString()
	err := persister.Persist(context.Background(), &SessionExtractionResult{
		SessionID: "sess-1",
		Entities: []ExtractedEntity{
			{Name: "k8s", EntityType: "service", Confidence: 0.9, EventID: eventID},
		},
	})
	require.NoError(t, err)

	merges := client.queriesContaining("MERGE (n:Entity {name: $name})")
	require.Len(t, merges, 1)
	// The alias resolves to the existing canonical entity.
	assert.Equal(t, "kubernetes", merges[0].Parameters["name"])

	refs := client.queriesContaining("REFERENCES")
	require.Len(t, refs, 1)
	assert.Equal(t, eventID, refs[0].Parameters["eventID"])
}

func TestPersist_FuzzyMatchLinksInsteadOfMerging(t *testing.T) {
	client := &fakeClient{
		results: map[string]*graph.QueryResult{
			"MATCH (n:Entity) RETURN n.name": {
				Rows: [][]interface{}{{"kubernetes", "tool"}},
			},
		},
	}
	persister := NewPersister(client)

	err := persister.Persist(context.Background(), &SessionExtractionResult{
		SessionID: "sess-1",
		Entities: []ExtractedEntity{
			{Name: "kuberntes", EntityType: "tool", Confidence: 0.9},
		},
	})
	require.NoError(t, err)

	// The misspelling stays its own entity.
	merges := client.queriesContaining("MERGE (n:Entity {name: $name})")
	require.Len(t, merges, 1)
	assert.Equal(t, "kuberntes", merges[0].Parameters["name"])

	sameAs := client.queriesContaining("SAME_AS")
	require.Len(t, sameAs, 1)
	assert.Equal(t, "kuberntes", sameAs[0].Parameters["entityName"])
	assert.Equal(t, "kubernetes", sameAs[0].Parameters["canonicalName"])
}

func TestPersist_FuzzyMatchAcrossTypesWritesRelatedTo(t *testing.T) {
	client := &fakeClient{
		results: map[string]*graph.QueryResult{
			"MATCH (n:Entity) RETURN n.name": {
				Rows: [][]interface{}{{"postgresql", "tool"}},
			},
		},
	}
	persister := NewPersister(client)

	err := persister.Persist(context.Background(), &SessionExtractionResult{
		SessionID: "sess-1",
		Entities: []ExtractedEntity{
			{Name: "postgresq", EntityType: "service", Confidence: 0.9},
		},
	})
	require.NoError(t, err)

	related := client.queriesContaining("RELATED_TO")
	require.Len(t, related, 1)
	assert.Equal(t, "postgresq", related[0].Parameters["entityName"])
	assert.Equal(t, "postgresql", related[0].Parameters["otherName"])
	assert.Empty(t, client.queriesContaining("SAME_AS"))
}

func TestPersist_WritesPreferenceWithProvenance(t *testing.T) {
	client := &fakeClient{
		results: map[string]*graph.QueryResult{
			"RETURN p.preference_id as preference_id": {
				Rows: [][]interface{}{{"existing-pref"}},
			},
		},
	}
	persister := NewPersister(client)

	eventID := uuid.NewString()
	err := persister.Persist(context.Background(), &SessionExtractionResult{
		SessionID: "sess-1",
		Preferences: []ExtractedPreference{
			{UserID: "user-1", Category: "code_style", Key: "tabs", Polarity: "positive",
				Strength: 0.8, Confidence: 0.9, Source: "explicit", EventID: eventID},
		},
	})
	require.NoError(t, err)

	derived := client.queriesContaining("DERIVED_FROM")
	require.Len(t, derived, 1)
	assert.Equal(t, "existing-pref", derived[0].Parameters["nodeID"])
	assert.Equal(t, eventID, derived[0].Parameters["eventID"])
	assert.Equal(t, "sess-1", derived[0].Parameters["sessionID"])
}

func TestPersist_RequiresUserID(t *testing.T) {
	persister := NewPersister(&fakeClient{})
	err := persister.Persist(context.Background(), &SessionExtractionResult{
		Skills: []ExtractedSkill{{Name: "go", Category: "language"}},
	})
	assert.Error(t, err)
}
