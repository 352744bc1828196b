package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/consolidation"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/ledger"
	"github.com/moolen/atlas/internal/models"
	"github.com/moolen/atlas/internal/retrieval"
)

type fakeClient struct {
	mu       sync.Mutex
	executed []graph.GraphQuery
	results  map[string]*graph.QueryResult
	pingErr  error
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                      { return nil }
func (f *fakeClient) Ping(ctx context.Context) error    { return f.pingErr }
func (f *fakeClient) GetGraphStats(ctx context.Context) (*graph.GraphStats, error) {
	return &graph.GraphStats{NodeCount: 7, EdgeCount: 3}, nil
}
func (f *fakeClient) InitializeSchema(ctx context.Context) error { return nil }
func (f *fakeClient) DeleteGraph(ctx context.Context) error      { return nil }

func (f *fakeClient) ExecuteQuery(ctx context.Context, q graph.GraphQuery) (*graph.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, q)
	for marker, result := range f.results {
		if strings.Contains(q.Query, marker) {
			return result, nil
		}
	}
	return &graph.QueryResult{}, nil
}

type fakeTrigger struct {
	sessions []string
}

func (f *fakeTrigger) PostTrigger(ctx context.Context, sessionID string) error {
	f.sessions = append(f.sessions, sessionID)
	return nil
}

type fakePruner struct {
	tier   string
	dryRun bool
}

func (f *fakePruner) Prune(ctx context.Context, tier string, dryRun bool) (*consolidation.PruneResult, error) {
	if tier != consolidation.TierWarm && tier != consolidation.TierCold {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	f.tier = tier
	f.dryRun = dryRun
	return &consolidation.PruneResult{Tier: tier, DryRun: dryRun, AffectedCount: 4}, nil
}

type testEnv struct {
	router  *http.ServeMux
	client  *fakeClient
	trigger *fakeTrigger
	pruner  *fakePruner
	store   *ledger.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	store := ledger.NewStore(redisClient, cfg.Redis)

	client := &fakeClient{results: map[string]*graph.QueryResult{}}
	trigger := &fakeTrigger{}
	pruner := &fakePruner{}

	h := New(store, client, retrieval.NewService(client, cfg.Decay), trigger, pruner)
	router := http.NewServeMux()
	h.Register(router)

	return &testEnv{router: router, client: client, trigger: trigger, pruner: pruner, store: store}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func validEvent() *models.Event {
	return &models.Event{
		EventID:    uuid.New(),
		EventType:  "tool.invoke",
		OccurredAt: time.Now().UTC().Add(-time.Minute),
		SessionID:  "sess-1",
		AgentID:    "agent-1",
		TraceID:    "trace-1",
		PayloadRef: "mem://p/1",
	}
}

func TestIngest_Created(t *testing.T) {
	env := newTestEnv(t)
	event := validEvent()

	rec := env.do(t, http.MethodPost, "/v1/events", event)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, event.EventID.String(), body["event_id"])
	assert.NotEmpty(t, body["global_position"])
}

func TestIngest_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	event := validEvent()
	event.EventType = "NotValid"

	rec := env.do(t, http.MethodPost, "/v1/events", event)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	detail, ok := body["detail"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, detail)
	first, ok := detail[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "event_type", first["field"])
	assert.NotEmpty(t, first["message"])
}

func TestIngestBatch_PartialValidation(t *testing.T) {
	env := newTestEnv(t)

	good := validEvent()
	bad := validEvent()
	bad.EventType = "bad type"

	rec := env.do(t, http.MethodPost, "/v1/events/batch", []*models.Event{good, bad})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	ingested := body["ingested"].([]interface{})
	require.Len(t, ingested, 1)

	batchErrors := body["errors"].([]interface{})
	require.Len(t, batchErrors, 1)
	// The index refers to the original request order.
	assert.Equal(t, float64(1), batchErrors[0].(map[string]interface{})["index"])
}

func TestIngestBatch_TooLarge(t *testing.T) {
	env := newTestEnv(t)

	events := make([]*models.Event, maxBatchSize+1)
	for i := range events {
		events[i] = validEvent()
	}

	rec := env.do(t, http.MethodPost, "/v1/events/batch", events)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEvent_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	event := validEvent()

	_, err := env.store.Append(context.Background(), event)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/v1/events/"+event.EventID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, event.EventID.String(), body["event_id"])
	assert.NotEmpty(t, body["global_position"])
}

func TestGetEvent_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/events/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContext_EmptySession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/context/sess-empty", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Empty(t, body["nodes"])
}

func TestContext_AcceptsQueryParameters(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/context/sess-1?max_nodes=5&max_depth=1&query=deploy", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	meta := body["meta"].(map[string]interface{})
	capacity := meta["capacity"].(map[string]interface{})
	assert.Equal(t, float64(5), capacity["max_nodes"])
	assert.Equal(t, float64(1), capacity["max_depth"])
}

func TestContext_RejectsBadMaxNodes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/context/sess-1?max_nodes=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubgraph_RequiresInput(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/query/subgraph", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLineage_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/nodes/"+uuid.NewString()+"/lineage", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEntity_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/entities/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEntity_Found(t *testing.T) {
	env := newTestEnv(t)
	env.client.results["MATCH (n:Entity {name: $name})"] = &graph.QueryResult{
		Rows: [][]interface{}{
			{"ent-1", "kubernetes", "service", int64(1000), int64(2000), 5, []interface{}{"evt-1"}},
		},
	}

	rec := env.do(t, http.MethodGet, "/v1/entities/kubernetes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "kubernetes", body["name"])
	assert.Equal(t, "service", body["entity_type"])
	assert.Equal(t, float64(5), body["mention_count"])
}

func TestUserPreferences_FiltersByCategory(t *testing.T) {
	env := newTestEnv(t)
	env.client.results["HAS_PREFERENCE"] = &graph.QueryResult{
		Rows: [][]interface{}{
			{"pref-1", "code_style", "tabs", "positive", 0.8, 0.9, "explicit",
				"", "global", "", 3, int64(1000), int64(2000)},
		},
	}

	rec := env.do(t, http.MethodGet, "/v1/users/user-1/preferences?category=code_style", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	prefs := body["preferences"].([]interface{})
	require.Len(t, prefs, 1)
	assert.Equal(t, "tabs", prefs[0].(map[string]interface{})["key"])

	// The category filter reaches the graph query.
	last := env.client.executed[len(env.client.executed)-1]
	assert.Equal(t, "code_style", last.Parameters["category"])
}

func TestUserProfile_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/users/user-1/profile", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserDataExport_CollectsSections(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/users/user-1/data-export", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	for _, key := range []string{"preferences", "skills", "patterns", "interests"} {
		_, ok := body[key]
		assert.True(t, ok, "missing export section %s", key)
	}
}

func TestUserDelete_Erases(t *testing.T) {
	env := newTestEnv(t)
	env.client.results["RETURN count(n) as derived"] = &graph.QueryResult{
		Rows: [][]interface{}{{int64(6)}},
	}

	rec := env.do(t, http.MethodDelete, "/v1/users/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "erased", body["status"])
	assert.Equal(t, float64(6), body["deleted_count"])

	redactions := 0
	for _, q := range env.client.executed {
		if strings.Contains(q.Query, "SET u.name = 'REDACTED'") {
			redactions++
		}
	}
	assert.Equal(t, 1, redactions)
}

func TestReconsolidate_PostsTrigger(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/admin/reconsolidate",
		map[string]string{"session_id": "sess-9"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"sess-9"}, env.trigger.sessions)
}

func TestAdminPrune_DefaultsToDryRun(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/admin/prune", map[string]interface{}{"tier": "cold"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "cold", env.pruner.tier)
	assert.True(t, env.pruner.dryRun)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(4), body["affected_count"])
}

func TestAdminPrune_UnknownTier(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/admin/prune", map[string]interface{}{"tier": "lukewarm"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	graphStats := body["graph"].(map[string]interface{})
	assert.Equal(t, float64(7), graphStats["nodeCount"])
	assert.Equal(t, float64(0), body["stream_length"])
}

func TestHealth_Healthy(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestHealth_DegradedWhenGraphDown(t *testing.T) {
	env := newTestEnv(t)
	env.client.pingErr = assert.AnError

	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	components := body["components"].(map[string]interface{})
	assert.Equal(t, "down", components["graph"])
}
