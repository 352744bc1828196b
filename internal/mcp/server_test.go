package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/retrieval"
)

type fakeClient struct {
	executed []graph.GraphQuery
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
	return &graph.QueryResult{}, nil
}

func newTestServer(t *testing.T) (*AtlasServer, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	service := retrieval.NewService(client, config.Default().Decay)
	return NewAtlasServer(service, "test"), client
}

func TestNewAtlasServer_RegistersQueryTools(t *testing.T) {
	server, _ := newTestServer(t)

	for _, name := range []string{"query_context", "query_subgraph", "query_lineage"} {
		_, ok := server.tools[name]
		assert.True(t, ok, "missing tool %s", name)
	}
	assert.NotNil(t, server.GetMCPServer())
}

func TestContextTool_RequiresSessionID(t *testing.T) {
	server, _ := newTestServer(t)

	_, err := server.tools["query_context"].Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_id")
}

func TestContextTool_QueriesSession(t *testing.T) {
	server, client := newTestServer(t)

	result, err := server.tools["query_context"].Execute(context.Background(),
		json.RawMessage(`{"session_id": "sess-1", "limit": 5}`))
	require.NoError(t, err)
	assert.NotNil(t, result)

	found := false
	for _, q := range client.executed {
		if strings.Contains(q.Query, "session_id: $sessionID") && q.Parameters["sessionID"] == "sess-1" {
			found = true
		}
	}
	assert.True(t, found, "session query not executed")
}

func TestSubgraphTool_RequiresQuery(t *testing.T) {
	server, _ := newTestServer(t)

	_, err := server.tools["query_subgraph"].Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}

func TestLineageTool_RequiresNodeID(t *testing.T) {
	server, _ := newTestServer(t)

	_, err := server.tools["query_lineage"].Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_id")
}
