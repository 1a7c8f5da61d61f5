package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSSEServer_EndToEnd(t *testing.T) {
	srv, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := "/sse"

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ServeSSE(ctx, ln, endpoint) }()
	defer func() {
		cancel()
		assert.NoError(t, <-serveErr)
		http.DefaultClient.CloseIdleConnections()
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	transport := mcp.NewSSEClientTransport("http://"+ln.Addr().String()+endpoint, nil)
	session, err := client.Connect(ctx, transport)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"create_entities", "add_observations", "delete_entities", "delete_observations",
		"create_relations", "delete_relations", "search_nodes", "open_nodes", "read_graph", "health_check",
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "create_entities",
		Arguments: map[string]any{"entities": []map[string]any{
			{"name": "alice", "entityType": "person", "observations": []string{"likes tea"}},
		}},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "create_entities",
		Arguments: map[string]any{"entities": []map[string]any{{"name": "", "entityType": "person"}}},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	resources, err := session.ListResources(ctx, &mcp.ListResourcesParams{})
	require.NoError(t, err)
	assert.Len(t, resources.Resources, 5)

	read, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: EntitiesURI})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	var entities []apptype.Entity
	require.NoError(t, json.Unmarshal([]byte(read.Contents[0].Text), &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, "alice", entities[0].Name)
}
