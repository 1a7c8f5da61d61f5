package viewapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/docstore"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
)

func setupRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b, err := docstore.Open(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)
	st := store.New(b)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = st.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "alice", EntityType: "person", Observations: []string{"likes tea"}},
		{Name: "bob", EntityType: "person"},
	})
	require.NoError(t, err)
	_, err = st.CreateRelations(ctx, []apptype.RelationInput{{From: "alice", To: "bob", RelationType: "knows"}})
	require.NoError(t, err)

	return NewRouter(st, zaptest.NewLogger(t)), st
}

func get(t *testing.T, router http.Handler, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupRouter(t)
	var response map[string]interface{}
	assert.Equal(t, http.StatusOK, get(t, router, "/healthz", &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "json", response["backend"])
}

func TestGraphEndpoints(t *testing.T) {
	router, _ := setupRouter(t)

	var g apptype.GraphResult
	assert.Equal(t, http.StatusOK, get(t, router, "/api/graph", &g))
	assert.Len(t, g.Entities, 2)
	assert.Len(t, g.Relations, 1)

	var entities []apptype.Entity
	assert.Equal(t, http.StatusOK, get(t, router, "/api/entities", &entities))
	assert.Len(t, entities, 2)

	var relations []apptype.Relation
	assert.Equal(t, http.StatusOK, get(t, router, "/api/relations", &relations))
	require.Len(t, relations, 1)
	assert.Equal(t, "knows", relations[0].RelationType)

	var stats apptype.Stats
	assert.Equal(t, http.StatusOK, get(t, router, "/api/stats", &stats))
	assert.Equal(t, 2, stats.TotalEntities)
	assert.Equal(t, map[string]int{"person": 2}, stats.EntityTypes)
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	var g apptype.GraphResult
	assert.Equal(t, http.StatusOK, get(t, router, "/api/search?q=TEA", &g))
	require.Len(t, g.Entities, 1)
	assert.Equal(t, "alice", g.Entities[0].Name)
	assert.Empty(t, g.Relations)

	assert.Equal(t, http.StatusOK, get(t, router, "/api/search", &g))
	assert.Len(t, g.Entities, 2)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	router, st := setupRouter(t)
	require.NoError(t, st.Close())

	var response map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, get(t, router, "/api/graph", &response))
	assert.Equal(t, store.ErrNotInitialized.Error(), response["error"])
	assert.Equal(t, http.StatusServiceUnavailable, get(t, router, "/healthz", nil))
}

func TestServeStopsOnCancel(t *testing.T) {
	router, _ := setupRouter(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, ln, router, zaptest.NewLogger(t)) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-errCh)
}
