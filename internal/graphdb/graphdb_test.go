package graphdb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store/storetest"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	return Config{
		URI:      uri,
		Username: os.Getenv("NEO4J_USERNAME"),
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: os.Getenv("NEO4J_DATABASE"),
	}
}

func wipe(t *testing.T, b *Backend) {
	t.Helper()
	err := b.exec(context.Background(),
		"MATCH (n) WHERE n:MemoryEntity OR n:MemoryRelation OR n:MemorySequence DETACH DELETE n", nil)
	require.NoError(t, err)
}

func TestBackendSuite(t *testing.T) {
	cfg := testConfig(t)
	storetest.Run(t, func(t *testing.T) func() (store.Backend, error) {
		b, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		wipe(t, b)
		require.NoError(t, b.Close())
		return func() (store.Backend, error) { return Open(context.Background(), cfg) }
	})
}

func TestOpenRequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestRelationKeyDistinguishesFields(t *testing.T) {
	assert.NotEqual(t, relationKey("a", "bc", "d"), relationKey("ab", "c", "d"))
	assert.NotEqual(t, relationKey("a\x1fb", "c", "d"), relationKey("a", "b\x1fc", "d"))
	assert.NotEqual(t, relationKey(`a","b`, "c", "d"), relationKey("a", `b","c`, "d"))
	assert.Equal(t, relationKey("a", "b", "c"), relationKey("a", "b", "c"))
}

func TestObservationCodec(t *testing.T) {
	raw, err := encodeObservations(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	obs, err := decodeObservations("")
	require.NoError(t, err)
	assert.NotNil(t, obs)
	assert.Empty(t, obs)

	obs, err = decodeObservations(`["a","b"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, obs)

	_, err = decodeObservations("{")
	assert.Error(t, err)
}
