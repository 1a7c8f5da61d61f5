package docstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store/storetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBackendSuite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) func() (store.Backend, error) {
		path := filepath.Join(t.TempDir(), "memory.json")
		return func() (store.Backend, error) { return Open(path) }
	})
}

func TestOpenMissingAndEmptyFile(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(filepath.Join(dir, "nested", "memory.json"))
	require.NoError(t, err)
	ents, err := b.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ents)
	assert.NotNil(t, ents)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	_, err = Open(empty)
	require.NoError(t, err)

	_, err = Open("")
	assert.Error(t, err)
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestFileLayout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "memory.json")
	b, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, b.UpsertEntity(ctx, apptype.Entity{ID: "1", Name: "a", EntityType: "t", Observations: []string{"<x> & y"}}))
	require.NoError(t, b.UpsertRelation(ctx, apptype.Relation{ID: "2", From: "a", To: "b", RelationType: "r"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<x> & y")

	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Entities, 1)
	require.Len(t, doc.Relations, 1)
	assert.Equal(t, "a", doc.Entities[0].Name)
	assert.Equal(t, "r", doc.Relations[0].RelationType)

	// no temp files are left behind
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFailedWriteKeepsPreviousState(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	b, err := Open(filepath.Join(dir, "memory.json"))
	require.NoError(t, err)
	require.NoError(t, b.UpsertEntity(ctx, apptype.Entity{ID: "1", Name: "kept", EntityType: "t"}))

	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	err = b.UpsertEntity(ctx, apptype.Entity{ID: "2", Name: "lost", EntityType: "t"})
	require.Error(t, err)

	ents, err := b.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "kept", ents[0].Name)
}

func TestUpsertMovesToEndOfStorageOrder(t *testing.T) {
	ctx := context.Background()
	b, err := Open(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "a"} {
		require.NoError(t, b.UpsertEntity(ctx, apptype.Entity{ID: name, Name: name, EntityType: "t"}))
	}
	ents, err := b.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "b", ents[0].Name)
	assert.Equal(t, "a", ents[1].Name)
}

func TestListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b, err := Open(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)
	require.NoError(t, b.UpsertEntity(ctx, apptype.Entity{ID: "1", Name: "a", EntityType: "t", Observations: []string{"x"}}))

	ents, err := b.ListEntities(ctx)
	require.NoError(t, err)
	ents[0].Observations[0] = "mutated"

	got, err := b.GetEntity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Observations)
}

func TestClosedBackend(t *testing.T) {
	ctx := context.Background()
	b, err := Open(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.ListEntities(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.UpsertEntity(ctx, apptype.Entity{Name: "a"}), ErrClosed)
	assert.ErrorIs(t, b.Ping(ctx), ErrClosed)
}
