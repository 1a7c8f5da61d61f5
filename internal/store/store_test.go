package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/docstore"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/search"
)

var errDisk = errors.New("disk on fire")

// faultyBackend fails the named operation and counts writes.
type faultyBackend struct {
	Backend
	failOn string
	writes int
	closed int
}

func (f *faultyBackend) check(op string) error {
	if f.failOn == op {
		return errDisk
	}
	return nil
}

func (f *faultyBackend) UpsertEntity(ctx context.Context, e apptype.Entity) error {
	if err := f.check("UpsertEntity"); err != nil {
		return err
	}
	f.writes++
	return f.Backend.UpsertEntity(ctx, e)
}

func (f *faultyBackend) GetEntity(ctx context.Context, name string) (*apptype.Entity, error) {
	if err := f.check("GetEntity"); err != nil {
		return nil, err
	}
	return f.Backend.GetEntity(ctx, name)
}

func (f *faultyBackend) ListEntities(ctx context.Context) ([]apptype.Entity, error) {
	if err := f.check("ListEntities"); err != nil {
		return nil, err
	}
	return f.Backend.ListEntities(ctx)
}

func (f *faultyBackend) Close() error {
	f.closed++
	if err := f.check("Close"); err != nil {
		return err
	}
	return f.Backend.Close()
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *faultyBackend) {
	t.Helper()
	b, err := docstore.Open(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)
	fb := &faultyBackend{Backend: b}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	s := New(fb, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, fb
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	var nilStore *Store
	for name, s := range map[string]*Store{"nil backend": New(nil), "nil store": nilStore} {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "a", EntityType: "t"}})
			assert.ErrorIs(t, err, ErrNotInitialized)
			_, err = s.ReadGraph(ctx)
			assert.ErrorIs(t, err, ErrNotInitialized)
			_, err = s.SearchNodes(ctx, "")
			assert.ErrorIs(t, err, ErrNotInitialized)
			assert.ErrorIs(t, s.DeleteEntities(ctx, []string{"a"}), ErrNotInitialized)
			assert.NoError(t, s.Close())
		})
	}
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	ctx := context.Background()
	s, fb := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, fb.closed)

	_, err := s.OpenNodes(ctx, []string{"a"})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.Stats(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, s.Ping(ctx), ErrNotInitialized)
}

func TestBackendErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	s, fb := newTestStore(t)

	fb.failOn = "UpsertEntity"
	_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "a", EntityType: "t"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "create_entities", be.Op)
	assert.True(t, IsBackendError(err))
	assert.NotErrorIs(t, err, apptype.ErrInvalidArgument)

	fb.failOn = "GetEntity"
	_, err = s.AddObservations(ctx, []apptype.ObservationAddition{{EntityName: "a", Contents: []string{"x"}}})
	assert.ErrorIs(t, err, errDisk)

	fb.failOn = "ListEntities"
	_, err = s.ReadGraph(ctx)
	assert.ErrorIs(t, err, errDisk)
	_, err = s.SearchNodes(ctx, "")
	assert.ErrorIs(t, err, errDisk)

	fb.failOn = "Close"
	err = s.Close()
	assert.ErrorIs(t, err, errDisk)
}

func TestBackendFailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	s, fb := newTestStore(t)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "a", EntityType: "t"}})
	require.NoError(t, err)
	fb.failOn = "UpsertEntity"
	_, err = s.CreateEntities(ctx, []apptype.EntityInput{{Name: "b", EntityType: "t"}, {Name: "c", EntityType: "t"}})
	require.Error(t, err)
	fb.failOn = ""

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	assert.Equal(t, "a", g.Entities[0].Name)
}

func TestValidationRejectsBeforeBackend(t *testing.T) {
	ctx := context.Background()
	s, fb := newTestStore(t)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "ok", EntityType: "t"}, {Name: "", EntityType: "t"}})
	require.ErrorIs(t, err, apptype.ErrInvalidArgument)
	assert.False(t, IsBackendError(err))
	assert.Zero(t, fb.writes)

	_, err = s.CreateRelations(ctx, []apptype.RelationInput{{From: "a", To: "", RelationType: "r"}})
	assert.ErrorIs(t, err, apptype.ErrInvalidArgument)
	assert.ErrorIs(t, s.DeleteEntities(ctx, []string{" "}), apptype.ErrInvalidArgument)
	_, err = s.AddObservations(ctx, []apptype.ObservationAddition{{Contents: []string{"x"}}})
	assert.ErrorIs(t, err, apptype.ErrInvalidArgument)
	assert.ErrorIs(t, s.DeleteObservations(ctx, []apptype.ObservationDeletion{{}}), apptype.ErrInvalidArgument)
	assert.ErrorIs(t, s.DeleteRelations(ctx, []apptype.RelationInput{{}}), apptype.ErrInvalidArgument)
}

func TestTimestampsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ids := 0
	s, _ := newTestStore(t,
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { ids++; return fmt.Sprintf("id-%d", ids) }),
	)

	out, err := s.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "a", EntityType: "t"},
		{Name: "b", EntityType: "t"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", out[0].ID)
	assert.Equal(t, "id-2", out[1].ID)
	assert.Equal(t, "2025-03-01T09:00:00.000000000Z", out[0].CreatedAt)
	assert.Equal(t, "2025-03-01T09:00:00.000000001Z", out[1].CreatedAt)

	rels, err := s.CreateRelations(ctx, []apptype.RelationInput{{From: "a", To: "b", RelationType: "r"}})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T09:00:00.000000002Z", rels[0].CreatedAt)

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", g.Entities[0].Name)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T09:00:00.000000000Z", st.GeneratedAt)
	assert.Equal(t, rels[0].CreatedAt, st.LastUpdated)
	assert.Equal(t, map[string]int{"t": 2}, st.EntityTypes)
}

type seededBackend struct {
	Backend
	entities  []apptype.Entity
	relations []apptype.Relation
}

func (b *seededBackend) ListEntities(context.Context) ([]apptype.Entity, error) {
	return append([]apptype.Entity(nil), b.entities...), nil
}

func (b *seededBackend) ListRelations(context.Context) ([]apptype.Relation, error) {
	return append([]apptype.Relation(nil), b.relations...), nil
}

func (b *seededBackend) Close() error { return nil }

func TestReadGraphTieBreaksByStoragePosition(t *testing.T) {
	ts := "2025-01-01T00:00:00.000000000Z"
	b := &seededBackend{
		entities: []apptype.Entity{
			{Name: "old", UpdatedAt: "2024-01-01T00:00:00.000000000Z"},
			{Name: "tie-first", UpdatedAt: ts},
			{Name: "tie-second", UpdatedAt: ts},
		},
		relations: []apptype.Relation{
			{RelationType: "r1", CreatedAt: ts},
			{RelationType: "r2", CreatedAt: ts},
		},
	}
	g, err := New(b).ReadGraph(context.Background())
	require.NoError(t, err)
	require.Len(t, g.Entities, 3)
	assert.Equal(t, "tie-second", g.Entities[0].Name)
	assert.Equal(t, "tie-first", g.Entities[1].Name)
	assert.Equal(t, "old", g.Entities[2].Name)
	assert.Equal(t, "r2", g.Relations[0].RelationType)
}

func TestSearchStrategyOption(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithSearchStrategy(search.New(search.ModeIncident)))

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "alpha", EntityType: "t"}})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{
		{From: "alpha", To: "x", RelationType: "r"},
		{From: "y", To: "z", RelationType: "alpha-like"},
	})
	require.NoError(t, err)

	g, err := s.SearchNodes(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, g.Relations, 1)
	assert.Equal(t, "alpha", g.Relations[0].From)
}

func TestConcurrentCreateDeleteSameName(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "shared", EntityType: fmt.Sprintf("t%d", i)}})
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.DeleteEntities(ctx, []string{"shared"}))
		}()
	}
	wg.Wait()

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(g.Entities), 1)
}

func TestBackendName(t *testing.T) {
	s, _ := newTestStore(t)
	// faultyBackend embeds the interface, which hides Name.
	assert.Equal(t, "unknown", s.BackendName())

	b, err := docstore.Open(filepath.Join(t.TempDir(), "m.json"))
	require.NoError(t, err)
	assert.Equal(t, "json", New(b).BackendName())
}

type pooledBackend struct {
	seededBackend
}

func (pooledBackend) PoolStats() (inUse, idle int) { return 2, 3 }

func TestPoolStats(t *testing.T) {
	s := New(&pooledBackend{})
	inUse, idle, ok := s.PoolStats()
	assert.True(t, ok)
	assert.Equal(t, 2, inUse)
	assert.Equal(t, 3, idle)

	require.NoError(t, s.Close())
	_, _, ok = s.PoolStats()
	assert.False(t, ok)

	plain, _ := newTestStore(t)
	_, _, ok = plain.PoolStats()
	assert.False(t, ok)
}
