package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestServiceRoundTrip(t *testing.T) {
	for _, backend := range []string{BackendSQLite, BackendJSON} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			svc := newService(t, &Config{
				Backend:  backend,
				DBPath:   filepath.Join(dir, "memory.db"),
				FilePath: filepath.Join(dir, "memory.json"),
			})
			ctx := context.Background()
			assert.Equal(t, backend, svc.Backend())

			_, err := svc.CreateEntities(ctx, []EntityInput{
				{Name: "alice", EntityType: "person"},
				{Name: "bob", EntityType: "person"},
			})
			require.NoError(t, err)
			_, err = svc.CreateRelations(ctx, []RelationInput{{From: "alice", To: "bob", RelationType: "knows"}})
			require.NoError(t, err)
			added, err := svc.AddObservations(ctx, []ObservationAddition{{EntityName: "alice", Contents: []string{"likes tea"}}})
			require.NoError(t, err)
			require.Len(t, added, 1)

			g, err := svc.SearchNodes(ctx, "tea")
			require.NoError(t, err)
			require.Len(t, g.Entities, 1)
			assert.Equal(t, "alice", g.Entities[0].Name)

			g, err = svc.OpenNodes(ctx, []string{"alice", "bob"})
			require.NoError(t, err)
			assert.Len(t, g.Relations, 1)

			require.NoError(t, svc.DeleteObservations(ctx, []ObservationDeletion{{EntityName: "alice", Observations: []string{"likes tea"}}}))
			require.NoError(t, svc.DeleteRelations(ctx, []RelationInput{{From: "alice", To: "bob", RelationType: "knows"}}))
			require.NoError(t, svc.DeleteEntities(ctx, []string{"bob"}))

			st, err := svc.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, st.TotalEntities)
			assert.Equal(t, 0, st.TotalRelations)

			g, err = svc.ReadGraph(ctx)
			require.NoError(t, err)
			require.Len(t, g.Entities, 1)
			assert.Empty(t, g.Entities[0].Observations)
		})
	}
}

func TestServiceErrors(t *testing.T) {
	svc := newService(t, &Config{Backend: BackendJSON, FilePath: filepath.Join(t.TempDir(), "m.json")})
	ctx := context.Background()

	_, err := svc.CreateEntities(ctx, []EntityInput{{Name: "", EntityType: "x"}})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "entities[0].name", verr.Field)

	require.NoError(t, svc.Close())
	_, err = svc.ReadGraph(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	_, err := NewService(context.Background(), &Config{Backend: "redis"}, nil)
	assert.Error(t, err)

	_, err = NewService(context.Background(), &Config{Backend: BackendJSON, FilePath: filepath.Join(t.TempDir(), "m.json"), SearchMode: "fuzzy"}, nil)
	assert.Error(t, err)
}
