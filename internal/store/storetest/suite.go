// Package storetest holds a behavioural test suite that every store.Backend
// implementation runs against itself.
package storetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
)

// Factory prepares an empty storage location for one test and returns a
// function that opens a backend on it. The returned function may be called
// again after Close to simulate a process restart.
type Factory func(t *testing.T) func() (store.Backend, error)

// Run executes the suite.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, open func() (store.Backend, error))
	}{
		{"CreateEntitiesUpsertsByName", testCreateEntitiesUpsertsByName},
		{"DeleteEntitiesCascades", testDeleteEntitiesCascades},
		{"CreateRelationsUpsertsByTriple", testCreateRelationsUpsertsByTriple},
		{"DanglingRelationsAllowed", testDanglingRelationsAllowed},
		{"AddObservationsUnknownEntityIsNoop", testAddObservationsUnknownEntityIsNoop},
		{"AddObservationsAppendsDuplicates", testAddObservationsAppendsDuplicates},
		{"DeleteObservationsExactMatch", testDeleteObservationsExactMatch},
		{"DeleteObservationsRefreshesOnlyOnRemoval", testDeleteObservationsRefreshesOnlyOnRemoval},
		{"DeletesAreIdempotent", testDeletesAreIdempotent},
		{"SearchEmptyQueryMatchesAll", testSearchEmptyQueryMatchesAll},
		{"SearchIsCaseInsensitive", testSearchIsCaseInsensitive},
		{"SearchLiteralWildcards", testSearchLiteralWildcards},
		{"OpenNodes", testOpenNodes},
		{"ReadGraphOrdering", testReadGraphOrdering},
		{"SurvivesRestart", testSurvivesRestart},
		{"Scenario", testScenario},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, factory(t))
		})
	}
}

func openStore(t *testing.T, open func() (store.Backend, error)) *store.Store {
	t.Helper()
	b, err := open()
	require.NoError(t, err)
	s := store.New(b)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entityNames(es []apptype.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func relationKeys(rs []apptype.Relation) []apptype.RelationInput {
	out := make([]apptype.RelationInput, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Key())
	}
	return out
}

func testCreateEntitiesUpsertsByName(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	first, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "alice", EntityType: "person", Observations: []string{"likes tea"}}})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "alice", EntityType: "engineer", Observations: []string{"writes go"}}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	got := g.Entities[0]
	assert.Equal(t, second[0].ID, got.ID)
	assert.Equal(t, "engineer", got.EntityType)
	assert.Equal(t, []string{"writes go"}, got.Observations)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func testDeleteEntitiesCascades(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "a", EntityType: "t"},
		{Name: "b", EntityType: "t"},
		{Name: "c", EntityType: "t"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{
		{From: "a", To: "b", RelationType: "knows"},
		{From: "c", To: "a", RelationType: "knows"},
		{From: "b", To: "c", RelationType: "knows"},
		{From: "a", To: "a", RelationType: "self"},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntities(ctx, []string{"a"}))

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, entityNames(g.Entities))
	for _, r := range g.Relations {
		assert.NotEqual(t, "a", r.From)
		assert.NotEqual(t, "a", r.To)
	}
	assert.Equal(t, []apptype.RelationInput{{From: "b", To: "c", RelationType: "knows"}}, relationKeys(g.Relations))
}

func testCreateRelationsUpsertsByTriple(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	rel := apptype.RelationInput{From: "a", To: "b", RelationType: "knows"}
	first, err := s.CreateRelations(ctx, []apptype.RelationInput{rel})
	require.NoError(t, err)
	second, err := s.CreateRelations(ctx, []apptype.RelationInput{rel, rel})
	require.NoError(t, err)
	require.Len(t, second, 2)

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, g.Relations, 1)
	assert.Equal(t, rel, g.Relations[0].Key())
	assert.NotEqual(t, first[0].ID, g.Relations[0].ID)
	assert.Equal(t, second[1].ID, g.Relations[0].ID)

	// Reversed direction and a different type are distinct triples.
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{
		{From: "b", To: "a", RelationType: "knows"},
		{From: "a", To: "b", RelationType: "likes"},
	})
	require.NoError(t, err)
	g, err = s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Len(t, g.Relations, 3)
}

func testDanglingRelationsAllowed(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	out, err := s.CreateRelations(ctx, []apptype.RelationInput{{From: "ghost", To: "phantom", RelationType: "haunts"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].ID)
	assert.NotEmpty(t, out[0].CreatedAt)

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, g.Entities)
	assert.Len(t, g.Relations, 1)

	// Deleting a name with no entity still removes its relations.
	require.NoError(t, s.DeleteEntities(ctx, []string{"ghost"}))
	g, err = s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, g.Relations)
}

func testAddObservationsUnknownEntityIsNoop(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "known", EntityType: "t", Observations: []string{"x"}}})
	require.NoError(t, err)
	before, err := s.ReadGraph(ctx)
	require.NoError(t, err)

	res, err := s.AddObservations(ctx, []apptype.ObservationAddition{{EntityName: "unknown", Contents: []string{"y"}}})
	require.NoError(t, err)
	assert.Empty(t, res)

	after, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("graph changed (-before +after):\n%s", diff)
	}
}

func testAddObservationsAppendsDuplicates(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	created, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "n", EntityType: "t", Observations: []string{"one"}}})
	require.NoError(t, err)

	res, err := s.AddObservations(ctx, []apptype.ObservationAddition{
		{EntityName: "n", Contents: []string{"two", "one"}},
		{EntityName: "missing", Contents: []string{"nope"}},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "n", res[0].EntityName)
	assert.Equal(t, []string{"two", "one"}, res[0].AddedObservations)

	g, err := s.OpenNodes(ctx, []string{"n"})
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	e := g.Entities[0]
	assert.Equal(t, []string{"one", "two", "one"}, e.Observations)
	assert.Equal(t, created[0].ID, e.ID)
	assert.Equal(t, created[0].CreatedAt, e.CreatedAt)
	assert.Greater(t, e.UpdatedAt, created[0].UpdatedAt)
}

func testDeleteObservationsExactMatch(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "n", EntityType: "t", Observations: []string{"a", "b", "a", "A", "a "}}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteObservations(ctx, []apptype.ObservationDeletion{
		{EntityName: "n", Observations: []string{"a", "zzz"}},
		{EntityName: "missing", Observations: []string{"a"}},
	}))

	g, err := s.OpenNodes(ctx, []string{"n"})
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	assert.Equal(t, []string{"b", "A", "a "}, g.Entities[0].Observations)
}

func testDeleteObservationsRefreshesOnlyOnRemoval(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	created, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "n", EntityType: "t", Observations: []string{"a", "b"}}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteObservations(ctx, []apptype.ObservationDeletion{{EntityName: "n", Observations: []string{"zzz"}}}))
	g, err := s.OpenNodes(ctx, []string{"n"})
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	assert.Equal(t, created[0].UpdatedAt, g.Entities[0].UpdatedAt)

	require.NoError(t, s.DeleteObservations(ctx, []apptype.ObservationDeletion{{EntityName: "n", Observations: []string{"a"}}}))
	g, err = s.OpenNodes(ctx, []string{"n"})
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	assert.Equal(t, []string{"b"}, g.Entities[0].Observations)
	assert.Greater(t, g.Entities[0].UpdatedAt, created[0].UpdatedAt)
}

func testDeletesAreIdempotent(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	require.NoError(t, s.DeleteEntities(ctx, []string{"nobody"}))
	require.NoError(t, s.DeleteRelations(ctx, []apptype.RelationInput{{From: "x", To: "y", RelationType: "z"}}))

	_, err := s.CreateRelations(ctx, []apptype.RelationInput{{From: "x", To: "y", RelationType: "z"}})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, s.DeleteRelations(ctx, []apptype.RelationInput{{From: "x", To: "y", RelationType: "z"}}))
	}
	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, g.Relations)
}

func testSearchEmptyQueryMatchesAll(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "one", EntityType: "t"},
		{Name: "two", EntityType: "u", Observations: []string{"obs"}},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{
		{From: "one", To: "two", RelationType: "r"},
		{From: "x", To: "y", RelationType: "dangling"},
	})
	require.NoError(t, err)

	g, err := s.SearchNodes(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, entityNames(g.Entities))
	assert.Len(t, g.Relations, 2)
}

func testSearchIsCaseInsensitive(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "Alice", EntityType: "Person", Observations: []string{"Likes Green TEA"}},
		{Name: "Bob", EntityType: "person"},
		{Name: "\u212Aelvin", EntityType: "unit"},
		{Name: "Zoë", EntityType: "person"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{{From: "Carol", To: "Dave", RelationType: "Mentors"}})
	require.NoError(t, err)

	g, err := s.SearchNodes(ctx, "green tea")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, entityNames(g.Entities))
	assert.Empty(t, g.Relations)

	g, err = s.SearchNodes(ctx, "PERSON")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Zoë"}, entityNames(g.Entities))

	g, err = s.SearchNodes(ctx, "mentor")
	require.NoError(t, err)
	assert.Empty(t, g.Entities)
	assert.Equal(t, []apptype.RelationInput{{From: "Carol", To: "Dave", RelationType: "Mentors"}}, relationKeys(g.Relations))

	// The Kelvin sign lower-cases to an ASCII k.
	g, err = s.SearchNodes(ctx, "kelvin")
	require.NoError(t, err)
	assert.Equal(t, []string{"\u212Aelvin"}, entityNames(g.Entities))

	g, err = s.SearchNodes(ctx, "ZOË")
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoë"}, entityNames(g.Entities))
}

func testSearchLiteralWildcards(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "progress", EntityType: "note", Observations: []string{"100% done"}},
		{Name: "foo_bar", EntityType: "ident"},
		{Name: "fooXbar", EntityType: "ident"},
		{Name: "quoted", EntityType: "note", Observations: []string{`she said "hi"`, `back\slash`}},
	})
	require.NoError(t, err)

	cases := map[string][]string{
		"100%":      {"progress"},
		"o_b":       {"foo_bar"},
		`"hi"`:      {"quoted"},
		`k\s`:       {"quoted"},
		"%":         {"progress"},
		"_":         {"foo_bar"},
		"said \"hi": {"quoted"},
	}
	for q, want := range cases {
		g, err := s.SearchNodes(ctx, q)
		require.NoError(t, err, q)
		assert.Equal(t, want, entityNames(g.Entities), q)
	}
}

func testOpenNodes(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "a", EntityType: "t"},
		{Name: "b", EntityType: "t"},
		{Name: "c", EntityType: "t"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{
		{From: "a", To: "b", RelationType: "r"},
		{From: "b", To: "c", RelationType: "r"},
	})
	require.NoError(t, err)

	g, err := s.OpenNodes(ctx, []string{"c", "missing", "a", "c", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, entityNames(g.Entities))
	assert.Len(t, g.Relations, 2)

	g, err = s.OpenNodes(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, entityNames(g.Entities))
	assert.Empty(t, g.Relations)

	g, err = s.OpenNodes(ctx, []string{"missing"})
	require.NoError(t, err)
	assert.Empty(t, g.Entities)
	assert.NotNil(t, g.Relations)
}

func testReadGraphOrdering(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{
		{Name: "first", EntityType: "t"},
		{Name: "second", EntityType: "t"},
		{Name: "third", EntityType: "t"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{
		{From: "first", To: "second", RelationType: "r1"},
		{From: "second", To: "third", RelationType: "r2"},
	})
	require.NoError(t, err)

	g, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, entityNames(g.Entities))
	assert.Equal(t, "r2", g.Relations[0].RelationType)
	assert.Equal(t, "r1", g.Relations[1].RelationType)

	// Mutating observations moves an entity to the front.
	_, err = s.AddObservations(ctx, []apptype.ObservationAddition{{EntityName: "first", Contents: []string{"touched"}}})
	require.NoError(t, err)
	g, err = s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third", "second"}, entityNames(g.Entities))

	require.NoError(t, s.DeleteObservations(ctx, []apptype.ObservationDeletion{{EntityName: "second", Observations: []string{"absent"}}}))
	g, err = s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third", "second"}, entityNames(g.Entities))
}

func testSurvivesRestart(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()

	b, err := open()
	require.NoError(t, err)
	s := store.New(b)
	_, err = s.CreateEntities(ctx, []apptype.EntityInput{{Name: "Alice", EntityType: "person", Observations: []string{"likes tea"}}})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{{From: "Alice", To: "Bob", RelationType: "knows"}})
	require.NoError(t, err)
	before, err := s.ReadGraph(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.ReadGraph(ctx)
	require.ErrorIs(t, err, store.ErrNotInitialized)

	reopened := openStore(t, open)
	g, err := reopened.OpenNodes(ctx, []string{"Alice"})
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	assert.Equal(t, "person", g.Entities[0].EntityType)
	assert.Equal(t, []string{"likes tea"}, g.Entities[0].Observations)

	after, err := reopened.ReadGraph(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("graph differs after restart (-before +after):\n%s", diff)
	}
}

func testScenario(t *testing.T, open func() (store.Backend, error)) {
	ctx := context.Background()
	s := openStore(t, open)

	_, err := s.CreateEntities(ctx, []apptype.EntityInput{{Name: "A", EntityType: "t", Observations: []string{"x"}}})
	require.NoError(t, err)
	_, err = s.CreateEntities(ctx, []apptype.EntityInput{{Name: "B", EntityType: "t", Observations: []string{}}})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, []apptype.RelationInput{{From: "A", To: "B", RelationType: "knows"}})
	require.NoError(t, err)

	g, err := s.SearchNodes(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, entityNames(g.Entities))
	assert.Equal(t, []apptype.RelationInput{{From: "A", To: "B", RelationType: "knows"}}, relationKeys(g.Relations))

	require.NoError(t, s.DeleteEntities(ctx, []string{"A"}))
	g, err = s.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, entityNames(g.Entities))
	assert.Empty(t, g.Relations)
	assert.Equal(t, []string{}, g.Entities[0].Observations)
}
