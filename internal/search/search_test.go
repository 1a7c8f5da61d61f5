package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
)

func fixture() ([]apptype.Entity, []apptype.Relation) {
	entities := []apptype.Entity{
		{Name: "Alice", EntityType: "person", Observations: []string{"Likes Tea"}},
		{Name: "Bob", EntityType: "person", Observations: []string{}},
		{Name: "Acme", EntityType: "company", Observations: []string{"founded 1999"}},
	}
	relations := []apptype.Relation{
		{From: "Alice", To: "Acme", RelationType: "works_at"},
		{From: "Bob", To: "Carol", RelationType: "knows"},
		{From: "Dave", To: "Erin", RelationType: "MANAGES"},
	}
	return entities, relations
}

func names(es []apptype.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func TestIndependentFilter(t *testing.T) {
	entities, relations := fixture()
	s := New(ModeIndependent)

	tests := []struct {
		query     string
		entities  []string
		relations []apptype.RelationInput
	}{
		{query: "tea", entities: []string{"Alice"}},
		{query: "PERSON", entities: []string{"Alice", "Bob"}},
		{query: "1999", entities: []string{"Acme"}},
		{
			query:     "manages",
			entities:  []string{},
			relations: []apptype.RelationInput{{From: "Dave", To: "Erin", RelationType: "MANAGES"}},
		},
		{
			// relation endpoints match independently of the entity set
			query:     "carol",
			entities:  []string{},
			relations: []apptype.RelationInput{{From: "Bob", To: "Carol", RelationType: "knows"}},
		},
		{query: "zzz", entities: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := s.Filter(tt.query, entities, relations)
			if diff := cmp.Diff(tt.entities, names(got.Entities)); diff != "" {
				t.Fatalf("entities mismatch (-want +got):\n%s", diff)
			}
			keys := make([]apptype.RelationInput, 0, len(got.Relations))
			for _, r := range got.Relations {
				keys = append(keys, r.Key())
			}
			want := tt.relations
			if want == nil {
				want = []apptype.RelationInput{}
			}
			if diff := cmp.Diff(want, keys); diff != "" {
				t.Fatalf("relations mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEmptyQueryMatchesEverything(t *testing.T) {
	entities, relations := fixture()
	for _, mode := range []Mode{ModeIndependent, ModeIncident} {
		got := New(mode).Filter("", entities, relations)
		assert.Len(t, got.Entities, len(entities), mode)
		if mode == ModeIndependent {
			assert.Len(t, got.Relations, len(relations))
		}
	}
}

func TestIncidentFilterDropsDanglingMatches(t *testing.T) {
	entities, relations := fixture()
	got := New(ModeIncident).Filter("a", entities, relations)

	assert.Equal(t, []string{"Alice", "Acme"}, names(got.Entities))
	// Bob->Carol and Dave->Erin match "a" but touch no matched entity.
	require.Len(t, got.Relations, 1)
	assert.Equal(t, "works_at", got.Relations[0].RelationType)
}

func TestIncidentFilterReturnsRelationsOfMatchedEntities(t *testing.T) {
	entities, relations := fixture()
	got := New(ModeIncident).Filter("tea", entities, relations)

	assert.Equal(t, []string{"Alice"}, names(got.Entities))
	// works_at does not contain "tea" but touches Alice.
	require.Len(t, got.Relations, 1)
	assert.Equal(t, apptype.RelationInput{From: "Alice", To: "Acme", RelationType: "works_at"}, got.Relations[0].Key())
}

func TestMatchesRelationText(t *testing.T) {
	assert.True(t, MatchesRelationText(New(ModeIndependent)))
	assert.False(t, MatchesRelationText(New(ModeIncident)))
}

func TestFilterKeepsInputOrder(t *testing.T) {
	entities := []apptype.Entity{
		{Name: "z-node", EntityType: "t"},
		{Name: "a-node", EntityType: "t"},
	}
	got := New(ModeIndependent).Filter("node", entities, nil)
	assert.Equal(t, []string{"z-node", "a-node"}, names(got.Entities))
	assert.NotNil(t, got.Relations)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeIndependent, m)

	m, err = ParseMode(" Incident ")
	require.NoError(t, err)
	assert.Equal(t, ModeIncident, m)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}

func TestUnicodeCaseFolding(t *testing.T) {
	e := apptype.Entity{Name: "Ärger", EntityType: "Gefühl"}
	assert.True(t, MatchEntity(Normalize("ärger"), e))
	assert.True(t, MatchEntity(Normalize("GEFÜHL"), e))
}
