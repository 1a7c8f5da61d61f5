package stats

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
)

func TestCompute(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	graph := apptype.GraphResult{
		Entities: []apptype.Entity{
			{Name: "a", EntityType: "person", UpdatedAt: "2025-01-01T00:00:00.000000002Z"},
			{Name: "b", EntityType: "person", UpdatedAt: "2025-01-01T00:00:00.000000001Z"},
			{Name: "c", EntityType: "project", UpdatedAt: "2024-12-31T00:00:00.000000000Z"},
		},
		Relations: []apptype.Relation{
			{From: "a", To: "c", RelationType: "works_on", CreatedAt: "2025-01-01T00:00:00.000000003Z"},
		},
	}

	got := Compute(graph, now)
	want := apptype.Stats{
		TotalEntities:  3,
		TotalRelations: 1,
		EntityTypes:    map[string]int{"person": 2, "project": 1},
		RelationTypes:  map[string]int{"works_on": 1},
		LastUpdated:    "2025-01-01T00:00:00.000000003Z",
		GeneratedAt:    "2025-01-02T03:04:05.000000000Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeEmptyGraph(t *testing.T) {
	got := Compute(apptype.NewGraphResult(nil, nil), time.Unix(0, 0))
	assert.Zero(t, got.TotalEntities)
	assert.Zero(t, got.TotalRelations)
	assert.NotNil(t, got.EntityTypes)
	assert.NotNil(t, got.RelationTypes)
	assert.Empty(t, got.LastUpdated)
	assert.Equal(t, "1970-01-01T00:00:00.000000000Z", got.GeneratedAt)
}
