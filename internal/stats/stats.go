// Package stats derives read-only aggregates from a graph snapshot.
package stats

import (
	"time"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
)

// Compute summarizes graph as of now. The input is not modified.
func Compute(graph apptype.GraphResult, now time.Time) apptype.Stats {
	st := apptype.Stats{
		TotalEntities:  len(graph.Entities),
		TotalRelations: len(graph.Relations),
		EntityTypes:    make(map[string]int),
		RelationTypes:  make(map[string]int),
		GeneratedAt:    apptype.FormatTime(now),
	}
	for _, e := range graph.Entities {
		st.EntityTypes[e.EntityType]++
		if e.UpdatedAt > st.LastUpdated {
			st.LastUpdated = e.UpdatedAt
		}
	}
	for _, r := range graph.Relations {
		st.RelationTypes[r.RelationType]++
		if r.CreatedAt > st.LastUpdated {
			st.LastUpdated = r.CreatedAt
		}
	}
	return st
}
