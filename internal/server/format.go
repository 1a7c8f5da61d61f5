package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
)

func entityNames(entities []apptype.Entity) string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return strings.Join(names, ", ")
}

func relationLine(r apptype.Relation) string {
	return fmt.Sprintf("%s -> %s (%s)", r.From, r.To, r.RelationType)
}

func formatCreatedEntities(entities []apptype.Entity) string {
	return fmt.Sprintf("Created %d entities: %s", len(entities), entityNames(entities))
}

func formatCreatedRelations(relations []apptype.Relation) string {
	lines := make([]string, len(relations))
	for i, r := range relations {
		lines[i] = relationLine(r)
	}
	return fmt.Sprintf("Created %d relations: %s", len(relations), strings.Join(lines, ", "))
}

func formatAddedObservations(results []apptype.ObservationResult) string {
	added := 0
	for _, r := range results {
		added += len(r.AddedObservations)
	}
	return fmt.Sprintf("Added %d observations to %d entities", added, len(results))
}

// formatGraph lists entities and relations under a one-line header.
func formatGraph(header string, g apptype.GraphResult) string {
	var sb strings.Builder
	sb.WriteString(header)
	if len(g.Entities) > 0 {
		sb.WriteString("\n\nEntities:")
		for _, e := range g.Entities {
			fmt.Fprintf(&sb, "\n- %s (%s): %d observations", e.Name, e.EntityType, len(e.Observations))
		}
	}
	if len(g.Relations) > 0 {
		sb.WriteString("\n\nRelations:")
		for _, r := range g.Relations {
			sb.WriteString("\n- " + relationLine(r))
		}
	}
	return sb.String()
}

func formatSearch(query string, g apptype.GraphResult) string {
	header := fmt.Sprintf("Found %d entities and %d relations matching %q", len(g.Entities), len(g.Relations), query)
	return formatGraph(header, g)
}

func formatOpenNodes(g apptype.GraphResult) string {
	if len(g.Entities) == 0 {
		return "No entities found with the specified names."
	}
	var sb strings.Builder
	for i, e := range g.Entities {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s (%s):\n  Observations: %s\n  Created: %s\n  Updated: %s",
			e.Name, e.EntityType, strings.Join(e.Observations, ", "), e.CreatedAt, e.UpdatedAt)
	}
	for _, r := range g.Relations {
		sb.WriteString("\n\n" + relationLine(r))
	}
	return sb.String()
}

// formatOverview summarises the graph by type counts.
func formatOverview(st apptype.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Knowledge Graph Overview:\n- %d entities\n- %d relations", st.TotalEntities, st.TotalRelations)
	writeCounts(&sb, "Entity Types", st.EntityTypes)
	writeCounts(&sb, "Relation Types", st.RelationTypes)
	return sb.String()
}

func writeCounts(sb *strings.Builder, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(sb, "\n%s:", title)
	for _, k := range keys {
		fmt.Fprintf(sb, "\n- %s: %d", k, counts[k])
	}
}
