package database

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/search"
)

// FuzzSearchCandidatesSuperset checks that the SQL prefilter never drops a
// row the in-process matcher accepts.
func FuzzSearchCandidatesSuperset(f *testing.F) {
	f.Add("alice", "person", "likes tea", "TEA")
	f.Add("100%", "pct", "o_b", "%")
	f.Add("\u212Aelvin", "unit", "cold", "kelvin")
	f.Add("Zoë", "name", `say "hi"`, "hi")
	f.Add("x", "y", "line\nbreak", "nbreak")

	cfg := NewConfig()
	cfg.URL = "file:fuzzdb?mode=memory&cache=shared"
	db, err := NewDBManager(cfg)
	if err != nil {
		f.Fatalf("NewDBManager: %v", err)
	}
	f.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	f.Fuzz(func(t *testing.T, name, entityType, observation, query string) {
		for _, s := range []string{name, entityType, observation, query} {
			if !utf8.ValidString(s) || strings.ContainsRune(s, 0) {
				t.Skip()
			}
		}
		if _, err := db.db.ExecContext(ctx, "DELETE FROM entities"); err != nil {
			t.Fatal(err)
		}
		e := apptype.Entity{ID: "1", Name: name, EntityType: entityType, Observations: []string{observation}}
		if err := db.UpsertEntity(ctx, e); err != nil {
			t.Fatal(err)
		}
		entities, _, err := db.SearchCandidates(ctx, query)
		if err != nil {
			t.Fatal(err)
		}
		if search.MatchEntity(search.Normalize(query), e) && len(entities) != 1 {
			t.Fatalf("query %q matches %+v but was not a candidate", query, e)
		}
	})
}
