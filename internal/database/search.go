package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
)

// Rows holding any byte outside printable ASCII are always returned as
// candidates: Unicode case folding can map them onto ASCII (e.g. the Kelvin
// sign), which SQLite's ASCII-only LIKE would miss.
const nonASCIIGlob = "'*[^ -~]*'"

var (
	entityCandidatesSQL = "SELECT " + entityColumns + " FROM entities" +
		" WHERE name LIKE ? OR entity_type LIKE ? OR observations LIKE ?" +
		" OR (name || entity_type || observations) GLOB " + nonASCIIGlob +
		" ORDER BY rowid"
	relationCandidatesSQL = "SELECT " + relationColumns + " FROM relations" +
		" WHERE from_entity LIKE ? OR to_entity LIKE ? OR relation_type LIKE ?" +
		" OR (from_entity || to_entity || relation_type) GLOB " + nonASCIIGlob +
		" ORDER BY rowid"
)

// likePushdownSafe reports whether query can be pushed into a LIKE pattern
// such that the SQL result is a superset of the in-process matcher. It
// rules out LIKE wildcards, characters JSON escapes inside the observations
// column, and anything outside printable ASCII.
func likePushdownSafe(query string) bool {
	if query == "" {
		return false
	}
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c < 0x20 || c > 0x7e {
			return false
		}
		switch c {
		case '%', '_', '\\', '"':
			return false
		}
	}
	return true
}

// SearchCandidates implements store.Searcher. Results are a superset of the
// matches and are re-checked by the caller.
func (dm *DBManager) SearchCandidates(ctx context.Context, query string) ([]apptype.Entity, []apptype.Relation, error) {
	if !likePushdownSafe(query) {
		entities, err := dm.ListEntities(ctx)
		if err != nil {
			return nil, nil, err
		}
		relations, err := dm.ListRelations(ctx)
		if err != nil {
			return nil, nil, err
		}
		return entities, relations, nil
	}

	done := metrics.TimeOp("db_search_candidates")
	success := false
	defer func() { done(success) }()

	pattern := "%" + strings.ToLower(query) + "%"

	stmt, err := dm.getPreparedStmt(ctx, entityCandidatesSQL)
	if err != nil {
		return nil, nil, err
	}
	rows, err := stmt.QueryContext(ctx, pattern, pattern, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search entities: %w", err)
	}
	entities, err := scanEntities(rows)
	if err != nil {
		return nil, nil, err
	}

	stmt, err = dm.getPreparedStmt(ctx, relationCandidatesSQL)
	if err != nil {
		return nil, nil, err
	}
	rows, err = stmt.QueryContext(ctx, pattern, pattern, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search relations: %w", err)
	}
	relations, err := scanRelations(rows)
	if err != nil {
		return nil, nil, err
	}
	success = true
	return entities, relations, nil
}
