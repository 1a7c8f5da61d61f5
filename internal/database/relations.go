package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
)

const relationColumns = "id, from_entity, to_entity, relation_type, created_at"

func scanRelations(rows *sql.Rows) ([]apptype.Relation, error) {
	defer rows.Close()
	relations := make([]apptype.Relation, 0)
	for rows.Next() {
		var r apptype.Relation
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.RelationType, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return relations, nil
}

// UpsertRelation implements store.Backend.
func (dm *DBManager) UpsertRelation(ctx context.Context, r apptype.Relation) error {
	done := metrics.TimeOp("db_upsert_relation")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx,
		"INSERT OR REPLACE INTO relations ("+relationColumns+") VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, r.ID, r.From, r.To, r.RelationType, r.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert relation (%s -> %s): %w", r.From, r.To, err)
	}
	success = true
	return nil
}

// DeleteRelation implements store.Backend.
func (dm *DBManager) DeleteRelation(ctx context.Context, from, to, relationType string) error {
	done := metrics.TimeOp("db_delete_relation")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx,
		"DELETE FROM relations WHERE from_entity = ? AND to_entity = ? AND relation_type = ?")
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, from, to, relationType); err != nil {
		return fmt.Errorf("failed to delete relation (%s -> %s): %w", from, to, err)
	}
	success = true
	return nil
}

// ListRelations implements store.Backend.
func (dm *DBManager) ListRelations(ctx context.Context) ([]apptype.Relation, error) {
	done := metrics.TimeOp("db_list_relations")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx, "SELECT "+relationColumns+" FROM relations ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	relations, err := scanRelations(rows)
	if err != nil {
		return nil, err
	}
	success = true
	return relations, nil
}
