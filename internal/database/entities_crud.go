package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
)

const entityColumns = "id, name, entity_type, observations, created_at, updated_at"

// encodeObservations renders observations as a JSON array without HTML
// escaping so the stored text stays greppable with LIKE.
func encodeObservations(observations []string) (string, error) {
	if observations == nil {
		observations = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(observations); err != nil {
		return "", fmt.Errorf("failed to encode observations: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func decodeObservations(raw string) ([]string, error) {
	observations := []string{}
	if strings.TrimSpace(raw) == "" {
		return observations, nil
	}
	if err := json.Unmarshal([]byte(raw), &observations); err != nil {
		return nil, fmt.Errorf("failed to decode observations: %w", err)
	}
	if observations == nil {
		observations = []string{}
	}
	return observations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (apptype.Entity, error) {
	var (
		e   apptype.Entity
		raw string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.EntityType, &raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return e, err
	}
	obs, err := decodeObservations(raw)
	if err != nil {
		return e, fmt.Errorf("entity %q: %w", e.Name, err)
	}
	e.Observations = obs
	return e, nil
}

func scanEntities(rows *sql.Rows) ([]apptype.Entity, error) {
	defer rows.Close()
	entities := make([]apptype.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

// UpsertEntity implements store.Backend. INSERT OR REPLACE deletes the row
// with the same name, so the new row also takes the newest rowid.
func (dm *DBManager) UpsertEntity(ctx context.Context, e apptype.Entity) error {
	done := metrics.TimeOp("db_upsert_entity")
	success := false
	defer func() { done(success) }()

	obs, err := encodeObservations(e.Observations)
	if err != nil {
		return err
	}
	stmt, err := dm.getPreparedStmt(ctx,
		"INSERT OR REPLACE INTO entities ("+entityColumns+") VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, e.ID, e.Name, e.EntityType, obs, e.CreatedAt, e.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert entity %q: %w", e.Name, err)
	}
	success = true
	return nil
}

// GetEntity implements store.Backend.
func (dm *DBManager) GetEntity(ctx context.Context, name string) (*apptype.Entity, error) {
	done := metrics.TimeOp("db_get_entity")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx, "SELECT "+entityColumns+" FROM entities WHERE name = ?")
	if err != nil {
		return nil, err
	}
	e, err := scanEntity(stmt.QueryRowContext(ctx, name))
	if errors.Is(err, sql.ErrNoRows) {
		success = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %q: %w", name, err)
	}
	success = true
	return &e, nil
}

// UpdateObservations implements store.Backend.
func (dm *DBManager) UpdateObservations(ctx context.Context, name string, observations []string, updatedAt string) (bool, error) {
	done := metrics.TimeOp("db_update_observations")
	success := false
	defer func() { done(success) }()

	obs, err := encodeObservations(observations)
	if err != nil {
		return false, err
	}
	stmt, err := dm.getPreparedStmt(ctx, "UPDATE entities SET observations = ?, updated_at = ? WHERE name = ?")
	if err != nil {
		return false, err
	}
	result, err := stmt.ExecContext(ctx, obs, updatedAt, name)
	if err != nil {
		return false, fmt.Errorf("failed to update observations for %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	success = true
	return n > 0, nil
}

// DeleteEntity implements store.Backend. Incident relations and the entity
// are removed in one transaction.
func (dm *DBManager) DeleteEntity(ctx context.Context, name string) error {
	done := metrics.TimeOp("db_delete_entity")
	success := false
	defer func() { done(success) }()

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM relations WHERE from_entity = ? OR to_entity = ?", name, name); err != nil {
		return fmt.Errorf("failed to delete relations for %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete entity %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	success = true
	return nil
}

// ListEntities implements store.Backend.
func (dm *DBManager) ListEntities(ctx context.Context) ([]apptype.Entity, error) {
	done := metrics.TimeOp("db_list_entities")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx, "SELECT "+entityColumns+" FROM entities ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	entities, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	success = true
	return entities, nil
}
