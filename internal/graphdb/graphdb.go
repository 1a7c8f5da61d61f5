// Package graphdb stores the knowledge graph in Neo4j.
//
// Entities are :MemoryEntity nodes unique on name. Relations are
// :MemoryRelation nodes unique on their (from, to, relationType) key rather
// than native relationships, so an endpoint may be missing. Both carry a
// seq property drawn from a single :MemorySequence counter which defines
// storage order.
package graphdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
)

// Config holds the Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	// Database selects a named database; empty uses the server default.
	Database string
}

// Backend is a store.Backend over a Neo4j driver.
type Backend struct {
	driver   neo4j.DriverWithContext
	uri      string
	database string
}

var constraints = []string{
	"CREATE CONSTRAINT memory_entity_name IF NOT EXISTS FOR (e:MemoryEntity) REQUIRE e.name IS UNIQUE",
	"CREATE CONSTRAINT memory_relation_key IF NOT EXISTS FOR (r:MemoryRelation) REQUIRE r.key IS UNIQUE",
}

// Open connects to Neo4j, verifies connectivity and ensures constraints.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4j URI cannot be empty")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	b := &Backend{driver: driver, uri: cfg.URI, database: cfg.Database}
	for _, c := range constraints {
		if err := b.exec(ctx, c, nil); err != nil {
			_ = driver.Close(ctx)
			return nil, fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return b, nil
}

// Name implements store.Namer.
func (b *Backend) Name() string { return "neo4j" }

// Location implements store.Locator. Credentials travel separately from
// the URI.
func (b *Backend) Location() string { return b.uri }

func (b *Backend) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return b.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: b.database})
}

// exec runs a write query and drains its result so server errors surface.
func (b *Backend) exec(ctx context.Context, query string, params map[string]interface{}) error {
	session := b.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// relationKey encodes the triple as a JSON array, which is injective for
// any field contents, separators included.
func relationKey(from, to, relationType string) string {
	raw, _ := json.Marshal([3]string{from, to, relationType})
	return string(raw)
}

func encodeObservations(observations []string) (string, error) {
	if observations == nil {
		observations = []string{}
	}
	raw, err := json.Marshal(observations)
	if err != nil {
		return "", fmt.Errorf("failed to encode observations: %w", err)
	}
	return string(raw), nil
}

func decodeObservations(raw string) ([]string, error) {
	observations := []string{}
	if raw == "" {
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

const nextSeq = `MERGE (c:MemorySequence {name: 'storage'})
SET c.value = coalesce(c.value, 0) + 1
WITH c.value AS seq
`

// UpsertEntity implements store.Backend.
func (b *Backend) UpsertEntity(ctx context.Context, e apptype.Entity) error {
	done := metrics.TimeOp("db_upsert_entity")
	success := false
	defer func() { done(success) }()

	obs, err := encodeObservations(e.Observations)
	if err != nil {
		return err
	}
	query := nextSeq + `MERGE (e:MemoryEntity {name: $name})
SET e.id = $id, e.entityType = $entityType, e.observations = $observations,
    e.createdAt = $createdAt, e.updatedAt = $updatedAt, e.seq = seq`
	err = b.exec(ctx, query, map[string]interface{}{
		"name":         e.Name,
		"id":           e.ID,
		"entityType":   e.EntityType,
		"observations": obs,
		"createdAt":    e.CreatedAt,
		"updatedAt":    e.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert entity %q: %w", e.Name, err)
	}
	success = true
	return nil
}

const entityReturn = `RETURN e.id AS id, e.name AS name, e.entityType AS entityType,
       e.observations AS observations, e.createdAt AS createdAt, e.updatedAt AS updatedAt`

func entityFromRecord(record *neo4j.Record) (apptype.Entity, error) {
	obs, err := decodeObservations(getStringFromRecord(record, "observations"))
	if err != nil {
		return apptype.Entity{}, err
	}
	return apptype.Entity{
		ID:           getStringFromRecord(record, "id"),
		Name:         getStringFromRecord(record, "name"),
		EntityType:   getStringFromRecord(record, "entityType"),
		Observations: obs,
		CreatedAt:    getStringFromRecord(record, "createdAt"),
		UpdatedAt:    getStringFromRecord(record, "updatedAt"),
	}, nil
}

// GetEntity implements store.Backend.
func (b *Backend) GetEntity(ctx context.Context, name string) (*apptype.Entity, error) {
	done := metrics.TimeOp("db_get_entity")
	success := false
	defer func() { done(success) }()

	session := b.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (e:MemoryEntity {name: $name})\n"+entityReturn, map[string]interface{}{
		"name": name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %q: %w", name, err)
	}
	var found *apptype.Entity
	if result.Next(ctx) {
		e, err := entityFromRecord(result.Record())
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", name, err)
		}
		found = &e
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get entity %q: %w", name, err)
	}
	success = true
	return found, nil
}

// UpdateObservations implements store.Backend.
func (b *Backend) UpdateObservations(ctx context.Context, name string, observations []string, updatedAt string) (bool, error) {
	done := metrics.TimeOp("db_update_observations")
	success := false
	defer func() { done(success) }()

	obs, err := encodeObservations(observations)
	if err != nil {
		return false, err
	}
	session := b.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `MATCH (e:MemoryEntity {name: $name})
SET e.observations = $observations, e.updatedAt = $updatedAt
RETURN count(e) AS matched`, map[string]interface{}{
		"name":         name,
		"observations": obs,
		"updatedAt":    updatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update observations for %q: %w", name, err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update observations for %q: %w", name, err)
	}
	success = true
	return getInt64FromRecord(record, "matched") > 0, nil
}

// DeleteEntity implements store.Backend. Incident relations and the entity
// are removed in one transaction.
func (b *Backend) DeleteEntity(ctx context.Context, name string) error {
	done := metrics.TimeOp("db_delete_entity")
	success := false
	defer func() { done(success) }()

	session := b.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	params := map[string]interface{}{"name": name}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, query := range []string{
			"MATCH (r:MemoryRelation) WHERE r.fromEntity = $name OR r.toEntity = $name DELETE r",
			"MATCH (e:MemoryEntity {name: $name}) DELETE e",
		} {
			result, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete entity %q: %w", name, err)
	}
	success = true
	return nil
}

// UpsertRelation implements store.Backend.
func (b *Backend) UpsertRelation(ctx context.Context, r apptype.Relation) error {
	done := metrics.TimeOp("db_upsert_relation")
	success := false
	defer func() { done(success) }()

	query := nextSeq + `MERGE (r:MemoryRelation {key: $key})
SET r.id = $id, r.fromEntity = $fromEntity, r.toEntity = $toEntity, r.relationType = $relationType,
    r.createdAt = $createdAt, r.seq = seq`
	err := b.exec(ctx, query, map[string]interface{}{
		"key":          relationKey(r.From, r.To, r.RelationType),
		"id":           r.ID,
		"fromEntity":   r.From,
		"toEntity":     r.To,
		"relationType": r.RelationType,
		"createdAt":    r.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert relation (%s -> %s): %w", r.From, r.To, err)
	}
	success = true
	return nil
}

// DeleteRelation implements store.Backend.
func (b *Backend) DeleteRelation(ctx context.Context, from, to, relationType string) error {
	done := metrics.TimeOp("db_delete_relation")
	success := false
	defer func() { done(success) }()

	err := b.exec(ctx, "MATCH (r:MemoryRelation {key: $key}) DELETE r", map[string]interface{}{
		"key": relationKey(from, to, relationType),
	})
	if err != nil {
		return fmt.Errorf("failed to delete relation (%s -> %s): %w", from, to, err)
	}
	success = true
	return nil
}

// ListEntities implements store.Backend.
func (b *Backend) ListEntities(ctx context.Context) ([]apptype.Entity, error) {
	done := metrics.TimeOp("db_list_entities")
	success := false
	defer func() { done(success) }()

	session := b.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (e:MemoryEntity)\n"+entityReturn+"\nORDER BY e.seq", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	entities := make([]apptype.Entity, 0)
	for result.Next(ctx) {
		e, err := entityFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	success = true
	return entities, nil
}

// ListRelations implements store.Backend.
func (b *Backend) ListRelations(ctx context.Context) ([]apptype.Relation, error) {
	done := metrics.TimeOp("db_list_relations")
	success := false
	defer func() { done(success) }()

	session := b.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `MATCH (r:MemoryRelation)
RETURN r.id AS id, r.fromEntity AS fromEntity, r.toEntity AS toEntity, r.relationType AS relationType, r.createdAt AS createdAt
ORDER BY r.seq`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	relations := make([]apptype.Relation, 0)
	for result.Next(ctx) {
		record := result.Record()
		relations = append(relations, apptype.Relation{
			ID:           getStringFromRecord(record, "id"),
			From:         getStringFromRecord(record, "fromEntity"),
			To:           getStringFromRecord(record, "toEntity"),
			RelationType: getStringFromRecord(record, "relationType"),
			CreatedAt:    getStringFromRecord(record, "createdAt"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	success = true
	return relations, nil
}

// Ping implements store.Pinger.
func (b *Backend) Ping(ctx context.Context) error {
	return b.driver.VerifyConnectivity(ctx)
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	return b.driver.Close(context.Background())
}
