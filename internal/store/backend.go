package store

import (
	"context"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
)

// Backend is the persistence capability the Store depends on. Every mutating
// method must be durable when it returns. Implementations need not be safe
// for overlapping writers; the Store serializes mutations.
type Backend interface {
	// UpsertEntity stores e, replacing any entity with the same name.
	UpsertEntity(ctx context.Context, e apptype.Entity) error
	// GetEntity returns nil, nil when no entity has the given name.
	GetEntity(ctx context.Context, name string) (*apptype.Entity, error)
	// UpdateObservations overwrites the observation list and updatedAt of an
	// existing entity. It reports false when the entity does not exist.
	UpdateObservations(ctx context.Context, name string, observations []string, updatedAt string) (bool, error)
	// DeleteEntity removes every relation whose from or to is name, then the
	// entity itself. Absent names are not an error.
	DeleteEntity(ctx context.Context, name string) error
	// UpsertRelation stores r, replacing any relation with the same triple.
	UpsertRelation(ctx context.Context, r apptype.Relation) error
	// DeleteRelation removes the relation with the exact triple, if any.
	DeleteRelation(ctx context.Context, from, to, relationType string) error
	// ListEntities returns all entities in storage order, oldest write first.
	ListEntities(ctx context.Context) ([]apptype.Entity, error)
	// ListRelations returns all relations in storage order, oldest write first.
	ListRelations(ctx context.Context) ([]apptype.Relation, error)
	Close() error
}

// Searcher is implemented by backends that can narrow search candidates
// before matching. The returned sets must be a superset of what the
// substring matcher accepts, and must keep storage order.
type Searcher interface {
	SearchCandidates(ctx context.Context, query string) ([]apptype.Entity, []apptype.Relation, error)
}

// Pinger is implemented by backends with a cheap liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Namer is implemented by backends that report a short descriptive name.
type Namer interface {
	Name() string
}

// Locator is implemented by backends that can name where they store data.
// The result must not carry credentials.
type Locator interface {
	Location() string
}

// PoolStatser is implemented by backends with a connection pool.
type PoolStatser interface {
	PoolStats() (inUse, idle int)
}
