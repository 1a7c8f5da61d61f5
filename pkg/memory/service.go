// Package memory is the library-first API over the knowledge graph store,
// for embedding without the MCP transport.
package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
)

// Re-exported data types.
type (
	Entity              = apptype.Entity
	Relation            = apptype.Relation
	GraphResult         = apptype.GraphResult
	Stats               = apptype.Stats
	EntityInput         = apptype.EntityInput
	RelationInput       = apptype.RelationInput
	ObservationAddition = apptype.ObservationAddition
	ObservationDeletion = apptype.ObservationDeletion
	ObservationResult   = apptype.ObservationResult
	ValidationError     = apptype.ValidationError
	BackendError        = store.BackendError
)

// Sentinel errors.
var (
	ErrInvalidArgument = apptype.ErrInvalidArgument
	ErrNotInitialized  = store.ErrNotInitialized
)

// Service provides a library-first API for memory operations without MCP transport.
type Service struct {
	store *store.Store
}

// NewService constructs a Service with the provided config. A nil logger
// discards logs.
func NewService(ctx context.Context, cfg *Config, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	st, err := config.NewStore(ctx, cfg.toInternal(), logger)
	if err != nil {
		return nil, err
	}
	return &Service{store: st}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.store.Close() }

// Backend reports the name of the storage backend in use.
func (s *Service) Backend() string { return s.store.BackendName() }

// CreateEntities creates or replaces entities by name.
func (s *Service) CreateEntities(ctx context.Context, entities []EntityInput) ([]Entity, error) {
	return s.store.CreateEntities(ctx, entities)
}

// AddObservations appends observations to existing entities.
func (s *Service) AddObservations(ctx context.Context, additions []ObservationAddition) ([]ObservationResult, error) {
	return s.store.AddObservations(ctx, additions)
}

func (s *Service) DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error {
	return s.store.DeleteObservations(ctx, deletions)
}

func (s *Service) DeleteEntities(ctx context.Context, names []string) error {
	return s.store.DeleteEntities(ctx, names)
}

// CreateRelations creates or replaces relations by triple.
func (s *Service) CreateRelations(ctx context.Context, relations []RelationInput) ([]Relation, error) {
	return s.store.CreateRelations(ctx, relations)
}

func (s *Service) DeleteRelations(ctx context.Context, relations []RelationInput) error {
	return s.store.DeleteRelations(ctx, relations)
}

// SearchNodes performs a case-insensitive substring search.
func (s *Service) SearchNodes(ctx context.Context, query string) (GraphResult, error) {
	return s.store.SearchNodes(ctx, query)
}

// OpenNodes fetches entities by name with the relations among them.
func (s *Service) OpenNodes(ctx context.Context, names []string) (GraphResult, error) {
	return s.store.OpenNodes(ctx, names)
}

// ReadGraph returns the whole graph, most recently updated first.
func (s *Service) ReadGraph(ctx context.Context) (GraphResult, error) {
	return s.store.ReadGraph(ctx)
}

// Stats summarises the graph.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}
