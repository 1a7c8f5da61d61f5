// Package store implements the knowledge-graph operations on top of a
// pluggable persistence Backend.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/search"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/stats"
)

// Store owns the graph operations. All state lives in the backend; the
// store keeps nothing that could diverge from storage across restarts.
type Store struct {
	mu       sync.RWMutex
	backend  Backend
	closed   bool
	clock    func() time.Time
	last     time.Time
	newID    func() string
	strategy search.Strategy
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for createdAt/updatedAt.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDGenerator sets the generator for entity and relation ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithSearchStrategy overrides the default independent matching.
func WithSearchStrategy(strategy search.Strategy) Option {
	return func(s *Store) { s.strategy = strategy }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store over backend. A nil backend yields a store whose
// operations fail with ErrNotInitialized.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		clock:    time.Now,
		newID:    uuid.NewString,
		strategy: search.New(search.ModeIndependent),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns where the backend keeps its data, or "" when the backend
// does not say.
func (s *Store) Location() string {
	if s == nil {
		return ""
	}
	if l, ok := s.backend.(Locator); ok {
		return l.Location()
	}
	return ""
}

// BackendName returns the backend's self-reported name, or "unknown".
func (s *Store) BackendName() string {
	if s == nil {
		return "unknown"
	}
	if n, ok := s.backend.(Namer); ok {
		return n.Name()
	}
	return "unknown"
}

func (s *Store) lock() (func(), error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	s.mu.Lock()
	if s.closed || s.backend == nil {
		s.mu.Unlock()
		return nil, ErrNotInitialized
	}
	return s.mu.Unlock, nil
}

func (s *Store) rlock() (func(), error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	s.mu.RLock()
	if s.closed || s.backend == nil {
		s.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	return s.mu.RUnlock, nil
}

// now returns a timestamp strictly later than any previously issued one.
// Callers must hold the write lock.
func (s *Store) now() string {
	t := s.clock().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return apptype.FormatTime(t)
}

func (s *Store) fail(op string, err error) error {
	s.logger.Error("backend operation failed", zap.String("op", op), zap.Error(err))
	return &BackendError{Op: op, Err: err}
}

// CreateEntities upserts each entity by name. A re-created entity gets a
// fresh id, the given observation list and new timestamps. Results follow
// input order.
func (s *Store) CreateEntities(ctx context.Context, inputs []apptype.EntityInput) ([]apptype.Entity, error) {
	if err := apptype.ValidateEach("entities", inputs); err != nil {
		return nil, err
	}
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]apptype.Entity, 0, len(inputs))
	for _, in := range inputs {
		ts := s.now()
		e := apptype.Entity{
			ID:           s.newID(),
			Name:         in.Name,
			EntityType:   in.EntityType,
			Observations: cloneStrings(in.Observations),
			CreatedAt:    ts,
			UpdatedAt:    ts,
		}
		if err := s.backend.UpsertEntity(ctx, e); err != nil {
			return nil, s.fail("create_entities", err)
		}
		out = append(out, e)
	}
	s.logger.Debug("entities created", zap.Int("count", len(out)))
	return out, nil
}

// AddObservations appends contents to existing entities. Duplicates are kept
// as given. Entities that do not exist are skipped and absent from the result.
func (s *Store) AddObservations(ctx context.Context, additions []apptype.ObservationAddition) ([]apptype.ObservationResult, error) {
	if err := apptype.ValidateEach("observations", additions); err != nil {
		return nil, err
	}
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	results := make([]apptype.ObservationResult, 0, len(additions))
	for _, add := range additions {
		existing, err := s.backend.GetEntity(ctx, add.EntityName)
		if err != nil {
			return nil, s.fail("add_observations", err)
		}
		if existing == nil {
			s.logger.Debug("skipping observations for unknown entity", zap.String("entity", add.EntityName))
			continue
		}
		added := cloneStrings(add.Contents)
		if len(added) > 0 {
			obs := append(cloneStrings(existing.Observations), added...)
			ok, err := s.backend.UpdateObservations(ctx, existing.Name, obs, s.now())
			if err != nil {
				return nil, s.fail("add_observations", err)
			}
			if !ok {
				continue
			}
		}
		results = append(results, apptype.ObservationResult{EntityName: existing.Name, AddedObservations: added})
	}
	return results, nil
}

// DeleteObservations removes every exact occurrence of the listed strings.
// Unknown entities and observations are ignored.
func (s *Store) DeleteObservations(ctx context.Context, deletions []apptype.ObservationDeletion) error {
	if err := apptype.ValidateEach("deletions", deletions); err != nil {
		return err
	}
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	for _, del := range deletions {
		existing, err := s.backend.GetEntity(ctx, del.EntityName)
		if err != nil {
			return s.fail("delete_observations", err)
		}
		if existing == nil || len(del.Observations) == 0 {
			continue
		}
		kept := slices.DeleteFunc(cloneStrings(existing.Observations), func(o string) bool {
			return slices.Contains(del.Observations, o)
		})
		if len(kept) == len(existing.Observations) {
			continue
		}
		if _, err := s.backend.UpdateObservations(ctx, existing.Name, kept, s.now()); err != nil {
			return s.fail("delete_observations", err)
		}
	}
	return nil
}

// DeleteEntities deletes each named entity together with every relation that
// references it. Missing names are a no-op.
func (s *Store) DeleteEntities(ctx context.Context, names []string) error {
	if err := apptype.ValidateNames("entityNames", names); err != nil {
		return err
	}
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	for _, name := range names {
		if err := s.backend.DeleteEntity(ctx, name); err != nil {
			return s.fail("delete_entities", err)
		}
	}
	s.logger.Debug("entities deleted", zap.Int("count", len(names)))
	return nil
}

// CreateRelations upserts each relation by (from, to, relationType).
// Endpoints are not required to exist.
func (s *Store) CreateRelations(ctx context.Context, inputs []apptype.RelationInput) ([]apptype.Relation, error) {
	if err := apptype.ValidateEach("relations", inputs); err != nil {
		return nil, err
	}
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]apptype.Relation, 0, len(inputs))
	for _, in := range inputs {
		r := apptype.Relation{
			ID:           s.newID(),
			From:         in.From,
			To:           in.To,
			RelationType: in.RelationType,
			CreatedAt:    s.now(),
		}
		if err := s.backend.UpsertRelation(ctx, r); err != nil {
			return nil, s.fail("create_relations", err)
		}
		out = append(out, r)
	}
	s.logger.Debug("relations created", zap.Int("count", len(out)))
	return out, nil
}

// DeleteRelations deletes relations by exact triple. Absent triples are a no-op.
func (s *Store) DeleteRelations(ctx context.Context, inputs []apptype.RelationInput) error {
	if err := apptype.ValidateEach("relations", inputs); err != nil {
		return err
	}
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	for _, in := range inputs {
		if err := s.backend.DeleteRelation(ctx, in.From, in.To, in.RelationType); err != nil {
			return s.fail("delete_relations", err)
		}
	}
	return nil
}

// SearchNodes returns entities and relations matching query. An empty query
// matches everything.
func (s *Store) SearchNodes(ctx context.Context, query string) (apptype.GraphResult, error) {
	unlock, err := s.rlock()
	if err != nil {
		return apptype.GraphResult{}, err
	}
	defer unlock()

	var (
		entities  []apptype.Entity
		relations []apptype.Relation
	)
	if sr, ok := s.backend.(Searcher); ok && query != "" {
		entities, relations, err = sr.SearchCandidates(ctx, query)
		if err != nil {
			return apptype.GraphResult{}, s.fail("search_nodes", err)
		}
		if !search.MatchesRelationText(s.strategy) {
			relations, err = s.backend.ListRelations(ctx)
			if err != nil {
				return apptype.GraphResult{}, s.fail("search_nodes", err)
			}
		}
	} else {
		entities, relations, err = s.listAll(ctx)
		if err != nil {
			return apptype.GraphResult{}, s.fail("search_nodes", err)
		}
	}
	return s.strategy.Filter(query, entities, relations), nil
}

// OpenNodes fetches entities by exact name in request order, dropping missing
// and repeated names. Relations between the returned entities are included.
func (s *Store) OpenNodes(ctx context.Context, names []string) (apptype.GraphResult, error) {
	unlock, err := s.rlock()
	if err != nil {
		return apptype.GraphResult{}, err
	}
	defer unlock()

	seen := make(map[string]struct{}, len(names))
	entities := make([]apptype.Entity, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		e, err := s.backend.GetEntity(ctx, name)
		if err != nil {
			return apptype.GraphResult{}, s.fail("open_nodes", err)
		}
		if e != nil {
			entities = append(entities, *e)
		}
	}
	if len(entities) == 0 {
		return apptype.NewGraphResult(entities, nil), nil
	}

	found := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		found[e.Name] = struct{}{}
	}
	all, err := s.backend.ListRelations(ctx)
	if err != nil {
		return apptype.GraphResult{}, s.fail("open_nodes", err)
	}
	relations := make([]apptype.Relation, 0)
	for _, r := range all {
		_, fromOK := found[r.From]
		_, toOK := found[r.To]
		if fromOK && toOK {
			relations = append(relations, r)
		}
	}
	return apptype.NewGraphResult(entities, relations), nil
}

// ReadGraph returns the whole graph: entities most recently updated first,
// relations most recently created first.
func (s *Store) ReadGraph(ctx context.Context) (apptype.GraphResult, error) {
	unlock, err := s.rlock()
	if err != nil {
		return apptype.GraphResult{}, err
	}
	defer unlock()
	return s.readGraph(ctx)
}

func (s *Store) readGraph(ctx context.Context) (apptype.GraphResult, error) {
	entities, relations, err := s.listAll(ctx)
	if err != nil {
		return apptype.GraphResult{}, s.fail("read_graph", err)
	}
	// Reverse first so equal timestamps keep the later write in front.
	slices.Reverse(entities)
	slices.Reverse(relations)
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].UpdatedAt > entities[j].UpdatedAt })
	sort.SliceStable(relations, func(i, j int) bool { return relations[i].CreatedAt > relations[j].CreatedAt })
	return apptype.NewGraphResult(entities, relations), nil
}

// Stats computes aggregate counts from the current graph.
func (s *Store) Stats(ctx context.Context) (apptype.Stats, error) {
	unlock, err := s.rlock()
	if err != nil {
		return apptype.Stats{}, err
	}
	defer unlock()
	graph, err := s.readGraph(ctx)
	if err != nil {
		return apptype.Stats{}, err
	}
	return stats.Compute(graph, s.clock()), nil
}

// Ping checks the backend when it supports probing.
func (s *Store) Ping(ctx context.Context) error {
	unlock, err := s.rlock()
	if err != nil {
		return err
	}
	defer unlock()
	if p, ok := s.backend.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return &BackendError{Op: "ping", Err: err}
		}
	}
	return nil
}

// PoolStats reports connection pool usage. ok is false when the store is
// closed or the backend has no pool.
func (s *Store) PoolStats() (inUse, idle int, ok bool) {
	unlock, err := s.rlock()
	if err != nil {
		return 0, 0, false
	}
	defer unlock()
	p, ok := s.backend.(PoolStatser)
	if !ok {
		return 0, 0, false
	}
	inUse, idle = p.PoolStats()
	return inUse, idle, true
}

// Close waits for in-flight operations, then closes the backend. Later calls
// on the store return ErrNotInitialized. Closing twice is a no-op.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.backend == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	if err := s.backend.Close(); err != nil {
		return &BackendError{Op: "close", Err: err}
	}
	s.logger.Debug("memory store closed")
	return nil
}

func (s *Store) listAll(ctx context.Context) ([]apptype.Entity, []apptype.Relation, error) {
	entities, err := s.backend.ListEntities(ctx)
	if err != nil {
		return nil, nil, err
	}
	relations, err := s.backend.ListRelations(ctx)
	if err != nil {
		return nil, nil, err
	}
	return entities, relations, nil
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
