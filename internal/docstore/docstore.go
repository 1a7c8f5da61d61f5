// Package docstore persists the knowledge graph as a single JSON document
// that is rewritten wholesale on every mutation.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/multierr"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
)

// ErrClosed is returned by operations on a closed Backend.
var ErrClosed = errors.New("docstore: closed")

// Document is the on-disk layout.
type Document struct {
	Entities  []apptype.Entity   `json:"entities"`
	Relations []apptype.Relation `json:"relations"`
}

func (d Document) clone() Document {
	out := Document{
		Entities:  make([]apptype.Entity, len(d.Entities)),
		Relations: slices.Clone(d.Relations),
	}
	for i, e := range d.Entities {
		e.Observations = slices.Clone(e.Observations)
		out.Entities[i] = e
	}
	if out.Relations == nil {
		out.Relations = []apptype.Relation{}
	}
	return out
}

// Backend keeps the document in memory and rewrites the file after each
// change. The in-memory copy only advances once the file write succeeded.
type Backend struct {
	path   string
	mu     sync.RWMutex
	doc    Document
	closed bool
}

// Open loads path, treating a missing or empty file as an empty graph.
func Open(path string) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("docstore: empty file path")
	}
	doc, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Backend{path: path, doc: doc}, nil
}

// Name implements store.Namer.
func (b *Backend) Name() string { return "json" }

// Location implements store.Locator.
func (b *Backend) Location() string { return b.path }

func load(path string) (Document, error) {
	done := metrics.TimeOp("db_doc_load")
	success := false
	defer func() { done(success) }()

	doc := Document{Entities: []apptype.Entity{}, Relations: []apptype.Relation{}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		success = true
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read memory file %s: %w", path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		success = true
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode memory file %s: %w", path, err)
	}
	if doc.Entities == nil {
		doc.Entities = []apptype.Entity{}
	}
	if doc.Relations == nil {
		doc.Relations = []apptype.Relation{}
	}
	for i := range doc.Entities {
		if doc.Entities[i].Observations == nil {
			doc.Entities[i].Observations = []string{}
		}
	}
	success = true
	return doc, nil
}

// writeFile replaces path atomically: encode to a sibling temp file, fsync,
// close, rename. The temp file is removed on every failure path.
func writeFile(path string, doc Document) (err error) {
	done := metrics.TimeOp("db_doc_write")
	defer func() { done(err == nil) }()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			err = multierr.Append(err, tmp.Close())
		}
		if err != nil {
			if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = multierr.Append(err, rmErr)
			}
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode memory document: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync memory file: %w", err)
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close memory file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace memory file: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the document and commits it once written.
func (b *Backend) mutate(fn func(*Document) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	next := b.doc.clone()
	if !fn(&next) {
		return nil
	}
	if err := writeFile(b.path, next); err != nil {
		return err
	}
	b.doc = next
	return nil
}

func (b *Backend) view(fn func(*Document)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	fn(&b.doc)
	return nil
}

func indexEntity(doc *Document, name string) int {
	return slices.IndexFunc(doc.Entities, func(e apptype.Entity) bool { return e.Name == name })
}

func indexRelation(doc *Document, from, to, relationType string) int {
	return slices.IndexFunc(doc.Relations, func(r apptype.Relation) bool {
		return r.From == from && r.To == to && r.RelationType == relationType
	})
}

// UpsertEntity implements store.Backend. The replaced record moves to the end
// of storage order.
func (b *Backend) UpsertEntity(_ context.Context, e apptype.Entity) error {
	e.Observations = slices.Clone(e.Observations)
	if e.Observations == nil {
		e.Observations = []string{}
	}
	return b.mutate(func(doc *Document) bool {
		if i := indexEntity(doc, e.Name); i >= 0 {
			doc.Entities = slices.Delete(doc.Entities, i, i+1)
		}
		doc.Entities = append(doc.Entities, e)
		return true
	})
}

// GetEntity implements store.Backend.
func (b *Backend) GetEntity(_ context.Context, name string) (*apptype.Entity, error) {
	var out *apptype.Entity
	err := b.view(func(doc *Document) {
		if i := indexEntity(doc, name); i >= 0 {
			e := doc.Entities[i]
			e.Observations = slices.Clone(e.Observations)
			out = &e
		}
	})
	return out, err
}

// UpdateObservations implements store.Backend.
func (b *Backend) UpdateObservations(_ context.Context, name string, observations []string, updatedAt string) (bool, error) {
	found := false
	err := b.mutate(func(doc *Document) bool {
		i := indexEntity(doc, name)
		if i < 0 {
			return false
		}
		found = true
		obs := slices.Clone(observations)
		if obs == nil {
			obs = []string{}
		}
		doc.Entities[i].Observations = obs
		doc.Entities[i].UpdatedAt = updatedAt
		return true
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// DeleteEntity implements store.Backend.
func (b *Backend) DeleteEntity(_ context.Context, name string) error {
	return b.mutate(func(doc *Document) bool {
		before := len(doc.Entities) + len(doc.Relations)
		doc.Relations = slices.DeleteFunc(doc.Relations, func(r apptype.Relation) bool {
			return r.From == name || r.To == name
		})
		doc.Entities = slices.DeleteFunc(doc.Entities, func(e apptype.Entity) bool { return e.Name == name })
		return len(doc.Entities)+len(doc.Relations) != before
	})
}

// UpsertRelation implements store.Backend.
func (b *Backend) UpsertRelation(_ context.Context, r apptype.Relation) error {
	return b.mutate(func(doc *Document) bool {
		if i := indexRelation(doc, r.From, r.To, r.RelationType); i >= 0 {
			doc.Relations = slices.Delete(doc.Relations, i, i+1)
		}
		doc.Relations = append(doc.Relations, r)
		return true
	})
}

// DeleteRelation implements store.Backend.
func (b *Backend) DeleteRelation(_ context.Context, from, to, relationType string) error {
	return b.mutate(func(doc *Document) bool {
		i := indexRelation(doc, from, to, relationType)
		if i < 0 {
			return false
		}
		doc.Relations = slices.Delete(doc.Relations, i, i+1)
		return true
	})
}

// ListEntities implements store.Backend.
func (b *Backend) ListEntities(_ context.Context) ([]apptype.Entity, error) {
	var out []apptype.Entity
	err := b.view(func(doc *Document) {
		out = doc.clone().Entities
	})
	return out, err
}

// ListRelations implements store.Backend.
func (b *Backend) ListRelations(_ context.Context) ([]apptype.Relation, error) {
	var out []apptype.Relation
	err := b.view(func(doc *Document) {
		out = slices.Clone(doc.Relations)
	})
	if out == nil && err == nil {
		out = []apptype.Relation{}
	}
	return out, err
}

// Ping implements store.Pinger. It only fails once the backend is closed.
func (b *Backend) Ping(_ context.Context) error {
	return b.view(func(*Document) {})
}

// Close implements store.Backend. Every mutation is already on disk, so
// closing only rejects further calls.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
