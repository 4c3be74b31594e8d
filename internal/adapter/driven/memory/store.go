// Package memory provides an in-process implementation of the DocumentStore
// port. Contents are lost when the process exits.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.Collection    = (*Collection)(nil)
)

// Store is a map-backed document store. A single mutex guards every
// collection so conditional puts are atomic.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]model.Document
	now         func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]model.Document),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Collection returns a handle for the collection at path.
func (s *Store) Collection(path string) driven.Collection {
	return &Collection{store: s, path: path}
}

// Collection is one named collection inside a Store.
type Collection struct {
	store *Store
	path  string
}

// Get returns a copy of the document with the given ID, or (nil, nil).
func (c *Collection) Get(_ context.Context, id string) (*model.Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	doc, ok := c.store.collections[c.path][id]
	if !ok {
		return nil, nil
	}
	cp := clone(doc)
	return &cp, nil
}

// Set stores doc, replacing any existing document with the same ID.
func (c *Collection) Set(_ context.Context, doc model.Document) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.put(doc)
	return nil
}

// Delete removes the document with the given ID.
func (c *Collection) Delete(_ context.Context, id string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs := c.store.collections[c.path]
	delete(docs, id)
	if len(docs) == 0 {
		delete(c.store.collections, c.path)
	}
	return nil
}

// ListAll returns copies of every document in the collection.
func (c *Collection) ListAll(_ context.Context) ([]model.Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs := c.store.collections[c.path]
	result := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		result = append(result, clone(doc))
	}
	return result, nil
}

// PutIfAbsent stores doc only if its ID is unused.
func (c *Collection) PutIfAbsent(_ context.Context, doc model.Document) (bool, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.store.collections[c.path][doc.ID]; ok {
		return false, nil
	}
	c.put(doc)
	return true, nil
}

// PutIfExists replaces doc only if its ID is already present.
func (c *Collection) PutIfExists(_ context.Context, doc model.Document) (bool, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.store.collections[c.path][doc.ID]; !ok {
		return false, nil
	}
	c.put(doc)
	return true, nil
}

// put writes doc. The caller must hold the store mutex.
func (c *Collection) put(doc model.Document) {
	docs, ok := c.store.collections[c.path]
	if !ok {
		docs = make(map[string]model.Document)
		c.store.collections[c.path] = docs
	}
	stored := clone(doc)
	stored.UpdatedAt = c.store.now()
	docs[doc.ID] = stored
}

func clone(doc model.Document) model.Document {
	doc.Fields = maps.Clone(doc.Fields)
	return doc
}
