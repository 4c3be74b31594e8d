package driven

import (
	"context"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
)

// DocumentStore defines the driven port for a keyed document store. Documents
// live in named collections; a collection path may nest under a document of
// another collection ("users/alice/passwords") but nesting is purely logical.
type DocumentStore interface {
	// Collection returns a handle for the collection at path. Obtaining a
	// handle performs no I/O.
	Collection(path string) Collection
}

// Collection is a single named collection of documents.
type Collection interface {
	// Get returns the document with the given ID, or (nil, nil) if absent.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Set stores doc, replacing any existing document with the same ID.
	Set(ctx context.Context, doc model.Document) error

	// Delete removes the document with the given ID. Absent IDs are a no-op.
	Delete(ctx context.Context, id string) error

	// ListAll returns every document in the collection. Order is unspecified.
	ListAll(ctx context.Context) ([]model.Document, error)

	// PutIfAbsent stores doc only if no document with its ID exists.
	// Returns false without writing when the ID is taken.
	PutIfAbsent(ctx context.Context, doc model.Document) (bool, error)

	// PutIfExists replaces doc only if a document with its ID already exists.
	// Returns false without writing when the ID is absent.
	PutIfExists(ctx context.Context, doc model.Document) (bool, error)
}
