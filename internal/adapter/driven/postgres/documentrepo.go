package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.Collection    = (*DocumentRepo)(nil)
)

// Store is the PostgreSQL implementation of the DocumentStore port.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on an open pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Collection returns the repo for the collection at path.
func (s *Store) Collection(path string) driven.Collection {
	return &DocumentRepo{db: s.db, collection: path}
}

// DocumentRepo is one collection in the documents table. Fields are JSONB.
type DocumentRepo struct {
	db         *sql.DB
	collection string
}

// Get returns the document with the given ID, or (nil, nil) if absent.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	const query = `SELECT fields, updated_at FROM documents WHERE collection = $1 AND id = $2`
	doc := model.Document{ID: id}
	var fields []byte
	err := r.db.QueryRowContext(ctx, query, r.collection, id).Scan(&fields, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %q in %q: %w", id, r.collection, err)
	}
	if err := json.Unmarshal(fields, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode document %q in %q: %w", id, r.collection, err)
	}
	return &doc, nil
}

// Set stores doc, replacing any existing document with the same ID.
func (r *DocumentRepo) Set(ctx context.Context, doc model.Document) error {
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}

	const query = `INSERT INTO documents (collection, id, fields, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, r.collection, doc.ID, fields); err != nil {
		return fmt.Errorf("set document %q in %q: %w", doc.ID, r.collection, err)
	}
	return nil
}

// Delete removes the document with the given ID. No-op if absent.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, r.collection, id); err != nil {
		return fmt.Errorf("delete document %q in %q: %w", id, r.collection, err)
	}
	return nil
}

// ListAll returns every document in the collection ordered by ID.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]model.Document, error) {
	const query = `SELECT id, fields, updated_at FROM documents WHERE collection = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, r.collection)
	if err != nil {
		return nil, fmt.Errorf("list documents in %q: %w", r.collection, err)
	}
	defer rows.Close()

	var result []model.Document
	for rows.Next() {
		var doc model.Document
		var fields []byte
		if err := rows.Scan(&doc.ID, &fields, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document in %q: %w", r.collection, err)
		}
		if err := json.Unmarshal(fields, &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode document %q in %q: %w", doc.ID, r.collection, err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents in %q: %w", r.collection, err)
	}
	return result, nil
}

// PutIfAbsent inserts doc only if its ID is unused, in a single statement.
func (r *DocumentRepo) PutIfAbsent(ctx context.Context, doc model.Document) (bool, error) {
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return false, err
	}

	const query = `INSERT INTO documents (collection, id, fields, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, r.collection, doc.ID, fields)
	if err != nil {
		return false, fmt.Errorf("insert document %q in %q: %w", doc.ID, r.collection, err)
	}
	return affectedOne(res)
}

// PutIfExists replaces doc only if its ID is already present.
func (r *DocumentRepo) PutIfExists(ctx context.Context, doc model.Document) (bool, error) {
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return false, err
	}

	const query = `UPDATE documents SET fields = $1, updated_at = now() WHERE collection = $2 AND id = $3`
	res, err := r.db.ExecContext(ctx, query, fields, r.collection, doc.ID)
	if err != nil {
		return false, fmt.Errorf("update document %q in %q: %w", doc.ID, r.collection, err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func encodeFields(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return data, nil
}
