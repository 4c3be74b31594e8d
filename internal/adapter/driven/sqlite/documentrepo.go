package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.Collection    = (*DocumentRepo)(nil)
)

// Store is the SQLite implementation of the DocumentStore port. All
// collections share the documents table, keyed by (collection, id).
type Store struct {
	db *DB
}

// NewStore creates a new Store backed by the given DB.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Collection returns the repo for the collection at path.
func (s *Store) Collection(path string) driven.Collection {
	return &DocumentRepo{db: s.db, collection: path}
}

// DocumentRepo is the SQLite implementation of the Collection port interface.
// Fields are stored as a JSON object.
type DocumentRepo struct {
	db         *DB
	collection string
}

// Get returns the document with the given ID, or (nil, nil) if absent.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	const query = `SELECT fields, updated_at FROM documents WHERE collection = ? AND id = ?`
	var fields, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, r.collection, id).Scan(&fields, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %q in %q: %w", id, r.collection, err)
	}

	doc, err := decodeDocument(id, fields, updatedAt)
	if err != nil {
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

	const query = `INSERT INTO documents (collection, id, fields, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`
	_, err = r.db.Writer.ExecContext(ctx, query, r.collection, doc.ID, fields, now())
	if err != nil {
		return fmt.Errorf("set document %q in %q: %w", doc.ID, r.collection, err)
	}
	return nil
}

// Delete removes the document with the given ID. No-op if absent.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE collection = ? AND id = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, r.collection, id)
	if err != nil {
		return fmt.Errorf("delete document %q in %q: %w", id, r.collection, err)
	}
	return nil
}

// ListAll returns every document in the collection ordered by ID.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]model.Document, error) {
	const query = `SELECT id, fields, updated_at FROM documents WHERE collection = ? ORDER BY id`
	rows, err := r.db.Reader.QueryContext(ctx, query, r.collection)
	if err != nil {
		return nil, fmt.Errorf("list documents in %q: %w", r.collection, err)
	}
	defer rows.Close()

	var result []model.Document
	for rows.Next() {
		var id, fields, updatedAt string
		if err := rows.Scan(&id, &fields, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document in %q: %w", r.collection, err)
		}
		doc, err := decodeDocument(id, fields, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("decode document %q in %q: %w", id, r.collection, err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents in %q: %w", r.collection, err)
	}
	return result, nil
}

// PutIfAbsent inserts doc only if its ID is unused. The insert and the
// existence check are one statement, so concurrent callers cannot both win.
func (r *DocumentRepo) PutIfAbsent(ctx context.Context, doc model.Document) (bool, error) {
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return false, err
	}

	const query = `INSERT INTO documents (collection, id, fields, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO NOTHING`
	res, err := r.db.Writer.ExecContext(ctx, query, r.collection, doc.ID, fields, now())
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

	const query = `UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, fields, now(), r.collection, doc.ID)
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

func encodeFields(fields map[string]string) (string, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

func decodeDocument(id, fields, updatedAt string) (model.Document, error) {
	doc := model.Document{ID: id}
	if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
		return model.Document{}, fmt.Errorf("decode fields: %w", err)
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return model.Document{}, err
	}
	doc.UpdatedAt = t
	return doc, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// parseTime attempts to parse a time string in multiple formats that SQLite may produce.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
