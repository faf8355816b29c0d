package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no document exists for a key.
var ErrNotFound = errors.New("document not found")

// Document is one row of the schema-free document store. Payload is opaque
// JSON; the store never interprets it.
type Document struct {
	Collection string
	Key        string
	Payload    json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// DocumentRepository provides generic CRUD over the documents table. Every
// collaborator that persists anything (the metadata cache included) goes
// through this one narrow surface.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a repository bound to a connection.
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get returns the document for a key, or ErrNotFound.
func (r *DocumentRepository) Get(ctx context.Context, collection, key string) (*Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT payload, created_at, updated_at FROM documents WHERE collection = ? AND key = ?`,
		collection, key)

	doc := Document{Collection: collection, Key: key}
	var payload string
	var updatedAt sql.NullTime
	if err := row.Scan(&payload, &doc.CreatedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s/%s: %w", collection, key, err)
	}
	doc.Payload = json.RawMessage(payload)
	if updatedAt.Valid {
		doc.UpdatedAt = &updatedAt.Time
	}
	return &doc, nil
}

// Exists reports whether a document exists for a key, regardless of age.
func (r *DocumentRepository) Exists(ctx context.Context, collection, key string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND key = ?`,
		collection, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check document %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// Upsert replaces the document wholesale and resets created_at. Writes are
// last-write-wins; there is no optimistic concurrency.
func (r *DocumentRepository) Upsert(ctx context.Context, collection, key string, payload json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULL)
		 ON CONFLICT (collection, key) DO UPDATE SET
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   updated_at = NULL`,
		collection, key, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", collection, key, err)
	}
	return nil
}

// Update replaces the payload and sets updated_at, preserving created_at
// when the document already exists. Missing documents are created.
func (r *DocumentRepository) Update(ctx context.Context, collection, key string, payload json.RawMessage) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		collection, key, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("update document %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, collection, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, key, err)
	}
	return nil
}

// DeleteOlderThan removes all documents in a collection created before the
// cutoff. Used only by the maintenance compactor.
func (r *DocumentRepository) DeleteOlderThan(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND created_at < ?`, collection, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("compact collection %s: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("compact collection %s: %w", collection, err)
	}
	return n, nil
}
