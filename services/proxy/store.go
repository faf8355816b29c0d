package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reelproxy/internal/database"
)

// CacheCollection is the document-store collection holding cache entries.
const CacheCollection = "cache"

// ErrMiss is returned by Store.Get when no fresh entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Entry is one cache entry as read from the store.
type Entry struct {
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Store is the narrow cache interface the proxy flow depends on. Freshness
// is a read-time predicate: Get reports a miss for entries older than the
// TTL but never deletes them.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, payload json.RawMessage) error
	UpdateInPlace(ctx context.Context, key string, payload json.RawMessage) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DocumentStore backs Store with the documents collection.
type DocumentStore struct {
	repo *database.DocumentRepository
	ttl  time.Duration
}

// NewDocumentStore creates a store with the given freshness window.
func NewDocumentStore(repo *database.DocumentRepository, ttl time.Duration) *DocumentStore {
	return &DocumentStore{repo: repo, ttl: ttl}
}

var _ Store = (*DocumentStore)(nil)

// Get returns the entry for a key, or ErrMiss when the key is absent or the
// entry's age exceeds the TTL. Age is measured against createdAt as a
// real-valued hour difference; updatedAt does not extend freshness.
func (s *DocumentStore) Get(ctx context.Context, key string) (*Entry, error) {
	doc, err := s.repo.Get(ctx, CacheCollection, key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	if time.Since(doc.CreatedAt).Hours() > s.ttl.Hours() {
		// Stale entries stay physically present until overwritten.
		return nil, ErrMiss
	}
	return &Entry{
		Key:       key,
		Payload:   doc.Payload,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Set upserts the payload wholesale and resets createdAt. Last write wins.
func (s *DocumentStore) Set(ctx context.Context, key string, payload json.RawMessage) error {
	return s.repo.Upsert(ctx, CacheCollection, key, payload)
}

// UpdateInPlace replaces the payload and sets updatedAt while preserving
// createdAt. It is used only by the image backfill and deliberately does
// not re-check the TTL, so it can touch an entry the read path had already
// judged stale.
func (s *DocumentStore) UpdateInPlace(ctx context.Context, key string, payload json.RawMessage) error {
	return s.repo.Update(ctx, CacheCollection, key, payload)
}

// Exists reports whether any entry exists for the key, fresh or stale.
// Batch seeding uses this to stay additive-only.
func (s *DocumentStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.repo.Exists(ctx, CacheCollection, key)
}
