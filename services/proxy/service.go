package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
)

// Cache status values reported to callers and resident in payload markers.
const (
	StatusHit  = "HIT"
	StatusMiss = "MISS"
)

// Fetcher is the slice of the upstream client the cache flow needs.
type Fetcher interface {
	GetJSON(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	GetJSONExtended(ctx context.Context, path string) (json.RawMessage, error)
}

// Service runs the cache-aside flow for eligible requests: store lookup,
// shape normalization, image backfill for movie details, upstream fetch on
// miss, and per-item seeding from list responses.
type Service struct {
	upstream Fetcher
	store    Store
}

// NewService creates the proxy service. The store is injected so tests can
// swap it.
func NewService(upstream Fetcher, store Store) *Service {
	return &Service{upstream: upstream, store: store}
}

// Result is a served cacheable response: the item body with markers
// stripped, and the read outcome.
type Result struct {
	Body        json.RawMessage
	CacheStatus string
}

// ServeCacheable handles a cacheable GET. Hits are normalized and, for
// movie details lacking images, backfilled. Misses fetch upstream, write
// the entry, and seed per-item entries from list responses. Only the
// primary fetch can fail the request; all secondary work is best-effort.
func (s *Service) ServeCacheable(ctx context.Context, path string, query url.Values) (*Result, error) {
	key := RequestKey(path, query)

	entry, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) && len(query) == 0 {
		// A plain detail request can be served by an entry batch-seeded
		// from a list response under the kind:id key. Requests with query
		// parameters skip this: the seeded item is the bare representation.
		if seedKey := DetailSeedKey(path); seedKey != "" {
			if seeded, seedErr := s.store.Get(ctx, seedKey); seedErr == nil {
				entry, err = seeded, nil
				key = seedKey
			}
		}
	}
	if err == nil {
		n := Normalize(entry.Payload)
		item := n.Item
		// Backfill only movie items; a non-object payload cached under a
		// detail path (a list, say) has nothing to merge images into.
		if IsMovieDetail(path) && !n.HasImages && isObjectPayload(n.Item) {
			item = s.backfillImages(ctx, path, key, n)
		}
		return &Result{Body: item, CacheStatus: StatusHit}, nil
	}
	if !errors.Is(err, ErrMiss) {
		// Read failure degrades to a fetch; the entry will be rewritten.
		log.Printf("[proxy] cache read failed key=%s: %v", key, err)
	}

	payload, err := s.upstream.GetJSON(ctx, path, query)
	if err != nil {
		return nil, err
	}

	stored := withMarkers(payload, payloadHasImages(payload), StatusMiss)
	if err := s.store.Set(ctx, key, stored); err != nil {
		log.Printf("[proxy] cache write failed key=%s: %v", key, err)
	}

	if kind := ListKind(path); kind != "" {
		s.seedFromList(ctx, kind, payload)
	}

	return &Result{Body: payload, CacheStatus: StatusMiss}, nil
}
