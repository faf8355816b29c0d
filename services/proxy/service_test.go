package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"reelproxy/models"
)

// memStore is an in-memory Store for flow tests. Entries are always fresh;
// freshness itself is covered by the document store tests.
type memStore struct {
	entries map[string]json.RawMessage
	updated map[string]int
	getErr  error
	setErr  error
}

func newMemStore() *memStore {
	return &memStore{
		entries: make(map[string]json.RawMessage),
		updated: make(map[string]int),
	}
}

var _ Store = (*memStore)(nil)

func (m *memStore) Get(ctx context.Context, key string) (*Entry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	payload, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	return &Entry{Key: key, Payload: payload, CreatedAt: time.Now()}, nil
}

func (m *memStore) Set(ctx context.Context, key string, payload json.RawMessage) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = payload
	return nil
}

func (m *memStore) UpdateInPlace(ctx context.Context, key string, payload json.RawMessage) error {
	m.entries[key] = payload
	m.updated[key]++
	return nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.entries[key]
	return ok, nil
}

// fakeFetcher counts upstream calls and serves canned payloads.
type fakeFetcher struct {
	payload  json.RawMessage
	err      error
	extended json.RawMessage
	extErr   error

	calls    int
	extCalls int
}

var _ Fetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) GetJSON(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	f.calls++
	return f.payload, f.err
}

func (f *fakeFetcher) GetJSONExtended(ctx context.Context, path string) (json.RawMessage, error) {
	f.extCalls++
	return f.extended, f.extErr
}

func TestServeCacheableMissThenHit(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{
		payload: json.RawMessage(`{"title":"Tron: Legacy","year":2010,"images":{"poster":{"full":"p.jpg"}}}`),
	}
	svc := NewService(fetcher, store)

	first, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if first.CacheStatus != StatusMiss {
		t.Errorf("first request status = %q, want MISS", first.CacheStatus)
	}
	if fetcher.calls != 1 {
		t.Errorf("upstream calls after first request = %d, want 1", fetcher.calls)
	}

	second, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if second.CacheStatus != StatusHit {
		t.Errorf("second request status = %q, want HIT", second.CacheStatus)
	}
	// Payload already carries images, so the hit must not call upstream at all.
	if fetcher.calls != 1 || fetcher.extCalls != 0 {
		t.Errorf("upstream calls after hit = %d/%d, want 1/0", fetcher.calls, fetcher.extCalls)
	}

	got := asMap(t, second.Body)
	if _, found := got["hasImages"]; found {
		t.Error("marker field leaked into the served body")
	}
	if _, found := got["cacheStatus"]; found {
		t.Error("marker field leaked into the served body")
	}
}

func TestServeCacheableBackfillsMovieImages(t *testing.T) {
	store := newMemStore()
	store.entries["/movies/1"] = json.RawMessage(`{"title":"Tron: Legacy","year":2010,"hasImages":false,"cacheStatus":"MISS"}`)
	fetcher := &fakeFetcher{
		extended: json.RawMessage(`{"title":"Tron: Legacy","year":2010,"images":{"poster":{"full":"p.jpg"}}}`),
	}
	svc := NewService(fetcher, store)

	res, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.CacheStatus != StatusHit {
		t.Errorf("status = %q, want HIT", res.CacheStatus)
	}
	if fetcher.extCalls != 1 {
		t.Errorf("extended fetches = %d, want 1", fetcher.extCalls)
	}
	got := asMap(t, res.Body)
	if _, found := got["images"]; !found {
		t.Error("served body is missing the merged images block")
	}
	if store.updated["/movies/1"] != 1 {
		t.Error("enriched entry was not persisted in place")
	}

	// The persisted entry now has images, so a second hit stays local.
	if _, err := svc.ServeCacheable(context.Background(), "/movies/1", nil); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if fetcher.extCalls != 1 {
		t.Errorf("extended fetches after second hit = %d, want 1", fetcher.extCalls)
	}
}

func TestServeCacheableBackfillFailureServesOriginal(t *testing.T) {
	store := newMemStore()
	store.entries["/movies/1"] = json.RawMessage(`{"title":"Tron: Legacy","hasImages":false,"cacheStatus":"MISS"}`)
	fetcher := &fakeFetcher{extErr: errors.New("upstream down")}
	svc := NewService(fetcher, store)

	res, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
	if err != nil {
		t.Fatalf("backfill failure must not fail the request: %v", err)
	}
	if res.CacheStatus != StatusHit {
		t.Errorf("status = %q, want HIT", res.CacheStatus)
	}
	got := asMap(t, res.Body)
	if got["title"] != "Tron: Legacy" {
		t.Errorf("original item not served: %v", got)
	}
	if store.updated["/movies/1"] != 0 {
		t.Error("failed backfill must not write the entry")
	}
}

func TestServeCacheableNeverBackfillsShows(t *testing.T) {
	store := newMemStore()
	store.entries["/shows/breaking-bad"] = json.RawMessage(`{"title":"Breaking Bad","hasImages":false,"cacheStatus":"MISS"}`)
	fetcher := &fakeFetcher{
		extended: json.RawMessage(`{"images":{"poster":{"full":"p.jpg"}}}`),
	}
	svc := NewService(fetcher, store)

	res, err := svc.ServeCacheable(context.Background(), "/shows/breaking-bad", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.CacheStatus != StatusHit {
		t.Errorf("status = %q, want HIT", res.CacheStatus)
	}
	if fetcher.extCalls != 0 {
		t.Errorf("show detail triggered %d extended fetches, want 0", fetcher.extCalls)
	}
}

func TestServeCacheableListMissSeedsItems(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{
		payload: trendingMovies(t,
			models.ListEntry{Watchers: 120, Movie: &models.Movie{
				Title: "Tron: Legacy", Year: 2010,
				IDs:    models.IDs{Trakt: 1, Slug: "tron-legacy-2010"},
				Images: &models.Images{Poster: &models.ImageSet{Full: "p.jpg"}},
			}},
			models.ListEntry{Watchers: 95, Movie: &models.Movie{
				Title: "Inception", Year: 2010,
				IDs:    models.IDs{Trakt: 2, Slug: "inception-2010"},
				Images: &models.Images{Poster: &models.ImageSet{Full: "q.jpg"}},
			}},
		),
	}
	svc := NewService(fetcher, store)

	res, err := svc.ServeCacheable(context.Background(), "/movies/trending", url.Values{"limit": {"2"}})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.CacheStatus != StatusMiss {
		t.Errorf("status = %q, want MISS", res.CacheStatus)
	}

	if _, ok := store.entries["/movies/trending?limit=2"]; !ok {
		t.Error("primary list entry was not written")
	}
	for _, key := range []string{"movie:1", "movie:2"} {
		if _, ok := store.entries[key]; !ok {
			t.Errorf("seed entry %s was not written", key)
		}
	}

	// A detail request for a seeded id is a hit with no upstream traffic.
	detail, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
	if err != nil {
		t.Fatalf("detail request failed: %v", err)
	}
	if detail.CacheStatus != StatusHit {
		t.Errorf("seeded detail status = %q, want HIT", detail.CacheStatus)
	}
	if fetcher.calls != 1 || fetcher.extCalls != 0 {
		t.Errorf("upstream calls after seeded hit = %d/%d, want 1/0", fetcher.calls, fetcher.extCalls)
	}
	got := asMap(t, detail.Body)
	if got["title"] != "Tron: Legacy" {
		t.Errorf("seeded detail body = %v", got)
	}
	if _, found := got["cacheStatus"]; found {
		t.Error("marker field leaked into the seeded detail body")
	}

	// Detail requests carrying query parameters bypass the seed family:
	// the seeded item is only the bare representation.
	withQuery, err := svc.ServeCacheable(context.Background(), "/movies/1", url.Values{"extended": {"full"}})
	if err != nil {
		t.Fatalf("query detail request failed: %v", err)
	}
	if withQuery.CacheStatus != StatusMiss {
		t.Errorf("query detail status = %q, want MISS", withQuery.CacheStatus)
	}
	if fetcher.calls != 2 {
		t.Errorf("upstream calls after query detail = %d, want 2", fetcher.calls)
	}
}

func TestServeCacheableSeededDetailEnriched(t *testing.T) {
	store := newMemStore()
	seeded := marshalWithMarkers(map[string]any{
		"title": "Inception",
		"year":  float64(2010),
		"ids":   map[string]any{"trakt": float64(2)},
	}, false, StatusHit, nil)
	store.entries["movie:2"] = seeded

	fetcher := &fakeFetcher{
		extended: json.RawMessage(`{"title":"Inception","images":{"poster":{"full":"q.jpg"}}}`),
	}
	svc := NewService(fetcher, store)

	res, err := svc.ServeCacheable(context.Background(), "/movies/2", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.CacheStatus != StatusHit {
		t.Errorf("status = %q, want HIT", res.CacheStatus)
	}
	if fetcher.extCalls != 1 {
		t.Errorf("extended fetches = %d, want 1", fetcher.extCalls)
	}
	got := asMap(t, res.Body)
	if _, found := got["images"]; !found {
		t.Error("seeded movie was not enriched with images")
	}
	// The enrichment persists under the seed key, not the request key.
	if store.updated["movie:2"] != 1 {
		t.Error("enriched seed entry was not persisted in place")
	}
	if store.updated["/movies/2"] != 0 {
		t.Error("enrichment wrote the primary key instead of the seed key")
	}
}

func TestServeCacheableNonObjectDetailPayloadNotEnriched(t *testing.T) {
	store := newMemStore()
	store.entries["/movies/1"] = json.RawMessage(`[{"country":"us","certification":"PG"}]`)
	fetcher := &fakeFetcher{
		extended: json.RawMessage(`{"images":{"poster":{"full":"p.jpg"}}}`),
	}
	svc := NewService(fetcher, store)

	for i := 0; i < 3; i++ {
		res, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
		if err != nil {
			t.Fatalf("hit %d failed: %v", i, err)
		}
		if res.CacheStatus != StatusHit {
			t.Errorf("hit %d status = %q, want HIT", i, res.CacheStatus)
		}
	}
	if fetcher.extCalls != 0 {
		t.Errorf("extended fetches across hits = %d, want 0 for a non-object payload", fetcher.extCalls)
	}
}

func TestServeCacheableSubresourcePathNotEnriched(t *testing.T) {
	store := newMemStore()
	store.entries["/movies/1/releases"] = json.RawMessage(`[{"country":"us"},{"country":"gb"}]`)
	fetcher := &fakeFetcher{
		extended: json.RawMessage(`{"images":{"poster":{"full":"p.jpg"}}}`),
	}
	svc := NewService(fetcher, store)

	for i := 0; i < 3; i++ {
		res, err := svc.ServeCacheable(context.Background(), "/movies/1/releases", nil)
		if err != nil {
			t.Fatalf("hit %d failed: %v", i, err)
		}
		if res.CacheStatus != StatusHit {
			t.Errorf("hit %d status = %q, want HIT", i, res.CacheStatus)
		}
	}
	if fetcher.extCalls != 0 {
		t.Errorf("extended fetches across hits = %d, want 0 for a sub-resource path", fetcher.extCalls)
	}
}

func TestServeCacheableUpstreamFailure(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	svc := NewService(fetcher, store)

	if _, err := svc.ServeCacheable(context.Background(), "/movies/1", nil); err == nil {
		t.Fatal("primary fetch failure must surface to the caller")
	}
	if len(store.entries) != 0 {
		t.Error("failed fetch must not write the cache")
	}
}

func TestServeCacheableReadErrorFallsThroughToFetch(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("database is locked")
	fetcher := &fakeFetcher{payload: json.RawMessage(`{"title":"Tron: Legacy"}`)}
	svc := NewService(fetcher, store)

	res, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
	if err != nil {
		t.Fatalf("read error must degrade to a fetch: %v", err)
	}
	if res.CacheStatus != StatusMiss {
		t.Errorf("status = %q, want MISS", res.CacheStatus)
	}
	if fetcher.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", fetcher.calls)
	}
}

func TestServeCacheableWriteFailureStillServes(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("disk full")
	fetcher := &fakeFetcher{payload: json.RawMessage(`{"title":"Tron: Legacy"}`)}
	svc := NewService(fetcher, store)

	res, err := svc.ServeCacheable(context.Background(), "/movies/1", nil)
	if err != nil {
		t.Fatalf("cache write failure must not fail the request: %v", err)
	}
	if res.CacheStatus != StatusMiss {
		t.Errorf("status = %q, want MISS", res.CacheStatus)
	}
	if got := asMap(t, res.Body); got["title"] != "Tron: Legacy" {
		t.Errorf("upstream payload not served: %v", got)
	}
}
