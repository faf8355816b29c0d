package proxy

import (
	"context"
	"encoding/json"
	"log"
)

// backfillImages fetches the image-extended representation of a movie
// detail path and merges only the images block into the cached item,
// persisting the result with hasImages forced true. Every failure is
// logged and swallowed: the primary response must never depend on this
// path, so the caller always gets an item back — enriched when possible,
// the original image-less item otherwise. Shows, search results, and list
// entries are never backfilled; that asymmetry is intentional.
func (s *Service) backfillImages(ctx context.Context, path, key string, n Normalized) json.RawMessage {
	extended, err := s.upstream.GetJSONExtended(ctx, path)
	if err != nil {
		log.Printf("[proxy] image backfill fetch failed path=%s: %v", path, err)
		return n.Item
	}

	var ext map[string]any
	if err := json.Unmarshal(extended, &ext); err != nil {
		log.Printf("[proxy] image backfill returned malformed response path=%s: %v", path, err)
		return n.Item
	}
	images, ok := ext["images"]
	if !ok || images == nil {
		log.Printf("[proxy] image backfill returned no images path=%s", path)
		return n.Item
	}

	var item map[string]any
	if err := json.Unmarshal(n.Item, &item); err != nil || item == nil {
		log.Printf("[proxy] image backfill: cached item is not an object key=%s", key)
		return n.Item
	}
	item["images"] = images

	merged, err := json.Marshal(item)
	if err != nil {
		log.Printf("[proxy] image backfill merge failed key=%s: %v", key, err)
		return n.Item
	}

	status := n.CacheStatus
	if status == "" {
		status = StatusHit
	}
	stored := withMarkers(merged, true, status)
	if err := s.store.UpdateInPlace(ctx, key, stored); err != nil {
		log.Printf("[proxy] image backfill write failed key=%s: %v", key, err)
	}

	return merged
}
