package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

// seedFromList decomposes a trending/popular response and seeds a per-item
// cache entry for every decodable element not already cached. Seeding is
// additive only: an existing entry for a key is never overwritten, so
// primary-fetch and backfilled entries always win. Per-element failures are
// logged individually and never abort the rest of the batch.
func (s *Service) seedFromList(ctx context.Context, kind string, payload json.RawMessage) {
	items := extractListItems(kind, payload)
	seeded := 0
	for _, item := range items {
		id := externalID(item)
		if id == "" {
			log.Printf("[proxy] seed skip: element has no usable id kind=%s", kind)
			continue
		}
		key := SeedKey(kind, id)

		exists, err := s.store.Exists(ctx, key)
		if err != nil {
			log.Printf("[proxy] seed existence check failed key=%s: %v", key, err)
			continue
		}
		if exists {
			continue
		}

		stored := marshalWithMarkers(item, imagesPresent(item), StatusHit, nil)
		if stored == nil {
			log.Printf("[proxy] seed marshal failed key=%s", key)
			continue
		}
		if err := s.store.Set(ctx, key, stored); err != nil {
			log.Printf("[proxy] seed write failed key=%s: %v", key, err)
			continue
		}
		seeded++
	}
	if seeded > 0 {
		log.Printf("[proxy] seeded %d %s entries from list response", seeded, kind)
	}
}

// extractListItems decodes the elements of a list response into bare item
// objects for the given endpoint kind.
func extractListItems(kind string, payload json.RawMessage) []map[string]any {
	var generic any
	if err := json.Unmarshal(payload, &generic); err != nil {
		log.Printf("[proxy] seed decode failed kind=%s: %v", kind, err)
		return nil
	}

	switch v := generic.(type) {
	case []any:
		var out []map[string]any
		for i, elem := range v {
			item, err := decodeListElement(kind, elem)
			if err != nil {
				log.Printf("[proxy] seed skip element %d: %v", i, err)
				continue
			}
			out = append(out, item)
		}
		return out
	case map[string]any:
		// Whole response is a single object wrapping one item.
		if nested, ok := v[kind].(map[string]any); ok {
			return []map[string]any{nested}
		}
	}
	return nil
}

// decodeListElement resolves one list element to a bare item object. The
// endpoint kind is threaded explicitly; field-based classification is only
// a fallback for elements without the expected nesting.
func decodeListElement(kind string, elem any) (map[string]any, error) {
	obj, ok := elem.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("element is not an object")
	}

	// Preferred shape: {"movie": {...}} / {"show": {...}}.
	if nested, ok := obj[kind].(map[string]any); ok {
		return nested, nil
	}

	// Legacy keyed shape: a single numeric-string key wrapping the value.
	if inner, ok := numericKeyedValue(obj); ok {
		if nested, ok := inner[kind].(map[string]any); ok {
			return nested, nil
		}
		if classifyItem(inner) == kind {
			return inner, nil
		}
		return nil, fmt.Errorf("keyed element does not match kind %q", kind)
	}

	// Bare element: classify by type-identifying fields.
	if classifyItem(obj) == kind {
		return obj, nil
	}
	return nil, fmt.Errorf("element does not match kind %q", kind)
}

// numericKeyedValue unwraps {"0": {...}} style elements.
func numericKeyedValue(obj map[string]any) (map[string]any, bool) {
	if len(obj) != 1 {
		return nil, false
	}
	for k, v := range obj {
		if _, err := strconv.Atoi(k); err != nil {
			return nil, false
		}
		inner, ok := v.(map[string]any)
		return inner, ok
	}
	return nil, false
}

// classifyItem guesses an item's kind from its fields. Show-identifying
// fields are checked first because movies and shows share title/year.
func classifyItem(obj map[string]any) string {
	for _, field := range []string{"first_aired", "seasons", "episode_count", "aired_episodes"} {
		if _, ok := obj[field]; ok {
			return "show"
		}
	}
	if _, ok := obj["released"]; ok {
		return "movie"
	}
	_, hasTitle := obj["title"]
	_, hasYear := obj["year"]
	if hasTitle && hasYear {
		return "movie"
	}
	return ""
}

// externalID extracts the provider's stable identifier from an item,
// preferring the numeric id and falling back to the slug.
func externalID(item map[string]any) string {
	ids, ok := item["ids"].(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := ids["trakt"].(float64); ok && v > 0 {
		return strconv.FormatInt(int64(v), 10)
	}
	if v, ok := ids["slug"].(string); ok && v != "" {
		return v
	}
	return ""
}
