package proxy

import (
	"bytes"
	"encoding/json"
)

// Marker field names embedded in cache payloads. They are internal
// bookkeeping only and must never appear in a response body.
const (
	markerHasImages   = "hasImages"
	markerCacheStatus = "cacheStatus"
)

// Normalized is the result of reconciling a raw cache payload: the logical
// item with markers stripped, plus the marker values that were resident.
type Normalized struct {
	Item        json.RawMessage
	HasImages   bool
	CacheStatus string
}

// Normalize reconciles the three historical cache payload shapes into one
// logical item. Shapes are tried in order: double-nested data.data,
// single-nested data, direct item with embedded marker fields. The nested
// shapes predate the hasImages flag and are treated as already complete.
// Normalize is total: an incoherent payload falls back to the raw entry as
// the item with hasImages=false.
func Normalize(raw json.RawMessage) Normalized {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Normalized{Item: raw}
	}

	obj, ok := generic.(map[string]any)
	if !ok {
		// Arrays (lists, search results) are stored bare.
		return Normalized{Item: raw}
	}

	if data, found := obj["data"]; found {
		if inner, ok := data.(map[string]any); ok {
			if innerData, found := inner["data"]; found {
				if b, err := json.Marshal(innerData); err == nil {
					return Normalized{Item: b, HasImages: true}
				}
			}
		}
		if b, err := json.Marshal(data); err == nil {
			return Normalized{Item: b, HasImages: true}
		}
	}

	_, hasImagesMarker := obj[markerHasImages]
	_, hasStatusMarker := obj[markerCacheStatus]
	if hasImagesMarker || hasStatusMarker {
		n := Normalized{}
		if v, ok := obj[markerHasImages].(bool); ok {
			n.HasImages = v
		}
		if v, ok := obj[markerCacheStatus].(string); ok {
			n.CacheStatus = v
		}
		delete(obj, markerHasImages)
		delete(obj, markerCacheStatus)
		if b, err := json.Marshal(obj); err == nil {
			n.Item = b
			return n
		}
	}

	return Normalized{Item: raw}
}

// withMarkers embeds the marker fields into an object payload for storage.
// Non-object payloads (lists) are stored bare; the read path's fallback
// handles them.
func withMarkers(payload json.RawMessage, hasImages bool, cacheStatus string) json.RawMessage {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return payload
	}
	return marshalWithMarkers(obj, hasImages, cacheStatus, payload)
}

func marshalWithMarkers(obj map[string]any, hasImages bool, cacheStatus string, fallback json.RawMessage) json.RawMessage {
	obj[markerHasImages] = hasImages
	obj[markerCacheStatus] = cacheStatus
	b, err := json.Marshal(obj)
	if err != nil {
		return fallback
	}
	return b
}

// isObjectPayload reports whether a payload is a JSON object, as opposed
// to an array or scalar.
func isObjectPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// payloadHasImages reports whether an object payload already carries a
// non-empty images block.
func payloadHasImages(payload json.RawMessage) bool {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return false
	}
	return imagesPresent(obj)
}

func imagesPresent(obj map[string]any) bool {
	images, ok := obj["images"]
	if !ok || images == nil {
		return false
	}
	if m, ok := images.(map[string]any); ok {
		return len(m) > 0
	}
	return true
}
