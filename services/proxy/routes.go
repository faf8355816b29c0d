package proxy

import (
	"net/http"
	"net/url"
	"strings"
)

// cacheablePrefixes is the fixed set of provider paths eligible for caching:
// movie/show trending and popular lists, search, and movie/show details.
var cacheablePrefixes = []string{
	"/movies/trending",
	"/movies/popular",
	"/shows/trending",
	"/shows/popular",
	"/search",
	"/movies/",
	"/shows/",
}

// IsCacheable reports whether a request is eligible for the cache layer.
// Only GETs on known prefixes qualify; everything else is proxied verbatim.
// Pure predicate, no side effects.
func IsCacheable(method, path string) bool {
	if method != http.MethodGet {
		return false
	}
	p := NormalizePath(path)
	for _, prefix := range cacheablePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// NormalizePath strips any query string and guarantees a leading slash.
func NormalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// ListKind returns "movie" or "show" when the path is a trending/popular
// list endpoint, and "" otherwise.
func ListKind(path string) string {
	p := NormalizePath(path)
	switch {
	case strings.HasPrefix(p, "/movies/trending"), strings.HasPrefix(p, "/movies/popular"):
		return "movie"
	case strings.HasPrefix(p, "/shows/trending"), strings.HasPrefix(p, "/shows/popular"):
		return "show"
	}
	return ""
}

// IsMovieDetail reports whether the path addresses a single movie. List
// endpoints and sub-resources under /movies/ are not details.
func IsMovieDetail(path string) bool {
	return strings.HasPrefix(DetailSeedKey(path), "movie:")
}

// DetailSeedKey maps a single-segment detail path to the key its entry
// would have been batch-seeded under, or "" for any other path. Detail
// reads consult this key family after a primary-key miss.
func DetailSeedKey(path string) string {
	p := NormalizePath(path)
	if ListKind(p) != "" {
		return ""
	}

	var kind, id string
	switch {
	case strings.HasPrefix(p, "/movies/"):
		kind, id = "movie", strings.TrimPrefix(p, "/movies/")
	case strings.HasPrefix(p, "/shows/"):
		kind, id = "show", strings.TrimPrefix(p, "/shows/")
	default:
		return ""
	}
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return SeedKey(kind, id)
}

// RequestKey derives the cache key for a primary entry from the normalized
// path and the serialized query. url.Values.Encode sorts parameters, so the
// serialization is deterministic. Keys in this family always start with "/",
// which keeps them disjoint from the kind:id seed family.
func RequestKey(path string, query url.Values) string {
	key := NormalizePath(path)
	if len(query) > 0 {
		key += "?" + query.Encode()
	}
	return key
}

// SeedKey derives the cache key for a batch-seeded per-item entry.
func SeedKey(kind, externalID string) string {
	return kind + ":" + externalID
}
