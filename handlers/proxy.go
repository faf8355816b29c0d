package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"

	"reelproxy/services/proxy"
	upstreampkg "reelproxy/services/upstream"
)

// ProxyIdentityHeader marks every response that went through this proxy.
const (
	ProxyIdentityHeader = "X-Proxied-By"
	ProxyIdentity       = "reelproxy"
	CacheStatusHeader   = "X-Cache-Status"
)

type proxyService interface {
	ServeCacheable(ctx context.Context, path string, query url.Values) (*proxy.Result, error)
}

var _ proxyService = (*proxy.Service)(nil)

type upstreamClient interface {
	Do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error)
	HasCredentials() bool
}

var _ upstreamClient = (*upstreampkg.Client)(nil)

// storeHealth is the collaborator-provided availability signal for the
// document store.
type storeHealth interface {
	Available(ctx context.Context) bool
}

// ProxyHandler fronts the metadata provider: it checks credentials, routes
// cacheable GETs through the cache flow, and passes everything else
// through verbatim.
type ProxyHandler struct {
	Service  proxyService
	Upstream upstreamClient
	Health   storeHealth
}

func NewProxyHandler(service proxyService, up upstreamClient, health storeHealth) *ProxyHandler {
	return &ProxyHandler{Service: service, Upstream: up, Health: health}
}

// Handle serves one inbound request.
func (h *ProxyHandler) Handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(ProxyIdentityHeader, ProxyIdentity)

	// A missing upstream credential fails the whole request before any
	// cache or upstream work, regardless of cacheability.
	if !h.Upstream.HasCredentials() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream API key is not configured"})
		return
	}

	if !proxy.IsCacheable(r.Method, r.URL.Path) {
		h.passthrough(w, r)
		return
	}

	// Store outage degrades to pure passthrough rather than failing.
	if h.Health == nil || !h.Health.Available(r.Context()) {
		log.Printf("[proxy] store unavailable, passing through %s %s", r.Method, r.URL.Path)
		h.passthrough(w, r)
		return
	}

	result, err := h.Service.ServeCacheable(r.Context(), r.URL.Path, r.URL.Query())
	if err != nil {
		log.Printf("[proxy] upstream fetch failed %s: %v", r.URL.Path, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{
			"error":  "upstream fetch failed",
			"detail": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(CacheStatusHeader, result.CacheStatus)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Body)
}

// passthrough forwards the request verbatim and mirrors the upstream
// status code back to the caller.
func (h *ProxyHandler) passthrough(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Upstream.Do(r.Context(), r.Method, r.URL.Path, r.URL.Query(), r.Body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{
			"error":  "upstream request failed",
			"detail": err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("[proxy] passthrough copy failed %s %s: %v", r.Method, r.URL.Path, err)
	}
}
