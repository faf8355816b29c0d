package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"reelproxy/utils"
)

// Client handles HTTP calls to the metadata provider: primary fetches,
// image-extended detail fetches, and verbatim passthrough for everything
// the cache layer does not own.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiVersion string
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a provider client. baseURL must not end with a slash.
func NewClient(baseURL, apiKey, apiVersion string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiVersion: apiVersion,
	}
}

// NewClientWithHTTP is like NewClient but with a caller-supplied http.Client.
// Tests use this to stub the transport.
func NewClientWithHTTP(baseURL, apiKey, apiVersion string, httpClient *http.Client) *Client {
	c := NewClient(baseURL, apiKey, apiVersion)
	c.httpClient = httpClient
	return c
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// setHeaders adds the provider's required headers to a request.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", c.apiVersion)
	req.Header.Set("trakt-api-key", c.apiKey)
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	raw := c.baseURL + path
	if len(query) > 0 {
		raw += "?" + query.Encode()
	}
	// Search queries arrive with raw spaces from some callers.
	return utils.EncodeURLWithSpaces(raw)
}

// GetJSON issues a GET for the given path+query and returns the raw JSON
// body. Transport errors and 5xx responses are retried a small bounded
// number of times; 4xx responses are returned immediately.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	target, err := c.buildURL(path, query)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	var payload json.RawMessage
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			c.setHeaders(req)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("upstream request: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read upstream response: %w", err)
			}

			if resp.StatusCode >= http.StatusInternalServerError {
				return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
			}

			if !json.Valid(body) {
				return retry.Unrecoverable(fmt.Errorf("upstream returned invalid JSON"))
			}
			payload = json.RawMessage(body)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// GetJSONExtended fetches the image-extended representation of a detail
// path. It is a plain GetJSON with the provider's extended parameter forced.
func (c *Client) GetJSONExtended(ctx context.Context, path string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("extended", "full,images")
	return c.GetJSON(ctx, path, query)
}

// Do forwards a request verbatim and returns the raw upstream response.
// Non-GET requests carry a JSON body; GETs carry none. The caller owns the
// response body. No retries: passthrough traffic may not be idempotent.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	target, err := c.buildURL(path, query)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	var reqBody io.Reader
	if method != http.MethodGet && body != nil {
		// Buffer so an empty body still sends a valid JSON request.
		buf, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if len(buf) > 0 {
			reqBody = bytes.NewReader(buf)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	return resp, nil
}
