// Package entityapi provides clients for the remote entity store. The core
// contract is a PATCH of changed fields against one entity; any transport
// honoring it is acceptable.
package entityapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/adrata/record-sync/internal/resilience"
)

// Updater applies a sparse field update to one entity and returns the
// server's echo of the entity payload (possibly sparse).
type Updater interface {
	UpdateFields(ctx context.Context, kind, id string, fields map[string]any) (map[string]any, error)
}

// response is the wire envelope of the entity API.
type response struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Client is an HTTP Updater speaking PATCH /entities/{kind}/{id}.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	token   string
}

// Option configures the Client.
type Option func(*Client)

// WithRateLimit sets a per-second rate limit for API calls. A burst equal
// to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client against the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return eris.Wrap(c.limiter.Wait(ctx), "entityapi: rate limit wait")
}

// UpdateFields PATCHes the changed fields and returns the echoed entity
// payload. 5xx/429 responses and network timeouts come back wrapped as
// transient so callers can retry; a success=false envelope does not.
func (c *Client) UpdateFields(ctx context.Context, kind, id string, fields map[string]any) (map[string]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, eris.Wrap(err, "entityapi: marshal fields")
	}

	url := fmt.Sprintf("%s/entities/%s/%s", c.baseURL, kind, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "entityapi: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "entityapi: patch")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "entityapi: read response")
	}

	if retryableStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("entityapi: status %d: %s", resp.StatusCode, truncate(raw, 200)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("entityapi: status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var env response
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, eris.Wrap(err, "entityapi: decode response")
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "unspecified error"
		}
		return nil, eris.Errorf("entityapi: update %s/%s rejected: %s", kind, id, env.Error)
	}
	return env.Data, nil
}

// retryableStatus reports server-side conditions worth retrying. Client
// errors other than request timeouts and throttling are the request's
// fault and never retried.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
