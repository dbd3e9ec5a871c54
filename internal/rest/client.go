// Package rest is the authenticated transport adapter for the messaging
// backend. It owns the HTTP surface (bearer credential, fixed timeout,
// error taxonomy) and the single normalization step that maps backend
// field-name variants onto the canonical model.
package rest

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

	"go.uber.org/zap"
)

// DefaultTimeout is the client-side deadline applied to every request.
// A timeout surfaces as a NetworkError like any other transport failure.
const DefaultTimeout = 15 * time.Second

// Client issues authenticated requests against the REST backend.
type Client struct {
	baseURL    string
	token      string
	selfID     int64
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger for request-level diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a transport adapter. selfID is the authenticated
// user's ID, used to classify message ownership during normalization.
func NewClient(baseURL, token string, selfID int64, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		selfID:     selfID,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential, e.g. after a refresh handled
// outside this package.
func (c *Client) SetToken(token string) { c.token = token }

// SelfID returns the authenticated user's ID.
func (c *Client) SelfID() int64 { return c.selfID }

// request performs one authenticated round trip and returns the raw body.
// Transport failures come back as *NetworkError, 4xx/5xx as *ServerError.
func (c *Client) request(ctx context.Context, method, path string, body any, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode >= 400 {
		se := &ServerError{Status: resp.StatusCode, Detail: extractDetail(data)}
		c.logger.Debug("backend error response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", se.Detail))
		return nil, se
	}

	return data, nil
}

// extractDetail pulls a human-readable message out of an error body.
// The backend is inconsistent about the key it uses.
func extractDetail(data []byte) string {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
