// Package api is the typed REST client for the waxtrade backend. Every call
// carries the session credential; mutating calls carry an idempotency key so
// the backend can replay a response instead of re-applying an action.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"waxtrade/internal/infra/security"
)

// Config defines client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client wraps the backend REST API. It is the single owner of the bearer
// credential for a client process.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
	logger    *slog.Logger

	mu   sync.RWMutex
	cred security.Credential
}

// NewClient builds a client for the given backend.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("api: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:      base,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// UseCredential installs the bearer credential used by subsequent calls.
func (c *Client) UseCredential(cred security.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = cred
}

// Credential returns the currently installed credential.
func (c *Client) Credential() security.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cred
}

// do issues one request and decodes the response into out (when non-nil).
// Mutating verbs get an Idempotency-Key header.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if cred := c.Credential(); cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("request failed", "op", op, "error", err)
		}
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &Error{Op: op, Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}

// errorMessage extracts the {"error": "..."} body the backend responds with.
func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Error == "" {
		return "request rejected"
	}
	return payload.Error
}
