// Package fleet fetches rider snapshots from the fleet management API.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/courierdispatch/auth"
	"github.com/kilianp07/courierdispatch/connectors"
	"github.com/kilianp07/courierdispatch/core/model"
)

const ridersPath = "/riders"

// Client is a connectors.FleetSource backed by HTTP.
type Client struct {
	baseURL string
	auth    *auth.ClientCred
	http    *http.Client
}

var _ connectors.FleetSource = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithAuth authenticates requests with OAuth2 client credentials.
func WithAuth(a *auth.ClientCred) Option {
	return func(c *Client) { c.auth = a }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ridersResponse struct {
	Riders []model.Candidate `json:"riders"`
}

// Fetch retrieves every rider with its shift. A 401 answer with auth
// configured forces a token refresh and the request is sent once more.
func (c *Client) Fetch(ctx context.Context) ([]model.Candidate, error) {
	resp, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && c.auth != nil {
		_ = resp.Body.Close()
		if _, err := c.auth.ForceRefresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}
		if resp, err = c.get(ctx); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	var out ridersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Riders, nil
}

func (c *Client) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ridersPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}
