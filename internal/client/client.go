// Package client talks to a running lifeaxes server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lazypower/lifeaxes/internal/store"
)

const (
	defaultServerURL = "http://127.0.0.1:37780"
	httpTimeout      = 10 * time.Second
)

// Client is a thin JSON client for the lifeaxes API.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty URL falls back to
// LIFEAXES_URL and then to http://127.0.0.1:37780.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("LIFEAXES_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL returns the server base URL.
func (c *Client) URL() string { return c.serverURL }

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// Post sends a POST request with a JSON body and returns the response body.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Get sends a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.Get(ctx, "/api/health")
	return err == nil
}

// LogActivities appends activities to a user's log and returns how many
// were new.
func (c *Client) LogActivities(ctx context.Context, userID string, acts []store.Activity) (int, error) {
	body, err := json.Marshal(acts)
	if err != nil {
		return 0, fmt.Errorf("encode activities: %w", err)
	}
	data, err := c.Post(ctx, "/api/users/"+url.PathEscape(userID)+"/activities", body)
	if err != nil {
		return 0, err
	}
	var out struct {
		Inserted int `json:"inserted"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.Inserted, nil
}

// Run triggers a persisted run and returns the raw report.
func (c *Client) Run(ctx context.Context, userID, window string) (json.RawMessage, error) {
	path := "/api/users/" + url.PathEscape(userID) + "/runs"
	if window != "" {
		path += "?window=" + url.QueryEscape(window)
	}
	data, err := c.Post(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
