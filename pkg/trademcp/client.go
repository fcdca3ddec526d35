// Package trademcp is a Go client for the operations endpoints of a running
// trademcp-server.
package trademcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides typed access to the trademcp-server ops API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new ops API client for baseURL, e.g.
// http://localhost:9464.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Tool is one entry of the server's tool listing.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"read_only"`
	Destructive bool   `json:"destructive"`
}

// JournalEntry is one journaled submission as the server reports it.
type JournalEntry struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	Tool      string    `json:"tool"`
	Class     string    `json:"order_class"`
	Symbol    string    `json:"symbol"`
	Request   string    `json:"request"`
	Status    string    `json:"status"`
	OrderIDs  []string  `json:"order_ids,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JournalFilter narrows a journal listing. Zero fields are ignored.
type JournalFilter struct {
	Since  time.Time
	Until  time.Time
	Status string
	Limit  int
}

// Healthy reports whether the server answers its liveness check with 200.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, "/healthz")
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Tools lists the tools the server exposes.
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	return tools, c.getJSON(ctx, "/api/tools", &tools)
}

// Journal lists journaled submissions, newest first.
func (c *Client) Journal(ctx context.Context, f JournalFilter) ([]JournalEntry, error) {
	q := url.Values{}
	if !f.Since.IsZero() {
		q.Set("since", f.Since.Format(time.RFC3339))
	}
	if !f.Until.IsZero() {
		q.Set("until", f.Until.Format(time.RFC3339))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/api/journal"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var entries []JournalEntry
	return entries, c.getJSON(ctx, path, &entries)
}

// JournalEntry returns the entry recorded under a client order id or
// linked group id.
func (c *Client) JournalEntry(ctx context.Context, reference string) (*JournalEntry, error) {
	var e JournalEntry
	if err := c.getJSON(ctx, "/api/journal/"+url.PathEscape(reference), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, body.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
