// Package client is the remote counterpart of the embedded engine: it
// talks to a running daemon over its HTTP API and exposes the same
// operations on serialized records.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a remote client for an ember-store daemon.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the daemon at baseURL, e.g.
// "http://localhost:7102".
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Types lists the type names the daemon can reconstruct.
func (c *Client) Types() ([]string, error) {
	var names []string
	err := c.do(http.MethodGet, "/api/types", nil, &names)
	return names, err
}

// All returns every record, optionally filtered to one type name (""
// means everything), keyed "<TypeName>.<id>".
func (c *Client) All(typeName string) (map[string]map[string]any, error) {
	path := "/api/objects"
	if typeName != "" {
		path += "/" + url.PathEscape(typeName)
	}
	records := make(map[string]map[string]any)
	err := c.do(http.MethodGet, path, nil, &records)
	return records, err
}

// Get returns one record.
func (c *Client) Get(typeName, id string) (map[string]any, error) {
	var record map[string]any
	err := c.do(http.MethodGet, objectPath(typeName, id), nil, &record)
	return record, err
}

// Create builds a new object of the named type from attrs and persists
// it, returning the stored record.
func (c *Client) Create(typeName string, attrs map[string]any) (map[string]any, error) {
	var record map[string]any
	err := c.do(http.MethodPost, "/api/objects/"+url.PathEscape(typeName), attrs, &record)
	return record, err
}

// Update applies attrs onto an existing object and persists it.
func (c *Client) Update(typeName, id string, attrs map[string]any) (map[string]any, error) {
	var record map[string]any
	err := c.do(http.MethodPut, objectPath(typeName, id), attrs, &record)
	return record, err
}

// Delete removes an object and persists the removal.
func (c *Client) Delete(typeName, id string) error {
	return c.do(http.MethodDelete, objectPath(typeName, id), nil, nil)
}

// Save asks the daemon to persist its full registry.
func (c *Client) Save() error {
	return c.do(http.MethodPost, "/api/save", nil, nil)
}

// Reload asks the daemon to re-read its backing store.
func (c *Client) Reload() error {
	return c.do(http.MethodPost, "/api/reload", nil, nil)
}

// Stats returns the total object count and the per-type counts.
func (c *Client) Stats() (total int, counts map[string]int, err error) {
	var out struct {
		Total  int            `json:"total"`
		Counts map[string]int `json:"counts"`
	}
	if err := c.do(http.MethodGet, "/api/stats", nil, &out); err != nil {
		return 0, nil, err
	}
	return out.Total, out.Counts, nil
}

func objectPath(typeName, id string) string {
	return "/api/objects/" + url.PathEscape(typeName) + "/" + url.PathEscape(id)
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, envelope.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
