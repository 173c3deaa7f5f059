// Package client is a small HTTP client for the hostling daemon's REST API,
// used by the CLI subcommands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8211/api",
		Timeout: 10 * time.Second,
	}
}

// Client talks to a running hostling daemon.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// StartRequest mirrors the daemon's resource spec body.
type StartRequest struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	FilePath string `json:"file_path,omitempty"`
	Config   string `json:"config,omitempty"`
}

// ResourceStatus is the daemon's combined desired/actual view.
type ResourceStatus struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	DesiredStatus string    `json:"desired_status"`
	FilePath      string    `json:"file_path"`
	Running       bool      `json:"running"`
	PID           int       `json:"pid,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) Start(ctx context.Context, req StartRequest) error {
	return c.postJSON(ctx, "/start", req)
}

func (c *Client) Restart(ctx context.Context, req StartRequest) error {
	return c.postJSON(ctx, "/restart", req)
}

func (c *Client) Stop(ctx context.Context, id string) error {
	return c.post(ctx, "/stop?id="+url.QueryEscape(id), nil)
}

func (c *Client) Reconcile(ctx context.Context) error {
	return c.post(ctx, "/reconcile", nil)
}

func (c *Client) Status(ctx context.Context, id string) (ResourceStatus, error) {
	var st ResourceStatus
	err := c.getJSON(ctx, "/status?id="+url.QueryEscape(id), &st)
	return st, err
}

func (c *Client) List(ctx context.Context) ([]ResourceStatus, error) {
	var sts []ResourceStatus
	err := c.getJSON(ctx, "/resources", &sts)
	return sts, err
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.post(ctx, path, bytes.NewReader(data))
}

func (c *Client) post(ctx context.Context, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	return checkStatus(resp)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var ae apiError
	if err := json.NewDecoder(resp.Body).Decode(&ae); err == nil && ae.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, ae.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
