// Package sandbox provides the client for the hosted sandbox provider and
// the deployment flow that runs generated projects inside it.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config holds sandbox provider configuration.
type Config struct {
	// APIKey authenticates against the provider. Empty means the provider
	// is not configured and live deployment is unavailable.
	APIKey string
	// APIURL is the provider's API base URL.
	APIURL string
	// Target selects the provider region.
	Target string
	// ExecTimeout bounds one command execution.
	ExecTimeout time.Duration
	// PreviewPort is the port the dev server listens on.
	PreviewPort int
}

// Instance is one provisioned sandbox.
type Instance struct {
	ID string `json:"id"`
}

// ExecResult is the outcome of one command run inside a sandbox.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"result"`
}

// Client talks to the sandbox provider's HTTP API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a sandbox provider client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ExecTimeout == 0 {
		cfg.ExecTimeout = 60 * time.Second
	}
	if cfg.PreviewPort == 0 {
		cfg.PreviewPort = 8080
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 5 * time.Minute},
		logger: logger,
	}
}

// Configured reports whether the provider credentials are set.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Create provisions a fresh sandbox from the node image.
func (c *Client) Create(ctx context.Context) (*Instance, error) {
	req := map[string]any{
		"image":                "node:20",
		"target":               c.cfg.Target,
		"public":               true,
		"auto_delete_interval": 3600,
	}

	inst := &Instance{}
	if err := c.post(ctx, "/sandboxes", req, inst); err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}

	c.logger.Info("sandbox created", "sandbox_id", inst.ID)
	return inst, nil
}

// Upload writes one file into the sandbox filesystem.
func (c *Client) Upload(ctx context.Context, inst *Instance, path string, content []byte) error {
	req := map[string]any{
		"path":    path,
		"content": content, // base64-encoded by encoding/json
	}

	if err := c.post(ctx, "/sandboxes/"+inst.ID+"/fs/upload", req, nil); err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	return nil
}

// Exec runs a shell command inside the sandbox and returns its result.
// The timeout argument overrides the configured exec timeout when positive.
func (c *Client) Exec(ctx context.Context, inst *Instance, cmd string, timeout time.Duration) (*ExecResult, error) {
	if timeout <= 0 {
		timeout = c.cfg.ExecTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := map[string]any{
		"command": cmd,
		"timeout": int(timeout.Seconds()),
	}

	result := &ExecResult{}
	if err := c.post(ctx, "/sandboxes/"+inst.ID+"/process/exec", req, result); err != nil {
		return nil, fmt.Errorf("executing command: %w", err)
	}
	return result, nil
}

// PreviewURL returns a signed, externally reachable URL for a port inside
// the sandbox.
func (c *Client) PreviewURL(ctx context.Context, inst *Instance, port int) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}

	path := fmt.Sprintf("/sandboxes/%s/preview/%d", inst.ID, port)
	if err := c.post(ctx, path, map[string]any{"expires_in_seconds": 1200}, &resp); err != nil {
		return "", fmt.Errorf("creating preview url: %w", err)
	}
	return resp.URL, nil
}

// post sends one JSON request to the provider and decodes the response
// into out when non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
