// Package api provides the HTTP client for the sync backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ankitmehra/posd/internal/queue"
)

// PushOperation is one queued mutation on the wire.
type PushOperation struct {
	OperationID      string          `json:"operationId"`
	OperationType    string          `json:"operationType"`
	TargetCollection string          `json:"targetCollection"`
	DocumentID       string          `json:"documentId"`
	Payload          json.RawMessage `json:"payload"`
}

// PushRequest batches a bounded set of operations for delivery. The server
// treats operationId as an idempotency key: a duplicate push of an already
// applied operation is a no-op on the server side.
type PushRequest struct {
	TenantID   string          `json:"tenantId"`
	Operations []PushOperation `json:"operations"`
}

// Per-operation result statuses in a 200 push response.
const (
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

// PushResult is the server's verdict on a single operation.
type PushResult struct {
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// PushResponse is the 200 body of a push call. An operation missing from
// Results was accepted.
type PushResponse struct {
	Results []PushResult `json:"results"`
}

// PullRequest asks for remote changes after the given cursor. An empty
// cursor means "from the beginning".
type PullRequest struct {
	TenantID string `json:"tenantId"`
	Cursor   string `json:"cursor"`
}

// PullResponse carries remote document changes plus the cursor to persist
// for the next pull.
type PullResponse struct {
	Changes []queue.RemoteChange `json:"changes"`
	Cursor  string               `json:"cursor"`
}

// NewPushRequest assembles a wire request from queue items.
func NewPushRequest(tenantID string, items []queue.Item) PushRequest {
	ops := make([]PushOperation, len(items))
	for i, item := range items {
		ops[i] = PushOperation{
			OperationID:      item.OperationID,
			OperationType:    string(item.OperationType),
			TargetCollection: item.Collection,
			DocumentID:       item.DocumentID,
			Payload:          item.Payload,
		}
	}
	return PushRequest{TenantID: tenantID, Operations: ops}
}

// NetworkError wraps connectivity and timeout failures. Always retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-200 response, delivered but rejected. 5xx responses
// are retryable; 4xx responses are not, since retrying an invalid payload
// cannot succeed.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure can be retried.
func (e *ServerError) Retryable() bool { return e.StatusCode >= 500 }

// TokenProvider supplies the bearer token for each request, so the host app
// can refresh tokens without restarting the client.
type TokenProvider func() (string, error)

// StaticToken returns a provider that always yields the given token.
func StaticToken(token string) TokenProvider {
	return func() (string, error) { return token, nil }
}

// credentialsFile represents ~/.config/posd/credentials.yml.
type credentialsFile struct {
	Token string `yaml:"token"`
}

// DefaultTokenProvider looks up the bearer token from, in order:
// 1. The POSD_TOKEN environment variable
// 2. ~/.config/posd/credentials.yml
func DefaultTokenProvider() (string, error) {
	if token := os.Getenv("POSD_TOKEN"); token != "" {
		return token, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", "posd", "credentials.yml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("no token found: set POSD_TOKEN or create %s", configPath)
	}

	var creds credentialsFile
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if creds.Token == "" {
		return "", fmt.Errorf("no token in %s", configPath)
	}
	return creds.Token, nil
}

// Client is a stateless sync backend client. It performs single push and
// pull calls; all retry and batching policy lives in the engine.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

// New creates a backend client. timeout bounds each request; a timeout is
// surfaced as a NetworkError, not a fatal failure.
func New(baseURL string, tokens TokenProvider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Push delivers a batch of operations. A nil error means the server
// accepted the batch; individual operations may still be rejected in the
// response results.
func (c *Client) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	var resp PushResponse
	if err := c.post(ctx, "/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull fetches remote changes since the request cursor. No side effects
// beyond the HTTP call.
func (c *Client) Pull(ctx context.Context, req PullRequest) (*PullResponse, error) {
	var resp PullResponse
	if err := c.post(ctx, "/sync/pull", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post performs an authenticated JSON POST and decodes the 200 body into out.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.tokens()
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &ServerError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
