// Package institutions provides the HTTP client for the topology institutions
// backend. This is part of the Imperative Shell: it performs the network I/O
// the pure engines never do.
package institutions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osg-htc/topology-institutions-admin/internal/core/apierror"
	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
)

// =============================================================================
// Service Interface
// =============================================================================

// Service is the contract the sessions and the CLI consume.
// Implementations must be safe for concurrent use.
type Service interface {
	// List returns every active institution.
	List(ctx context.Context) ([]domain.Institution, error)

	// Get returns one institution by short or canonical ID.
	Get(ctx context.Context, id string) (*domain.Institution, error)

	// Create adds a new institution and returns the stored record.
	Create(ctx context.Context, inst domain.Institution) (*domain.Institution, error)

	// Update replaces the institution with the full record.
	Update(ctx context.Context, id string, inst domain.Institution) error

	// Delete deactivates the institution.
	Delete(ctx context.Context, id string) error
}

// =============================================================================
// HTTP Client
// =============================================================================

// Client implements Service over JSON/HTTP.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds backend client configuration.
type Config struct {
	BaseURL string            // Backend base URL, e.g., "http://localhost:8089"
	Headers map[string]string // Extra headers sent with every request
	Timeout time.Duration
}

// NewClient creates a new backend client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "institutions_client"),
	}
}

var _ Service = (*Client)(nil)

// =============================================================================
// Operations
// =============================================================================

// List fetches GET /institution_ids.
func (c *Client) List(ctx context.Context) ([]domain.Institution, error) {
	var out []domain.Institution
	if err := c.do(ctx, "list", "", http.MethodGet, "/institution_ids", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches GET /institutions/{shortID}.
func (c *Client) Get(ctx context.Context, id string) (*domain.Institution, error) {
	shortID := domain.StripPrefix(id)
	var out domain.Institution
	if err := c.do(ctx, "get", shortID, http.MethodGet, institutionPath(shortID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create sends POST /institutions. The backend answers either with the stored
// record or with a bare acknowledgement; in the latter case the submitted
// record is returned as-is.
func (c *Client) Create(ctx context.Context, inst domain.Institution) (*domain.Institution, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "create", "", http.MethodPost, "/institutions", inst, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var created domain.Institution
		if err := json.Unmarshal(trimmed, &created); err != nil {
			return nil, &TransportError{Op: "create", Message: "decode response", Err: err}
		}
		return &created, nil
	}
	return &inst, nil
}

// Update sends PUT /institutions/{shortID} with the full record.
func (c *Client) Update(ctx context.Context, id string, inst domain.Institution) error {
	shortID := domain.StripPrefix(id)
	return c.do(ctx, "update", shortID, http.MethodPut, institutionPath(shortID), inst, nil)
}

// Delete sends DELETE /institutions/{shortID}.
func (c *Client) Delete(ctx context.Context, id string) error {
	shortID := domain.StripPrefix(id)
	return c.do(ctx, "delete", shortID, http.MethodDelete, institutionPath(shortID), nil, nil)
}

// =============================================================================
// Helper Methods
// =============================================================================

func institutionPath(shortID string) string {
	return "/institutions/" + url.PathEscape(shortID)
}

// do performs one request. A nil in skips the body, a nil out discards the
// response.
func (c *Client) do(ctx context.Context, op, id, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, ID: id, Message: "marshal request", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, ID: id, Message: "create request", Err: err}
	}
	requestID := uuid.NewString()
	c.setHeaders(req, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, ID: id, Message: "send request", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		sentinel := ErrUnexpectedStatus
		if resp.StatusCode == http.StatusNotFound {
			sentinel = ErrNotFound
		}
		return &TransportError{
			Op:         op,
			ID:         id,
			StatusCode: resp.StatusCode,
			Message:    apierror.Message(data, fallbackMessage(op)),
			Err:        sentinel,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return &TransportError{Op: op, ID: id, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", requestID)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func fallbackMessage(op string) string {
	switch op {
	case "create":
		return "Error adding an institution"
	case "update":
		return "Error updating institution"
	case "delete":
		return "Error deleting institution"
	}
	return fmt.Sprintf("Error during %s", op)
}
