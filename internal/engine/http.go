package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"grimm.is/headmod/internal/brand"
)

// HTTPEngine talks to a rule engine hosted in another process over its JSON
// API: GET /rules lists the registered set, POST /rules/changes applies a
// combined change set. Used when the matching engine and the synchronizer
// run in independently-lifecycled contexts.
type HTTPEngine struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPOption configures the HTTPEngine.
type HTTPOption func(*HTTPEngine)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(e *HTTPEngine) {
		e.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPEngine) {
		e.httpClient = c
	}
}

// NewHTTPEngine creates an engine client for the given base URL.
func NewHTTPEngine(baseURL string, opts ...HTTPOption) *HTTPEngine {
	e := &HTTPEngine{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListRules returns the remote engine's current rule set.
func (e *HTTPEngine) ListRules(ctx context.Context) ([]Rule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/rules", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list rules: %s", readAPIError(resp))
	}

	var rules []Rule
	if err := json.NewDecoder(resp.Body).Decode(&rules); err != nil {
		return nil, fmt.Errorf("list rules: decode: %w", err)
	}
	return rules, nil
}

// ApplyChanges posts a combined change set to the remote engine.
func (e *HTTPEngine) ApplyChanges(ctx context.Context, changes Changes) error {
	body, err := json.Marshal(changes)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/rules/changes", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("apply changes: %s", readAPIError(resp))
	}
	return nil
}

// readAPIError extracts an error message from a non-2xx response body.
func readAPIError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(data))
}
