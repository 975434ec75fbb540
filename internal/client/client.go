// Package client provides an API client for remote daemon management.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/profile"
	"grimm.is/headmod/internal/state"
)

// StatusInfo mirrors the API status response. Defined locally to avoid
// importing the heavy internal/api package.
type StatusInfo struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Power           bool   `json:"power"`
	ProfileCount    int    `json:"profileCount"`
	RegisteredRules int    `json:"registeredRules"`
	RuleErrors      int    `json:"ruleErrors"`
}

// HTTPClient talks to a running daemon over its HTTP API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// NewHTTPClient creates a new HTTPClient for the given base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an HTTP request and decodes the JSON response.
func (c *HTTPClient) doRequest(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetStatus retrieves the daemon status.
func (c *HTTPClient) GetStatus() (*StatusInfo, error) {
	var info StatusInfo
	if err := c.doRequest(http.MethodGet, "/api/status", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListProfiles retrieves all stored profiles.
func (c *HTTPClient) ListProfiles() ([]profile.Profile, error) {
	var profiles []profile.Profile
	if err := c.doRequest(http.MethodGet, "/api/profiles", nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// SetPower toggles request interception.
func (c *HTTPClient) SetPower(on bool) error {
	return c.doRequest(http.MethodPut, "/api/power", map[string]bool{"on": on}, nil)
}

// ListEngineRules retrieves the engine's registered rules.
func (c *HTTPClient) ListEngineRules() ([]engine.Rule, error) {
	var rules []engine.Rule
	if err := c.doRequest(http.MethodGet, "/api/rules", nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// RuleIDs retrieves the profile-to-engine-rule mapping.
func (c *HTTPClient) RuleIDs() (map[uuid.UUID]int, error) {
	var raw map[string]int
	if err := c.doRequest(http.MethodGet, "/api/rules/ids", nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(raw))
	for k, v := range raw {
		id, err := uuid.Parse(k)
		if err != nil {
			return nil, fmt.Errorf("bad profile id %q in response", k)
		}
		out[id] = v
	}
	return out, nil
}

// RuleErrors retrieves the per-profile sync error records.
func (c *HTTPClient) RuleErrors() ([]state.RuleError, error) {
	var errs []state.RuleError
	if err := c.doRequest(http.MethodGet, "/api/rules/errors", nil, &errs); err != nil {
		return nil, err
	}
	return errs, nil
}

// Reinitialize queues a full engine rebuild.
func (c *HTTPClient) Reinitialize() error {
	return c.doRequest(http.MethodPost, "/api/rules/reinitialize", nil, nil)
}

// Export downloads the profile archive.
func (c *HTTPClient) Export() ([]byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/export")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// Import uploads a profile archive, replacing the stored set.
func (c *HTTPClient) Import(data []byte) (int, error) {
	resp, err := c.httpClient.Post(c.baseURL+"/api/import", "application/yaml", bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	var result struct {
		Imported int `json:"imported"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Imported, nil
}
