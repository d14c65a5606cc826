// Package client is an HTTP client for the decision service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TimurManjosov/goexperiment/internal/sdk"
)

// Client is an HTTP client for the decision service API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// User identifies who a decision is made for.
type User struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Segments   []string       `json:"segments,omitempty"`
}

// DecideRequest is the body of POST /v1/decide.
type DecideRequest struct {
	User              User     `json:"user"`
	Keys              []string `json:"keys,omitempty"`
	IncludeReasons    bool     `json:"includeReasons,omitempty"`
	IgnoreUserProfile bool     `json:"ignoreUserProfile,omitempty"`
}

// DecideResponse is the body returned by POST /v1/decide.
type DecideResponse struct {
	Decisions []sdk.Decision `json:"decisions"`
	Revision  string         `json:"revision"`
	ETag      string         `json:"etag"`
	DecidedAt string         `json:"decidedAt"`
}

// Assignment is a user's variation in one experiment.
type Assignment struct {
	ExperimentKey string `json:"experimentKey"`
	UserID        string `json:"userId"`
	VariationKey  string `json:"variationKey,omitempty"`
}

// Decide decides flags for a user. With no keys every flag is decided.
func (c *Client) Decide(ctx context.Context, req DecideRequest) (*DecideResponse, error) {
	var out DecideResponse
	if err := c.do(ctx, http.MethodPost, "/v1/decide", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Activate buckets user into an experiment.
func (c *Client) Activate(ctx context.Context, experimentKey string, user User) (*Assignment, error) {
	var out Assignment
	body := struct {
		User User `json:"user"`
	}{user}
	if err := c.do(ctx, http.MethodPost, "/v1/experiments/"+url.PathEscape(experimentKey)+"/activate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetForcedVariation forces user into variationKey. Requires the admin key.
func (c *Client) SetForcedVariation(ctx context.Context, experimentKey, userID, variationKey string) (*Assignment, error) {
	var out Assignment
	body := map[string]string{"variationKey": variationKey}
	if err := c.do(ctx, http.MethodPut, forcedPath(experimentKey, userID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForcedVariation returns the forced assignment, or an error for which
// IsNotFound is true when none is set.
func (c *Client) GetForcedVariation(ctx context.Context, experimentKey, userID string) (*Assignment, error) {
	var out Assignment
	if err := c.do(ctx, http.MethodGet, forcedPath(experimentKey, userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearForcedVariation removes a forced assignment. Requires the admin key.
func (c *Client) ClearForcedVariation(ctx context.Context, experimentKey, userID string) error {
	return c.do(ctx, http.MethodDelete, forcedPath(experimentKey, userID), nil, nil)
}

// GetDatafile fetches the datafile the server is serving and its ETag.
func (c *Client) GetDatafile(ctx context.Context) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/v1/datafile", nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.Header.Get("ETag"), nil
}

// PushDatafile replaces the served datafile and returns the new ETag.
// Requires the admin key.
func (c *Client) PushDatafile(ctx context.Context, data []byte) (string, error) {
	var out struct {
		ETag string `json:"etag"`
	}
	if err := c.do(ctx, http.MethodPut, "/v1/datafile", json.RawMessage(data), &out); err != nil {
		return "", err
	}
	return out.ETag, nil
}

func forcedPath(experimentKey, userID string) string {
	return "/v1/experiments/" + url.PathEscape(experimentKey) + "/forced-variations/" + url.PathEscape(userID)
}

// do sends in as JSON and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	bodyBytes, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if json.Unmarshal(bodyBytes, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = string(bodyBytes)
	}
	return nil, apiErr
}
