package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// defaultTimeout bounds a single HTTP request when none is configured.
const defaultTimeout = 30 * time.Second

// Client is a thin HTTP client for the Jira Server/DC REST API v2.
// It handles Bearer token authentication and JSON marshaling. Reads are
// retried with exponential backoff on HTTP 429; writes are sent once.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new Jira HTTP client. The baseURL should be the
// root URL of the Jira instance (e.g., https://jira.corp.example.com).
// The token is a Personal Access Token used for Bearer authentication.
// A zero timeout selects the default of 30s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
	}
}

// BaseURL returns the root URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, nil, result, c.maxRetries)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response. Only idempotent queries (search) go through Post, so
// rate-limited requests are retried.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, body, result, c.maxRetries)
}

// Put performs a single HTTP PUT request with a JSON body. It is never
// retried.
func (c *Client) Put(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPut, path, body, result, 0)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	maxRetries int,
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(
			ctx, method, url, bodyReader,
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = newAPIError(resp.StatusCode, method, path, respBody)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newAPIError(resp.StatusCode, method, path, respBody)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", maxRetries, lastErr,
	)
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	Status   int
	Method   string
	Path     string
	Messages []string
	Errors   map[string]string
	Body     string
}

func (e *APIError) Error() string {
	switch {
	case e.Status == http.StatusUnauthorized:
		return fmt.Sprintf(
			"authentication failed (401) on %s %s: check the Personal Access Token",
			e.Method, e.Path,
		)
	case len(e.Messages) > 0 || len(e.Errors) > 0:
		return fmt.Sprintf(
			"jira API error (%d) on %s %s: %s %v",
			e.Status, e.Method, e.Path,
			strings.Join(e.Messages, "; "), e.Errors,
		)
	default:
		return fmt.Sprintf(
			"unexpected status %d on %s %s: %s",
			e.Status, e.Method, e.Path, e.Body,
		)
	}
}

// StatusCode returns the HTTP status of the response.
func (e *APIError) StatusCode() int {
	return e.Status
}

func newAPIError(status int, method, path string, body []byte) *APIError {
	apiErr := &APIError{
		Status: status,
		Method: method,
		Path:   path,
	}

	var jiraErr ErrorResponse
	if json.Unmarshal(body, &jiraErr) == nil &&
		(len(jiraErr.ErrorMessages) > 0 || len(jiraErr.Errors) > 0) {
		apiErr.Messages = jiraErr.ErrorMessages
		apiErr.Errors = jiraErr.Errors
		return apiErr
	}

	apiErr.Body = string(body)
	return apiErr
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
