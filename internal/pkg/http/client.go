package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"time"
)

const (
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second
)

// Client is a generic HTTP client for communicating with external services.
// Every request carries an explicit timeout via the underlying client.
type Client struct {
	BaseURL    string
	HTTPClient *nethttp.Client
}

// NewClient creates a new HTTP client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		BaseURL: baseURL,
		HTTPClient: &nethttp.Client{
			Timeout: timeout,
		},
	}
}

// Get performs a GET request with the given headers and decodes the JSON response
func (c *Client) Get(ctx context.Context, endpoint string, headers map[string]string, out interface{}) (int, error) {
	return c.doRequest(ctx, nethttp.MethodGet, endpoint, nil, headers, out)
}

// PostJSON performs a POST request with a JSON body and decodes the JSON response
func (c *Client) PostJSON(ctx context.Context, endpoint string, body interface{}, headers map[string]string, out interface{}) (int, error) {
	return c.doRequest(ctx, nethttp.MethodPost, endpoint, body, headers, out)
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string, out interface{}) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
