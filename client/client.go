// Package client is the requester-side client of the verifier API: fetch an
// authorization request, then poll its session until it verifies.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.echoid.dev/verify/api"
	"go.echoid.dev/verify/protocol"
)

// DefaultPollInterval matches the reference front-end's 2000ms status poll.
const DefaultPollInterval = 2 * time.Second

// Client talks to one verifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a verifier client. A nil httpClient gets a default with a 30s
// timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SignIn fetches a fresh authorization request from the verifier.
func (c *Client) SignIn(ctx context.Context) (*protocol.AuthorizationRequest, error) {
	var request protocol.AuthorizationRequest
	if err := c.getJSON(ctx, c.baseURL+"/api/sign-in", &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// Status polls the verification state of one session once.
func (c *Client) Status(ctx context.Context, sessionID string) (*api.StatusResponse, error) {
	endpoint := fmt.Sprintf("%s/api/status?sessionId=%s", c.baseURL, url.QueryEscape(sessionID))

	var status api.StatusResponse
	if err := c.getJSON(ctx, endpoint, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForVerification polls Status on a fixed interval until the session
// verifies or ctx is cancelled. The first poll fires immediately; the ticker
// is always stopped on return so teardown leaks no timers.
func (c *Client) WaitForVerification(ctx context.Context, sessionID string, interval time.Duration) (*api.StatusResponse, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if status.Verified() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("verifier returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("verifier returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}
