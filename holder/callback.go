package holder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CallbackDeliveryError reports a failed proof delivery to the verifier's
// callback endpoint. Delivery is best effort: the orchestrator logs this and
// keeps the request approved.
type CallbackDeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *CallbackDeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("callback delivery to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("callback delivery to %s failed with status %d", e.URL, e.StatusCode)
}

func (e *CallbackDeliveryError) Unwrap() error { return e.Err }

// CallbackClient POSTs proof responses to verifier callback URLs.
type CallbackClient struct {
	httpClient *http.Client
}

// NewCallbackClient creates a callback client. A nil httpClient gets a
// default with a 30s timeout.
func NewCallbackClient(httpClient *http.Client) *CallbackClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &CallbackClient{httpClient: httpClient}
}

// Submit delivers one serialized proof response. Single attempt, no retry;
// the reference wallet does not retry either.
func (c *CallbackClient) Submit(ctx context.Context, callbackURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return &CallbackDeliveryError{URL: callbackURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CallbackDeliveryError{URL: callbackURL, Err: err}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &CallbackDeliveryError{URL: callbackURL, StatusCode: resp.StatusCode}
	}

	return nil
}
