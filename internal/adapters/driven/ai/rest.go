package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// restClient posts JSON to a provider API and maps non-200 replies through statusError.
type restClient struct {
	provider string
	baseURL  string
	client   *http.Client

	// authorize sets the credential header on every request
	authorize func(*http.Request)

	// errorMessage extracts a readable message from an error body, or ""
	errorMessage func(body []byte) string
}

func newRESTClient(provider, baseURL string, timeout time.Duration) *restClient {
	return &restClient{
		provider: provider,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// post sends body to baseURL+path and decodes a 200 reply into out.
func (c *restClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authorize != nil {
		c.authorize(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if c.errorMessage != nil {
			msg = c.errorMessage(respBody)
		}
		return statusError(c.provider, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *restClient) close() {
	c.client.CloseIdleConnections()
}
