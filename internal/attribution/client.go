// Package attribution implements the outbound purchase-conversion dispatch
// to the ad-attribution platform. Dispatch is strictly best-effort: the
// webhook pipeline logs failures and never lets a third-party outage fail
// an already-reconciled delivery.
package attribution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single conversion call so a slow third party
// cannot hold the webhook HTTP response open indefinitely.
const DefaultTimeout = 5 * time.Second

// ErrNotConfigured is returned when the client has no API URL to post to.
var ErrNotConfigured = errors.New("attribution: no API URL configured")

// Conversion is one purchase-conversion event.
type Conversion struct {
	OrderID       string  `json:"orderId"`
	CustomerEmail string  `json:"customerEmail,omitempty"`
	CustomerPhone string  `json:"customerPhone,omitempty"`
	CustomerName  string  `json:"customerName,omitempty"`
	TotalAmount   float64 `json:"totalAmount"`
	Currency      string  `json:"currency"`
}

// Client posts conversions to the attribution API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New builds a Client. baseURL empty yields a client whose calls return
// ErrNotConfigured (dispatch disabled). timeout <= 0 uses DefaultTimeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether the client is configured to dispatch.
func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

// SendConversion posts one purchase conversion. Non-2xx responses are
// errors; bodies are drained and discarded either way.
func (c *Client) SendConversion(ctx context.Context, conv Conversion) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("attribution: encode conversion: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/conversions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("attribution: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Api-Token", c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("attribution: dispatch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("attribution: API returned %d", resp.StatusCode)
	}
	return nil
}
