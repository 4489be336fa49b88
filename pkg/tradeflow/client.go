// Package tradeflow provides a Go SDK for the tradeflow server's HTTP API.
// It speaks the wire format directly and has no dependency on the server's
// internal packages, so it can be imported from outside the module.
package tradeflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client provides typed access to the tradeflow server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new tradeflow API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateAccount provisions a new trading account.
func (c *Client) CreateAccount(ctx context.Context) (*Account, error) {
	var resp Account
	if err := c.do(ctx, http.MethodPost, "/api/v1/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}
	return &resp, nil
}

// SetStrategy enables or disables a strategy by name.
func (c *Client) SetStrategy(ctx context.Context, name string, enabled bool) error {
	path := "/api/v1/strategies/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodPut, path, toggleRequest{Enabled: enabled}, nil); err != nil {
		return fmt.Errorf("SetStrategy %s: %w", name, err)
	}
	return nil
}

// ListStrategies returns all persisted strategy toggles.
func (c *Client) ListStrategies(ctx context.Context) ([]StrategyToggle, error) {
	var resp strategiesResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/strategies", nil, &resp); err != nil {
		return nil, fmt.Errorf("ListStrategies: %w", err)
	}
	return resp.Strategies, nil
}

// PostFill delivers a fill event to the reconciler.
func (c *Client) PostFill(ctx context.Context, fill Fill) error {
	if err := c.do(ctx, http.MethodPost, "/api/v1/fills", fill, nil); err != nil {
		return fmt.Errorf("PostFill %s: %w", fill.OrderID, err)
	}
	return nil
}

// ListOrders returns orders matching the given status; an empty status
// returns every order.
func (c *Client) ListOrders(ctx context.Context, status string) ([]Order, error) {
	path := "/api/v1/orders"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp ordersResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("ListOrders: %w", err)
	}
	return resp.Orders, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("Health: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
