package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/broadsend/groupcast/internal/pkg/httpretry"
)

// GatewayClient talks to a group-messaging gateway over its JSON HTTP API.
// The same wire shape serves both the WhatsApp and Telegram gateways.
type GatewayClient struct {
	baseURL string
	apiKey  string
	client  httpretry.HTTPDoer
}

// NewGatewayClient creates a gateway client. A nil doer gets a retrying
// client with a 30s timeout.
func NewGatewayClient(baseURL, apiKey string, doer httpretry.HTTPDoer) *GatewayClient {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	}
	return &GatewayClient{baseURL: baseURL, apiKey: apiKey, client: doer}
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("gateway %s %s: status %d: %s", method, path, resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

// ConnectionStatus implements Adapter.
func (c *GatewayClient) ConnectionStatus(ctx context.Context, owner string) (Status, error) {
	var out struct {
		Status Status `json:"status"`
	}
	path := "/accounts/" + url.PathEscape(owner) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return StatusError, err
	}
	return out.Status, nil
}

// SendToGroup implements Adapter.
func (c *GatewayClient) SendToGroup(ctx context.Context, owner, chatID string, msg Message) error {
	body := struct {
		ChatID string `json:"chat_id"`
		Message
	}{ChatID: chatID, Message: msg}
	path := "/accounts/" + url.PathEscape(owner) + "/send"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// ListGroups implements Adapter.
func (c *GatewayClient) ListGroups(ctx context.Context, owner string) ([]GroupInfo, error) {
	var out struct {
		Groups []GroupInfo `json:"groups"`
	}
	path := "/accounts/" + url.PathEscape(owner) + "/groups"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}
