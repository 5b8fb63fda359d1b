// Package discord is the REST adapter for the chat platform. It only maps
// requests and error classes; pacing, retries and backoff belong to the
// gateway that sits in front of it.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"warden.app/bot/internal/gateway"
	"warden.app/bot/internal/status"
)

const defaultBaseURL = "https://discord.com/api/v10"

type Config struct {
	BotToken string
	BaseURL  string // overridable for tests
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

var _ status.Surface = (*Client)(nil)

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		baseURL: baseURL,
		token:   cfg.BotToken,
	}
}

type message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Send posts a message and returns its platform ID.
func (c *Client) Send(ctx context.Context, channelID, content string) (string, error) {
	var msg message
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/messages", channelID),
		map[string]string{"content": content}, &msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

func (c *Client) Edit(ctx context.Context, channelID, messageID, content string) error {
	err := c.do(ctx, http.MethodPatch,
		fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID),
		map[string]string{"content": content}, nil)
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (c *Client) Fetch(ctx context.Context, channelID, messageID string) error {
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch message: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapStatus folds platform status codes into the two error classes callers
// dispatch on. Everything else surfaces as a plain error with the body
// attached for the logs.
func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return status.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return gateway.ErrRateLimited
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform returned %d: %s", resp.StatusCode, body)
	}
}
