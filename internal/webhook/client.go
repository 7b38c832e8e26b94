// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dotandev/lockup/internal/logger"
)

// WebhookType defines the supported webhook platforms
type WebhookType string

const (
	SlackWebhook   WebhookType = "slack"
	DiscordWebhook WebhookType = "discord"
	// JSONWebhook posts the Notice itself.
	JSONWebhook WebhookType = "json"
)

// Config represents webhook configuration
type Config struct {
	Type    WebhookType
	URL     string
	Timeout time.Duration
	Retries int
	// Backoff is the first retry delay; it doubles on every attempt.
	Backoff time.Duration
}

// Client handles webhook delivery
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new webhook client with validation
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook URL cannot be empty")
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https")
	}

	switch config.Type {
	case "":
		config.Type = JSONWebhook
	case SlackWebhook, DiscordWebhook, JSONWebhook:
	default:
		return nil, fmt.Errorf("unsupported webhook type: %s", config.Type)
	}

	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.Backoff == 0 {
		config.Backoff = time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (c *Client) Type() WebhookType {
	return c.config.Type
}

// Send delivers n, retrying with exponential backoff until ctx ends.
func (c *Client) Send(ctx context.Context, n Notice) error {
	var payload interface{}
	switch c.config.Type {
	case SlackWebhook:
		payload = FormatSlackMessage(n)
	case DiscordWebhook:
		payload = FormatDiscordMessage(n)
	default:
		payload = n
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return c.sendWithRetry(ctx, body)
}

func (c *Client) sendWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	backoff := c.config.Backoff

	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		if attempt > 0 {
			logger.Logger.Debug("Retrying webhook send", "attempt", attempt+1, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook delivery abandoned: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := c.sendRequest(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Logger.Warn("Webhook send failed", "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", c.config.Retries+1, lastErr)
}

func (c *Client) sendRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "saled/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	logger.Logger.Debug("Webhook sent", "type", c.config.Type, "status", resp.StatusCode)
	return nil
}
