// Package notify posts lead and security notifications to Discord webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultRetryAttempts = 2
	defaultRetryDelay    = 2 * time.Second
	defaultHTTPTimeout   = 20 * time.Second
)

// DiscordNotifier sends payloads to a Discord webhook URL
type DiscordNotifier struct {
	logger        zerolog.Logger
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// NewDiscordNotifier creates a notifier. A nil client gets a 20s timeout.
func NewDiscordNotifier(logger zerolog.Logger, httpClient *http.Client) *DiscordNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &DiscordNotifier{
		logger:        logger.With().Str("component", "discord").Logger(),
		httpClient:    httpClient,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
}

// WithRetry overrides how often and how long a failed send is retried.
func (dn *DiscordNotifier) WithRetry(attempts int, delay time.Duration) *DiscordNotifier {
	if attempts < 0 {
		attempts = 0
	}
	dn.retryAttempts = attempts
	dn.retryDelay = delay
	return dn
}

// SendNotification posts payload to webhookURL. An empty URL is a no-op.
// 429 and 5xx responses are retried.
func (dn *DiscordNotifier) SendNotification(ctx context.Context, webhookURL string, payload MessagePayload) error {
	if webhookURL == "" {
		dn.logger.Debug().Msg("Webhook URL is empty. Skipping Discord notification.")
		return nil
	}
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return fmt.Errorf("invalid discord webhook url: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= dn.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(dn.retryDelay):
			}
		}

		retry, err := dn.send(ctx, webhookURL, body)
		if err == nil {
			dn.logger.Info().Int("attempt", attempt+1).Msg("Discord notification sent")
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
		dn.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Discord notification failed, retrying")
	}

	dn.logger.Error().Err(lastErr).Msg("Discord notification failed")
	return lastErr
}

func (dn *DiscordNotifier) send(ctx context.Context, webhookURL string, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dn.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("failed to send discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return retry, fmt.Errorf("discord notification failed with status %d: %s", resp.StatusCode, string(respBody))
}
