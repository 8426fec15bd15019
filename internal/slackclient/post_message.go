// Package slackclient is a minimal Slack Web API client used when an
// interpreted command targets a Slack channel.
package slackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://slack.com/api"

// APIError is a non-ok reply from the Slack Web API, e.g. code
// "channel_not_found" when a user names a channel that does not exist.
type APIError struct {
	Code string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack api error: %s", e.Code)
}

type Client struct {
	http     *http.Client
	baseURL  string
	botToken string
}

func New(httpClient *http.Client, baseURL, botToken string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		botToken: strings.TrimSpace(botToken),
	}
}

// PostMessage sends text to a channel, by ID or #name. Transient
// failures (429, 5xx) are retried; Slack's Retry-After header is
// honored when present.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	if c == nil || c.http == nil {
		return fmt.Errorf("slack client is not initialized")
	}
	if strings.TrimSpace(c.botToken) == "" {
		return fmt.Errorf("slack token is required")
	}
	channel = strings.TrimSpace(channel)
	text = strings.TrimSpace(text)
	if channel == "" {
		return fmt.Errorf("channel is required")
	}
	if text == "" {
		return fmt.Errorf("text is required")
	}

	body, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, headers, err := c.postOnce(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			// The API understood us and said no; retrying won't help.
			return err
		}
		if attempt >= maxAttempts {
			break
		}
		wait, retryable := retryDelay(status, headers, attempt)
		if !retryable {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) postOnce(ctx context.Context, body []byte) (int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, resp.Header, fmt.Errorf("slack chat.postMessage http %d", resp.StatusCode)
	}
	var out struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return resp.StatusCode, resp.Header, err
	}
	if !out.OK {
		code := strings.TrimSpace(out.Error)
		if code == "" {
			code = "unknown_error"
		}
		return resp.StatusCode, resp.Header, &APIError{Code: code}
	}
	return resp.StatusCode, resp.Header, nil
}

func retryDelay(status int, headers http.Header, attempt int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := strings.TrimSpace(headers.Get("Retry-After"))
		secs, err := strconv.Atoi(retryAfter)
		if err != nil || secs <= 0 {
			return 1 * time.Second, true
		}
		return time.Duration(secs) * time.Second, true
	case status >= 500 && status <= 599:
		switch attempt {
		case 1:
			return 300 * time.Millisecond, true
		case 2:
			return 1 * time.Second, true
		default:
			return 2 * time.Second, true
		}
	case status == 0:
		// Transport error, no HTTP status at all.
		return 500 * time.Millisecond, true
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
