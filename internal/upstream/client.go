package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatrelay/internal/config"
	"chatrelay/internal/models"
)

// HTTPError reports a non-2xx answer from the completion API. The relay
// treats it as a single non-retryable failure; retries are a client concern.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Client opens streaming completion requests against the configured API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

type completionRequest struct {
	Model    string                `json:"model"`
	Messages []models.HistoryEntry `json:"messages"`
	Stream   bool                  `json:"stream"`
}

// OpenStream starts a streaming completion for the given message window and
// returns the raw event body. The caller owns closing it.
func (c *Client) OpenStream(ctx context.Context, messages []models.HistoryEntry) (io.ReadCloser, error) {
	payload, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	if resp.Body == nil {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: "empty response body"}
	}
	return resp.Body, nil
}
