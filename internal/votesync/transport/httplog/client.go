// Package httplog submits votes to a remote transparency log over HTTP.
package httplog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fortis/internal/votesync"
	"fortis/pkg/platform/circuit"
	"fortis/pkg/platform/sentinel"
)

type submitResponse struct {
	LogHash string `json:"log_hash"`
}

// Client posts submissions to {base}/v1/entries.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Client) { l.client = c }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Client) { l.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Client) { l.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: circuit.New("transparency-log"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Submit(ctx context.Context, sub votesync.Submission) (string, error) {
	if !c.breaker.Allow() {
		return "", fmt.Errorf("transparency log circuit open: %w", sentinel.ErrUnavailable)
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/entries", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return "", fmt.Errorf("submit to transparency log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.recordFailure(ctx)
		return "", fmt.Errorf("transparency log returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("transparency log rejected submission: %d", resp.StatusCode)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submission response: %w", err)
	}
	if out.LogHash == "" {
		return "", fmt.Errorf("transparency log returned an empty hash")
	}
	c.breaker.RecordSuccess()
	return out.LogHash, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "transparency log circuit opened", "breaker", c.breaker.Name())
	}
}
