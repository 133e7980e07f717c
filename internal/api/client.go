package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultClientTimeout = 65 * time.Second

// StatusError reports a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// Client is an HTTP client for the backend API. It is used by the frontend,
// the readiness probe, and the CLI.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a backend API client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the backend address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks GET /health. A nil error means the backend answered 200 with
// a healthy status payload.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return Health{}, err
	}
	if health.Status != HealthOK {
		return health, fmt.Errorf("backend reported status %q", health.Status)
	}
	return health, nil
}

// Banner fetches the GET / service banner.
func (c *Client) Banner(ctx context.Context) (Banner, error) {
	var banner Banner
	if err := c.doJSON(ctx, http.MethodGet, "/", nil, &banner); err != nil {
		return Banner{}, err
	}
	return banner, nil
}

// Chat posts a single user message to POST /chat and returns the reply text.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	var reply ChatReply
	if err := c.doJSON(ctx, http.MethodPost, "/chat", ChatRequest{Message: message}, &reply); err != nil {
		return "", err
	}
	return reply.Reply, nil
}

// ChatDetails posts a conversation to POST /chat/details.
func (c *Client) ChatDetails(ctx context.Context, req ChatDetailsRequest) (ChatDetailsResponse, error) {
	var resp ChatDetailsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/details", req, &resp); err != nil {
		return ChatDetailsResponse{}, err
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := decodeErrorDetail(data)
		return &StatusError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeErrorDetail(data []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && strings.TrimSpace(errResp.Detail) != "" {
		return strings.TrimSpace(errResp.Detail)
	}
	snippet := strings.TrimSpace(string(data))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return snippet
}
