// Package endpoint is the HTTP client for the caption service.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"captionkit/caption"
	"captionkit/logger"
)

const (
	// CaptionsPath is the generation route on the caption service.
	CaptionsPath = "/v1/captions"

	// DefaultTimeout for a single generation call
	DefaultTimeout = 60 * time.Second

	// maxBodyPreview bounds how much of an error body ends up in messages
	maxBodyPreview = 512
)

// Client calls the caption service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = logger.OrNop(log)
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("endpoint URL must be http or https, got %q", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("endpoint URL has no host: %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx answer from the caption service.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("caption service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("caption service error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus lets caption.Classify decide retryability.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// errorBody is the service's error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Generate performs one generation call. It never retries; the caption
// generator owns the retry policy.
func (c *Client) Generate(ctx context.Context, req caption.Request) (*caption.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, caption.Terminal("could not encode caption request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+CaptionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, caption.Terminal("could not build caption request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, caption.Terminal("caption request cancelled", err)
		}
		return nil, caption.Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, caption.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	c.log.Debug("caption service responded", "status", resp.StatusCode, "latency", time.Since(start), "bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, respBody)
	}

	var out caption.Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, caption.Terminal("the caption service sent a malformed response", err)
	}
	return &out, nil
}

func decodeError(status int, body []byte) error {
	var eb errorBody
	msg := strings.TrimSpace(preview(body))
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	if eb.Code == "quota_exceeded" {
		return caption.QuotaExceeded(msg)
	}

	apiErr := &APIError{StatusCode: status, Code: eb.Code, Message: msg}
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return caption.Transient(apiErr)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return caption.Terminal("you are not allowed to generate captions, sign in again", apiErr)
	default:
		return caption.Terminal(msg, apiErr)
	}
}

func preview(body []byte) string {
	if len(body) > maxBodyPreview {
		return string(body[:maxBodyPreview]) + "..."
	}
	return string(body)
}
