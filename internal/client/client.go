// Package client talks to the ordering backend. Every response carries a
// {status, message, data} envelope and only status "success" counts as
// success, whatever the HTTP code.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"tableside/internal/config"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every request
const DefaultTimeout = 10 * time.Second

const maxBodySize = 4 << 20

// Envelope is the response body shape used by every route
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client handles API requests to the ordering backend
type Client struct {
	httpClient *http.Client
	BaseURL    string
	token      string
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithToken attaches a bearer token to every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout replaces the default request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger logs failed requests
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		BaseURL: strings.TrimRight(baseURL, "/"),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the api config section
func NewFromConfig(cfg config.APIConfig, logger *zap.Logger) *Client {
	opts := []Option{WithToken(cfg.Token), WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return New(cfg.BaseURL, opts...)
}

// do sends one request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := transportError(err, isTimeout(err))
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, apiErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transportError(err, isTimeout(err))
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Status == "" {
		if err == nil {
			err = errors.New("response has no status")
		}
		c.logger.Warn("undecodable response",
			zap.String("path", path),
			zap.Int("http_status", resp.StatusCode),
			zap.Error(err))
		return nil, protocolError(resp.StatusCode, err)
	}

	if env.Status != "success" {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode)
		}
		return &env, &APIError{Kind: KindBackend, Message: msg, StatusCode: resp.StatusCode}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &env, protocolError(resp.StatusCode, err)
		}
	}
	return &env, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
