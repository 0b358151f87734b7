package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Function names.
const (
	FuncValidateLead     = "validate-lead"
	FuncICPScore         = "calculate-icp-score-quarantine"
	FuncDealHealth       = "calculate-deal-health-score"
	FuncGenerateProposal = "generate-proposal"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxElapsed = 30 * time.Second
	maxResponseBytes  = 4 << 20
)

// ErrNoBaseURL is returned by New when the base URL is empty.
var ErrNoBaseURL = errors.New("edge: base URL is required")

// StatusError is a non-2xx response from an edge function.
type StatusError struct {
	Function   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("edge %s: HTTP %d", e.Function, e.StatusCode)
	}
	return fmt.Sprintf("edge %s: HTTP %d: %s", e.Function, e.StatusCode, body)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls edge functions.
type Client struct {
	baseURL    string
	key        string
	http       *http.Client
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackOff replaces the retry policy. The function is called once per
// request because BackOff implementations are stateful.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// New creates a client for the functions under baseURL.
func New(baseURL, key string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: defaultTimeout},
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = defaultMaxElapsed
			return bo
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call posts req to a function and returns the raw response body.
func (c *Client) Call(ctx context.Context, function string, req any) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("edge %s: encode request: %w", function, err)
	}

	attempt := 0
	var out json.RawMessage
	op := func() error {
		attempt++
		raw, err := c.post(ctx, function, body)
		if err == nil {
			out = raw
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("edge call failed, retrying", "function", function, "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	slog.Debug("edge call", "function", function, "attempts", attempt)
	return out, nil
}

func (c *Client) post(ctx context.Context, function string, body []byte) (json.RawMessage, error) {
	url := c.baseURL + "/functions/v1/" + function
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("edge %s: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edge %s: %w", function, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("edge %s: read response: %w", function, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Function: function, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if !json.Valid(data) {
		return nil, backoff.Permanent(fmt.Errorf("edge %s: response is not JSON", function))
	}
	return data, nil
}

// decode unmarshals a function response into v.
func decode(function string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("edge %s: decode response: %w", function, err)
	}
	return nil
}
