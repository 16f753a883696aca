// Package crawler talks to the note API: a retrying HTTP client plus the
// query, by-key and per-user fetchers built on top of it.
package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"notecrawl/internal/config"
	"notecrawl/internal/logger"
	"notecrawl/pkg/utils"
)

// Fetch errors.
var (
	ErrRetryExhausted       = errors.New("retry exhausted")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrMalformedResponse    = errors.New("malformed response")
)

const defaultMaxBodyBytes = 32 << 20

// RetryExhaustedError is returned once every attempt for a URL has failed.
// It matches both ErrRetryExhausted and the last transient error.
type RetryExhaustedError struct {
	Last     error
	URL      string
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %s: %v", ErrRetryExhausted, e.Attempts, e.URL, e.Last)
}

func (e *RetryExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Last}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// JSONFetcher decodes the JSON body found at a URL.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, v any) error
}

// Client is the only component that performs network I/O. Every GET is
// retried with a fixed delay up to the policy's attempt count.
type Client struct {
	client       *http.Client
	headers      *utils.HTTPHelper
	logger       *logger.Logger
	sleep        Sleeper
	policy       config.RetryPolicy
	maxBodyBytes int64
}

// Option customises a Client.
type Option func(*Client)

// WithSleeper replaces the function used to wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// NewClient creates a retrying client for the given policy.
func NewClient(policy config.RetryPolicy, userAgent string, log *logger.Logger, opts ...Option) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	c := &Client{
		client: &http.Client{
			Timeout: policy.GetTimeout(),
		},
		headers:      utils.NewHTTPHelper(userAgent),
		logger:       log,
		sleep:        SleepContext,
		policy:       policy,
		maxBodyBytes: defaultMaxBodyBytes,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch issues a GET and returns the body of the first 2xx response.
// Connection errors, timeouts and non-2xx statuses are retried; after the
// last attempt a *RetryExhaustedError is returned. Context cancellation
// stops immediately.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		body, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.Warn("request failed",
			"url", url,
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"error", err,
		)

		if attempt < c.policy.MaxAttempts {
			if sleepErr := c.sleep(ctx, c.policy.RetryDelay()); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}

	return nil, &RetryExhaustedError{URL: url, Attempts: c.policy.MaxAttempts, Last: lastErr}
}

// FetchJSON fetches url and decodes the body into v. A body that is not
// valid JSON yields ErrMalformedResponse and is not retried.
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, url, err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = c.headers.BuildHeaders(nil)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if !c.headers.IsSuccess(resp.StatusCode) {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
