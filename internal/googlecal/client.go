// Package googlecal talks to the Google Calendar v3 REST API: the
// calendar list and the per-calendar paginated events feed. It is the
// only package that knows the upstream wire shapes; everything above it
// works with models types.
package googlecal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"

	// defaultMaxResults is the page size requested from the events feed.
	defaultMaxResults = 250

	// defaultPageCeiling bounds the continuation-token walk per calendar.
	// Functional correctness never needs it; it exists so a pathological
	// upstream token loop cannot starve the fetch.
	defaultPageCeiling = 64

	defaultHTTPTimeout = 30 * time.Second
	defaultRetryBase   = 250 * time.Millisecond
	defaultMaxRetries  = 3
)

// Client is a Google Calendar API client. The zero value is not usable;
// construct with NewClient.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	log         *zap.Logger
	maxResults  int
	pageCeiling int
	retryBase   time.Duration
	maxRetries  uint64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithMaxResults overrides the requested page size.
func WithMaxResults(n int) Option {
	return func(c *Client) { c.maxResults = n }
}

// WithPageCeiling overrides the per-calendar page limit.
func WithPageCeiling(n int) Option {
	return func(c *Client) { c.pageCeiling = n }
}

// WithRetry overrides the retry policy for retryable upstream failures.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBase = base
	}
}

// NewClient creates a calendar API client.
func NewClient(log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:     defaultBaseURL,
		log:         log,
		maxResults:  defaultMaxResults,
		pageCeiling: defaultPageCeiling,
		retryBase:   defaultRetryBase,
		maxRetries:  defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON performs an authenticated GET with retry on retryable upstream
// failures. 401-class responses and 4xx errors are returned immediately.
func (c *Client) getJSON(ctx context.Context, token, path string, params url.Values, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doGet(ctx, token, path, params, out)
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Retryable() {
			c.log.Warn("calendar_upstream_retryable_failure",
				zap.String("path", path),
				zap.Int("status_code", ue.StatusCode),
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) doGet(ctx context.Context, token, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building calendar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling calendar api: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding calendar response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrCredentialExpired
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

type calendarListResponse struct {
	Items []calendarListEntry `json:"items"`
}

type calendarListEntry struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	BackgroundColor string `json:"backgroundColor"`
	ForegroundColor string `json:"foregroundColor"`
	Selected        bool   `json:"selected"`
	Primary         bool   `json:"primary"`
	AccessRole      string `json:"accessRole"`
	TimeZone        string `json:"timeZone"`
}
