// Package datasource provides the HTTP plumbing shared by the JSON-backed
// sources and the Yahoo Finance chart fetcher.
package datasource

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// --- Sentinel errors ---

// ErrRateLimited is returned when a source rate-limits the request.
var ErrRateLimited = errors.New("rate limited by data source")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Unwrap lets callers match HTTP 429 with errors.Is(err, ErrRateLimited).
func (e *ErrHTTP) Unwrap() error {
	if e.StatusCode == 429 {
		return ErrRateLimited
	}
	return nil
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used when none is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ClientOptions configures a resty client.
type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration
}

// NewClient returns a pre-configured resty client with reasonable timeouts.
// Redirects are followed; retries are left to callers.
func NewClient(opts ClientOptions) *resty.Client {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", ua).
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetRetryCount(0)
}

// CheckResponse converts a status >= 400 into *ErrHTTP carrying at most
// 1 KiB of the body.
func CheckResponse(resp *resty.Response) error {
	if resp.StatusCode() < 400 {
		return nil
	}
	body := resp.Body()
	if len(body) > 1024 {
		body = body[:1024]
	}
	return &ErrHTTP{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       string(body),
	}
}
