// Package httpclient holds the outbound HTTP plumbing shared by the
// connector clients: per-provider rate limiting, retry with backoff and a
// small JSON request helper that maps non-2xx responses to ProviderError.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"

	"github.com/rs/zerolog"
)

const maxErrorBody = 4096

// Factory builds provider HTTP clients that share one rate limiter
type Factory struct {
	limiter *RateLimiter
	retry   *RetryConfig
	timeout time.Duration
	base    http.RoundTripper
	logger  zerolog.Logger
}

// NewFactory creates a client factory. A nil limiter disables rate limiting.
func NewFactory(limiter *RateLimiter, retry *RetryConfig, timeout time.Duration, logger zerolog.Logger) *Factory {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Factory{
		limiter: limiter,
		retry:   retry,
		timeout: timeout,
		base:    http.DefaultTransport,
		logger:  logger,
	}
}

// WithTransport replaces the underlying round tripper, mainly for tests
func (f *Factory) WithTransport(rt http.RoundTripper) *Factory {
	clone := *f
	clone.base = rt
	return &clone
}

// WrapTransport returns a factory whose round tripper is wrap(base). The
// limiter stays outermost, so wrapped transports (OAuth token refresh) are
// rate limited along with the requests they decorate.
func (f *Factory) WrapTransport(wrap func(http.RoundTripper) http.RoundTripper) *Factory {
	clone := *f
	clone.base = wrap(f.base)
	return &clone
}

// Retry returns the retry policy applied by clients from this factory
func (f *Factory) Retry() *RetryConfig {
	return f.retry
}

// HTTPClient returns an *http.Client whose requests pass through the provider limiter
func (f *Factory) HTTPClient(provider domain.ConnectorType) *http.Client {
	rt := f.base
	if f.limiter != nil {
		rt = f.limiter.Transport(provider, rt)
	}
	return &http.Client{Transport: rt, Timeout: f.timeout}
}

// JSONClient returns a JSON client rooted at baseURL that sends header on every request
func (f *Factory) JSONClient(provider domain.ConnectorType, baseURL string, header http.Header) *Client {
	return &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     f.HTTPClient(provider),
		retry:    f.retry,
		header:   header,
		logger:   f.logger.With().Str("provider", string(provider)).Logger(),
	}
}

// Client performs JSON requests against one provider API
type Client struct {
	provider domain.ConnectorType
	baseURL  string
	http     *http.Client
	retry    *RetryConfig
	header   http.Header
	classify func(*domain.ProviderError)
	logger   zerolog.Logger
}

// WithErrorClassifier returns a copy of the client that passes every non-2xx
// ProviderError through fn before the retry decision. Providers that signal
// throttling in the body use it to adjust StatusCode.
func (c *Client) WithErrorClassifier(fn func(*domain.ProviderError)) *Client {
	clone := *c
	clone.classify = fn
	return &clone
}

// Get issues a GET and decodes the response body into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the response body into out
func (c *Client) Post(ctx context.Context, path string, body any, out any) (http.Header, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do sends a request with retries. path may be relative to the base URL or
// an absolute URL (as returned by providers in pagination links).
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, out any) (http.Header, error) {
	target := c.resolve(path, query)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	return DoWithResult(ctx, c.retry, func() (http.Header, error) {
		return c.once(ctx, method, target, payload, out)
	})
}

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query.Encode()
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out any) (http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Provider request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		pe := &domain.ProviderError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
		if c.classify != nil {
			c.classify(pe)
		}
		return resp.Header, pe
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.Header, fmt.Errorf("failed to decode %s response: %w", c.provider, err)
		}
	}
	return resp.Header, nil
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
