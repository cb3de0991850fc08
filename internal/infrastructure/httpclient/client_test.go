package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aibos-connector-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestClientGetDecodesAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/customers", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"cus_1"}],"has_more":false}`))
	}))
	defer srv.Close()

	f := NewFactory(nil, fastRetry(), time.Second, zerolog.Nop())
	c := f.JSONClient(domain.ConnectorStripe, srv.URL+"/", http.Header{"Authorization": {"Bearer sk_test"}})

	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		HasMore bool `json:"has_more"`
	}
	_, err := c.Get(context.Background(), "/v1/customers", url.Values{"limit": {"10"}}, &out)
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "cus_1", out.Data[0].ID)
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewFactory(nil, fastRetry(), time.Second, zerolog.Nop()).JSONClient(domain.ConnectorShopify, srv.URL, nil)
	_, err := c.Get(context.Background(), "orders.json", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	c := NewFactory(nil, fastRetry(), time.Second, zerolog.Nop()).JSONClient(domain.ConnectorMetaAds, srv.URL, nil)
	_, err := c.Get(context.Background(), "me", nil, nil)
	require.Error(t, err)

	pe, ok := domain.AsProviderError(err)
	require.True(t, ok)
	assert.True(t, pe.IsAuthFailure())
	assert.Contains(t, pe.Body, "invalid token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientResolvesAbsoluteURLs(t *testing.T) {
	c := &Client{baseURL: "https://graph.facebook.com/v19.0"}
	assert.Equal(t, "https://graph.facebook.com/v19.0/act_1/campaigns?limit=5",
		c.resolve("act_1/campaigns", url.Values{"limit": {"5"}}))
	assert.Equal(t, "https://next.example/page?after=abc",
		c.resolve("https://next.example/page?after=abc", nil))
	assert.Equal(t, "https://next.example/page?after=abc&x=1",
		c.resolve("https://next.example/page?after=abc", url.Values{"x": {"1"}}))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2*time.Second, ParseRetryAfter("2", now))
	assert.Equal(t, 1500*time.Millisecond, ParseRetryAfter("1.5", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	assert.Equal(t, 30*time.Second, ParseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, IsRetryable(errors.New("invalid argument")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(&domain.ProviderError{StatusCode: 429}))
	assert.False(t, IsRetryable(&domain.ProviderError{StatusCode: 400}))
}

func TestDoWithResultHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := DoWithResult(ctx, cfg, func() (int, error) {
		calls++
		return 0, errors.New("connection reset by peer")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRateLimiterCapsConcurrency(t *testing.T) {
	limiter := NewRateLimiter(zerolog.Nop(), map[domain.ConnectorType]ProviderLimit{
		domain.ConnectorShopify: {RequestsPerSecond: 1000, Burst: 100, MaxConcurrent: 2},
	})

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := limiter.Acquire(context.Background(), domain.ConnectorShopify)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			current--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 2)
	assert.Equal(t, 0, limiter.InFlight(domain.ConnectorShopify))
}

func TestRateLimiterAcquireRespectsContext(t *testing.T) {
	limiter := NewRateLimiter(zerolog.Nop(), map[domain.ConnectorType]ProviderLimit{
		domain.ConnectorGA4: {RequestsPerSecond: 1, Burst: 1, MaxConcurrent: 1},
	})
	release, err := limiter.Acquire(context.Background(), domain.ConnectorGA4)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limiter.Acquire(ctx, domain.ConnectorGA4)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type headerTransport struct {
	base http.RoundTripper
}

func (h headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Wrapped", "yes")
	return h.base.RoundTrip(req)
}

func TestWrapTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Wrapped"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewFactory(nil, fastRetry(), time.Second, zerolog.Nop()).WrapTransport(func(base http.RoundTripper) http.RoundTripper {
		return headerTransport{base: base}
	})
	_, err := f.JSONClient(domain.ConnectorGA4, srv.URL, nil).Get(context.Background(), "/x", nil, nil)
	require.NoError(t, err)
}

func TestErrorClassifierRunsBeforeRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`throttled`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewFactory(nil, fastRetry(), time.Second, zerolog.Nop()).
		JSONClient(domain.ConnectorMetaAds, srv.URL, nil).
		WithErrorClassifier(func(pe *domain.ProviderError) {
			if pe.Body == "throttled" {
				pe.StatusCode = http.StatusTooManyRequests
			}
		})
	_, err := c.Get(context.Background(), "/x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
