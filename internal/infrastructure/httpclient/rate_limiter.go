package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"aibos-connector-sync/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ProviderLimit caps outbound traffic to one provider across all connectors
type ProviderLimit struct {
	RequestsPerSecond float64
	Burst             int
	MaxConcurrent     int
}

// DefaultProviderLimits follow each provider's documented REST quotas
func DefaultProviderLimits() map[domain.ConnectorType]ProviderLimit {
	return map[domain.ConnectorType]ProviderLimit{
		domain.ConnectorShopify:    {RequestsPerSecond: 2, Burst: 4, MaxConcurrent: 4},
		domain.ConnectorStripe:     {RequestsPerSecond: 25, Burst: 25, MaxConcurrent: 8},
		domain.ConnectorMetaAds:    {RequestsPerSecond: 10, Burst: 10, MaxConcurrent: 4},
		domain.ConnectorGA4:        {RequestsPerSecond: 5, Burst: 5, MaxConcurrent: 4},
		domain.ConnectorTiendanube: {RequestsPerSecond: 2, Burst: 10, MaxConcurrent: 4},
	}
}

type bucket struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// RateLimiter enforces a token bucket and a concurrency cap per provider
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[domain.ConnectorType]ProviderLimit
	buckets map[domain.ConnectorType]*bucket
	logger  zerolog.Logger
}

// NewRateLimiter creates a limiter; providers without an entry get a conservative default
func NewRateLimiter(logger zerolog.Logger, limits map[domain.ConnectorType]ProviderLimit) *RateLimiter {
	if limits == nil {
		limits = DefaultProviderLimits()
	}
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[domain.ConnectorType]*bucket),
		logger:  logger,
	}
}

func (r *RateLimiter) bucketFor(provider domain.ConnectorType) *bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buckets[provider]; ok {
		return b
	}

	limit, ok := r.limits[provider]
	if !ok {
		limit = ProviderLimit{RequestsPerSecond: 1, Burst: 1, MaxConcurrent: 1}
	}
	if limit.Burst < 1 {
		limit.Burst = 1
	}
	if limit.MaxConcurrent < 1 {
		limit.MaxConcurrent = 1
	}

	b := &bucket{
		limiter: rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.Burst),
		slots:   make(chan struct{}, limit.MaxConcurrent),
	}
	r.buckets[provider] = b
	return b
}

// Acquire blocks until a request to provider may start. The returned
// release func must be called when the request finishes.
func (r *RateLimiter) Acquire(ctx context.Context, provider domain.ConnectorType) (func(), error) {
	b := r.bucketFor(provider)

	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := b.limiter.Wait(ctx); err != nil {
		<-b.slots
		return nil, fmt.Errorf("rate limit wait for %s: %w", provider, err)
	}

	return func() { <-b.slots }, nil
}

// InFlight returns the number of requests currently holding a slot
func (r *RateLimiter) InFlight(provider domain.ConnectorType) int {
	return len(r.bucketFor(provider).slots)
}

// Transport wraps base so every request passes through the provider's limiter
func (r *RateLimiter) Transport(provider domain.ConnectorType, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &limitedTransport{limiter: r, provider: provider, base: base}
}

type limitedTransport struct {
	limiter  *RateLimiter
	provider domain.ConnectorType
	base     http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	release, err := t.limiter.Acquire(req.Context(), t.provider)
	if err != nil {
		return nil, err
	}
	defer release()
	return t.base.RoundTrip(req)
}
