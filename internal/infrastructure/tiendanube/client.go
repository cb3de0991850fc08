// Package tiendanube is the Tiendanube (Nuvemshop) connector: REST client,
// transformers into the ecommerce entities, sync stages and webhooks that
// re-fetch the referenced record.
package tiendanube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/httpclient"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// PageSize is the largest per_page the API accepts
const PageSize = 200

const (
	DefaultBaseURL   = "https://api.tiendanube.com/v1"
	DefaultUserAgent = "AI Business OS (support@aibos.app)"
)

// ErrNotFound is returned by the single-record getters for missing records
var ErrNotFound = errors.New("tiendanube: record not found")

// ClientFactory builds per-store clients
type ClientFactory struct {
	http      *httpclient.Factory
	baseURL   string
	userAgent string
	logger    zerolog.Logger
}

// NewClientFactory creates a Tiendanube client factory. The API rejects
// requests without an identifying User-Agent.
func NewClientFactory(http *httpclient.Factory, baseURL, userAgent string, logger zerolog.Logger) *ClientFactory {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ClientFactory{http: http, baseURL: baseURL, userAgent: userAgent, logger: logger}
}

// NewClient creates a client for one store
func (f *ClientFactory) NewClient(creds domain.TiendanubeCredentials) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authentication", "bearer "+creds.AccessToken)
	header.Set("User-Agent", f.userAgent)
	return &Client{
		api:    f.http.JSONClient(domain.ConnectorTiendanube, f.baseURL+"/"+creds.StoreID, header),
		logger: f.logger,
	}, nil
}

// Client reads one store's catalog, customers and orders
type Client struct {
	api    *httpclient.Client
	logger zerolog.Logger
}

// TestConnection reads the store resource. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	var store struct {
		ID int64 `json:"id"`
	}
	if _, err := c.api.Get(ctx, "store", nil, &store); err != nil {
		c.logger.Warn().Err(err).Msg("Tiendanube connection test failed")
		return false
	}
	return store.ID != 0
}

func pageNumber(cursor string) (int, error) {
	if cursor == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid page cursor %q", cursor)
	}
	return n, nil
}

// list fetches one page. The API has no has-more marker and answers a page
// past the end with 404, which is read as an empty page.
func list[T any](ctx context.Context, c *Client, resource string, params ports.ListParams) (ports.Page[T], error) {
	page, err := pageNumber(params.Cursor)
	if err != nil {
		return ports.Page[T]{}, err
	}
	limit := params.Limit
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(limit))
	if params.CreatedAtMin != nil {
		q.Set("created_at_min", params.CreatedAtMin.UTC().Format(time.RFC3339))
	}
	if params.CreatedAtMax != nil {
		q.Set("created_at_max", params.CreatedAtMax.UTC().Format(time.RFC3339))
	}

	var items []T
	if _, err := c.api.Get(ctx, resource, q, &items); err != nil {
		if pe, ok := domain.AsProviderError(err); ok && pe.StatusCode == http.StatusNotFound && page > 1 {
			return ports.Page[T]{}, nil
		}
		return ports.Page[T]{}, err
	}
	return ports.Page[T]{Items: items, NextCursor: strconv.Itoa(page + 1)}, nil
}

// ListCustomers returns one page of customers
func (c *Client) ListCustomers(ctx context.Context, params ports.ListParams) (ports.Page[Customer], error) {
	page, err := list[Customer](ctx, c, "customers", params)
	if err != nil {
		return page, fmt.Errorf("failed to list customers: %w", err)
	}
	return page, nil
}

// ListProducts returns one page of products with their variants
func (c *Client) ListProducts(ctx context.Context, params ports.ListParams) (ports.Page[Product], error) {
	page, err := list[Product](ctx, c, "products", params)
	if err != nil {
		return page, fmt.Errorf("failed to list products: %w", err)
	}
	return page, nil
}

// ListOrders returns one page of orders
func (c *Client) ListOrders(ctx context.Context, params ports.ListParams) (ports.Page[Order], error) {
	page, err := list[Order](ctx, c, "orders", params)
	if err != nil {
		return page, fmt.Errorf("failed to list orders: %w", err)
	}
	return page, nil
}

func get[T any](ctx context.Context, c *Client, resource string, id int64) (*T, error) {
	var out T
	if _, err := c.api.Get(ctx, resource+"/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		if pe, ok := domain.AsProviderError(err); ok && pe.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s %d: %w", resource, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s %d: %w", resource, id, err)
	}
	return &out, nil
}

// GetOrder reads one order
func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return get[Order](ctx, c, "orders", id)
}

// GetProduct reads one product
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return get[Product](ctx, c, "products", id)
}

// GetCustomer reads one customer
func (c *Client) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return get[Customer](ctx, c, "customers", id)
}
