// Package shopify is the Shopify connector: a REST client on top of
// go-shopify, pure transformers into the ecommerce entities, sync stages and
// the webhook adapter.
package shopify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/httpclient"
	"aibos-connector-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// PageSize is the maximum page size of the Admin REST API
const PageSize = 250

// DefaultAPIVersion is the Admin API version requested when none is configured
const DefaultAPIVersion = "2024-10"

// ClientFactory builds per-shop clients sharing one HTTP stack
type ClientFactory struct {
	http       *httpclient.Factory
	apiVersion string
	logger     zerolog.Logger
}

// NewClientFactory creates a Shopify client factory
func NewClientFactory(http *httpclient.Factory, apiVersion string, logger zerolog.Logger) *ClientFactory {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &ClientFactory{
		http:       http,
		apiVersion: apiVersion,
		logger:     logger,
	}
}

// NewClient creates a client for one shop
func (f *ClientFactory) NewClient(creds domain.ShopifyCredentials) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	api, err := goshopify.NewClient(goshopify.App{}, creds.AccountRef(), creds.AccessToken,
		goshopify.WithVersion(f.apiVersion),
		goshopify.WithHTTPClient(f.http.HTTPClient(domain.ConnectorShopify)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Client{
		shop:   creds.AccountRef(),
		api:    api,
		retry:  f.http.Retry(),
		logger: f.logger.With().Str("shop", creds.AccountRef()).Logger(),
	}, nil
}

// Client reads customers, products and orders of one shop
type Client struct {
	shop   string
	api    *goshopify.Client
	retry  *httpclient.RetryConfig
	logger zerolog.Logger
}

// listOptions is encoded into the query string by go-shopify
type listOptions struct {
	Limit        int        `url:"limit,omitempty"`
	SinceID      int64      `url:"since_id,omitempty"`
	CreatedAtMin *time.Time `url:"created_at_min,omitempty"`
	CreatedAtMax *time.Time `url:"created_at_max,omitempty"`
	Status       string     `url:"status,omitempty"`
}

func optionsFrom(params ports.ListParams) (*listOptions, error) {
	opts := &listOptions{
		Limit:        params.Limit,
		CreatedAtMin: params.CreatedAtMin,
		CreatedAtMax: params.CreatedAtMax,
	}
	if opts.Limit <= 0 || opts.Limit > PageSize {
		opts.Limit = PageSize
	}
	if params.Cursor != "" {
		id, err := strconv.ParseInt(params.Cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid since_id cursor %q: %w", params.Cursor, err)
		}
		opts.SinceID = id
	}
	return opts, nil
}

// get performs one GET with retries, mapping library errors to ProviderError
func (c *Client) get(ctx context.Context, path string, resource, options interface{}) error {
	return httpclient.DoIfRetryable(ctx, c.retry, func() error {
		if err := c.api.Get(ctx, path, resource, options); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// TestConnection reads the shop record. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	var resource struct {
		Shop Shop `json:"shop"`
	}
	if err := c.get(ctx, "shop.json", &resource, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Shopify connection test failed")
		return false
	}
	return resource.Shop.ID != 0
}

// ListCustomers returns one since_id page of customers
func (c *Client) ListCustomers(ctx context.Context, params ports.ListParams) (ports.Page[Customer], error) {
	opts, err := optionsFrom(params)
	if err != nil {
		return ports.Page[Customer]{}, err
	}
	var resource struct {
		Customers []Customer `json:"customers"`
	}
	if err := c.get(ctx, "customers.json", &resource, opts); err != nil {
		return ports.Page[Customer]{}, fmt.Errorf("failed to list customers: %w", err)
	}
	return sinceIDPage(resource.Customers, func(v Customer) int64 { return v.ID }), nil
}

// ListProducts returns one since_id page of products
func (c *Client) ListProducts(ctx context.Context, params ports.ListParams) (ports.Page[Product], error) {
	opts, err := optionsFrom(params)
	if err != nil {
		return ports.Page[Product]{}, err
	}
	var resource struct {
		Products []Product `json:"products"`
	}
	if err := c.get(ctx, "products.json", &resource, opts); err != nil {
		return ports.Page[Product]{}, fmt.Errorf("failed to list products: %w", err)
	}
	return sinceIDPage(resource.Products, func(v Product) int64 { return v.ID }), nil
}

// ListOrders returns one since_id page of orders in any status
func (c *Client) ListOrders(ctx context.Context, params ports.ListParams) (ports.Page[Order], error) {
	opts, err := optionsFrom(params)
	if err != nil {
		return ports.Page[Order]{}, err
	}
	opts.Status = "any"
	var resource struct {
		Orders []Order `json:"orders"`
	}
	if err := c.get(ctx, "orders.json", &resource, opts); err != nil {
		return ports.Page[Order]{}, fmt.Errorf("failed to list orders: %w", err)
	}
	return sinceIDPage(resource.Orders, func(v Order) int64 { return v.ID }), nil
}

// sinceIDPage builds a heuristic page whose cursor is the last id seen
func sinceIDPage[T any](items []T, id func(T) int64) ports.Page[T] {
	page := ports.Page[T]{Items: items}
	if len(items) > 0 {
		page.NextCursor = strconv.FormatInt(id(items[len(items)-1]), 10)
	}
	return page
}

// statusError is implemented by go-shopify's response errors
type statusError interface {
	GetStatus() int
}

func mapError(err error) error {
	var se statusError
	if !errors.As(err, &se) || se.GetStatus() == 0 {
		return err
	}
	pe := &domain.ProviderError{
		Provider:   domain.ConnectorShopify,
		StatusCode: se.GetStatus(),
		Body:       err.Error(),
	}
	var rle goshopify.RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		pe.RetryAfter = time.Duration(rle.RetryAfter) * time.Second
	}
	return pe
}
