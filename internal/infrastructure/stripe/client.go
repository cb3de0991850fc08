// Package stripe is the Stripe connector: REST client, transformers into the
// SaaS billing entities, sync stages and webhook handling.
package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/httpclient"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// PageSize is the maximum page size of Stripe list endpoints
const PageSize = 100

// DefaultBaseURL is the Stripe API root
const DefaultBaseURL = "https://api.stripe.com"

// ClientFactory builds per-account Stripe clients
type ClientFactory struct {
	http    *httpclient.Factory
	baseURL string
	logger  zerolog.Logger
}

// NewClientFactory creates a Stripe client factory
func NewClientFactory(http *httpclient.Factory, baseURL string, logger zerolog.Logger) *ClientFactory {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ClientFactory{http: http, baseURL: baseURL, logger: logger}
}

// NewClient creates a client authenticated with the secret key
func (f *ClientFactory) NewClient(creds domain.StripeCredentials) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.APIKey)
	return &Client{
		api:    f.http.JSONClient(domain.ConnectorStripe, f.baseURL, header),
		logger: f.logger,
	}, nil
}

// Client lists Stripe billing objects
type Client struct {
	api    *httpclient.Client
	logger zerolog.Logger
}

// TestConnection reads the account balance. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	var balance struct {
		Object string `json:"object"`
	}
	if _, err := c.api.Get(ctx, "/v1/balance", nil, &balance); err != nil {
		c.logger.Warn().Err(err).Msg("Stripe connection test failed")
		return false
	}
	return balance.Object == "balance"
}

func listQuery(params ports.ListParams) url.Values {
	limit := params.Limit
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if params.Cursor != "" {
		q.Set("starting_after", params.Cursor)
	}
	if params.CreatedAtMin != nil {
		q.Set("created[gte]", strconv.FormatInt(params.CreatedAtMin.Unix(), 10))
	}
	if params.CreatedAtMax != nil {
		q.Set("created[lte]", strconv.FormatInt(params.CreatedAtMax.Unix(), 10))
	}
	return q
}

// list fetches one page; has_more is authoritative and the cursor is the last id
func list[T any](ctx context.Context, c *Client, path string, query url.Values, id func(T) string) (ports.Page[T], error) {
	var out List[T]
	if _, err := c.api.Get(ctx, path, query, &out); err != nil {
		return ports.Page[T]{}, err
	}
	page := ports.Page[T]{Items: out.Data, Authoritative: true}
	if out.HasMore && len(out.Data) > 0 {
		page.NextCursor = id(out.Data[len(out.Data)-1])
	}
	return page, nil
}

// ListCustomers returns one page of customers
func (c *Client) ListCustomers(ctx context.Context, params ports.ListParams) (ports.Page[Customer], error) {
	page, err := list(ctx, c, "/v1/customers", listQuery(params), func(v Customer) string { return v.ID })
	if err != nil {
		return page, fmt.Errorf("failed to list customers: %w", err)
	}
	return page, nil
}

// ListPrices returns one page of prices, active or not
func (c *Client) ListPrices(ctx context.Context, params ports.ListParams) (ports.Page[Price], error) {
	page, err := list(ctx, c, "/v1/prices", listQuery(params), func(v Price) string { return v.ID })
	if err != nil {
		return page, fmt.Errorf("failed to list prices: %w", err)
	}
	return page, nil
}

// ListSubscriptions returns one page of subscriptions in every status
func (c *Client) ListSubscriptions(ctx context.Context, params ports.ListParams) (ports.Page[Subscription], error) {
	q := listQuery(params)
	q.Set("status", "all")
	page, err := list(ctx, c, "/v1/subscriptions", q, func(v Subscription) string { return v.ID })
	if err != nil {
		return page, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return page, nil
}

// ListInvoices returns one page of invoices
func (c *Client) ListInvoices(ctx context.Context, params ports.ListParams) (ports.Page[Invoice], error) {
	page, err := list(ctx, c, "/v1/invoices", listQuery(params), func(v Invoice) string { return v.ID })
	if err != nil {
		return page, fmt.Errorf("failed to list invoices: %w", err)
	}
	return page, nil
}
