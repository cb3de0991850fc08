package shopify

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/application/paging"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Provider plugs Shopify into the sync runner
type Provider struct {
	clients *ClientFactory
	logger  zerolog.Logger
}

// NewProvider creates the Shopify connector provider
func NewProvider(clients *ClientFactory, logger zerolog.Logger) *Provider {
	return &Provider{clients: clients, logger: logger}
}

func (p *Provider) Type() domain.ConnectorType { return domain.ConnectorShopify }

// TestConnection probes the shop endpoint with the given credentials
func (p *Provider) TestConnection(ctx context.Context, creds domain.Credentials) bool {
	c, ok := creds.(domain.ShopifyCredentials)
	if !ok {
		return false
	}
	client, err := p.clients.NewClient(c)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to build Shopify client")
		return false
	}
	return client.TestConnection(ctx)
}

// Stages syncs customers, then products, then orders
func (p *Provider) Stages(conn *domain.Connector, sink ports.EntitySink) ([]ports.SyncStage, error) {
	creds, ok := conn.Credentials.(domain.ShopifyCredentials)
	if !ok {
		return nil, fmt.Errorf("%w: expected shopify credentials", domain.ErrInvalidCredentials)
	}
	client, err := p.clients.NewClient(creds)
	if err != nil {
		return nil, err
	}
	ws := conn.WorkspaceID

	return []ports.SyncStage{
		{
			Name: "customers",
			Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
				return paging.Paginate(ctx, PageSize,
					listFrom(window, client.ListCustomers),
					func(ctx context.Context, c Customer) error {
						_, err := sink.Upsert(ctx, TransformCustomer(c, ws))
						return err
					})
			},
		},
		{
			Name: "products",
			Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
				return paging.Paginate(ctx, PageSize,
					listFrom(window, client.ListProducts),
					func(ctx context.Context, prod Product) error {
						_, err := sink.Upsert(ctx, TransformProduct(prod, ws))
						return err
					})
			},
		},
		{
			Name: "orders",
			Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
				return paging.Paginate(ctx, PageSize,
					listFrom(window, client.ListOrders),
					func(ctx context.Context, o Order) error {
						_, err := sink.Upsert(ctx, TransformOrder(o, ws))
						return err
					})
			},
		},
	}, nil
}

// listFrom adapts a list call to a cursor fetch bounded by the sync window
func listFrom[T any](window ports.SyncWindow, list func(context.Context, ports.ListParams) (ports.Page[T], error)) func(context.Context, string) (ports.Page[T], error) {
	return func(ctx context.Context, cursor string) (ports.Page[T], error) {
		return list(ctx, ports.ListParams{
			Limit:        PageSize,
			Cursor:       cursor,
			CreatedAtMin: window.Since,
		})
	}
}
