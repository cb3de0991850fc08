package tiendanube

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/application/paging"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Provider plugs Tiendanube into the sync runner
type Provider struct {
	clients *ClientFactory
	logger  zerolog.Logger
}

// NewProvider creates the Tiendanube connector provider
func NewProvider(clients *ClientFactory, logger zerolog.Logger) *Provider {
	return &Provider{clients: clients, logger: logger}
}

func (p *Provider) Type() domain.ConnectorType { return domain.ConnectorTiendanube }

func (p *Provider) TestConnection(ctx context.Context, creds domain.Credentials) bool {
	c, ok := creds.(domain.TiendanubeCredentials)
	if !ok {
		return false
	}
	client, err := p.clients.NewClient(c)
	if err != nil {
		return false
	}
	return client.TestConnection(ctx)
}

// Stages syncs customers, products and orders in that order
func (p *Provider) Stages(conn *domain.Connector, sink ports.EntitySink) ([]ports.SyncStage, error) {
	creds, ok := conn.Credentials.(domain.TiendanubeCredentials)
	if !ok {
		return nil, fmt.Errorf("%w: expected tiendanube credentials", domain.ErrInvalidCredentials)
	}
	client, err := p.clients.NewClient(creds)
	if err != nil {
		return nil, err
	}
	ws := conn.WorkspaceID

	return []ports.SyncStage{
		stage("customers", client.ListCustomers, func(v Customer) domain.NormalizedEntity { return TransformCustomer(v, ws) }, sink),
		stage("products", client.ListProducts, func(v Product) domain.NormalizedEntity { return TransformProduct(v, ws) }, sink),
		stage("orders", client.ListOrders, func(v Order) domain.NormalizedEntity { return TransformOrder(v, ws) }, sink),
	}, nil
}

func stage[T any](
	name string,
	list func(context.Context, ports.ListParams) (ports.Page[T], error),
	transform func(T) domain.NormalizedEntity,
	sink ports.EntitySink,
) ports.SyncStage {
	return ports.SyncStage{
		Name: name,
		Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
			fetch := func(ctx context.Context, cursor string) (ports.Page[T], error) {
				return list(ctx, ports.ListParams{Limit: PageSize, Cursor: cursor, CreatedAtMin: window.Since})
			}
			return paging.Paginate(ctx, PageSize, fetch, func(ctx context.Context, item T) error {
				_, err := sink.Upsert(ctx, transform(item))
				return err
			})
		},
	}
}
