package stripe

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/application/paging"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Provider plugs Stripe into the sync runner
type Provider struct {
	clients *ClientFactory
	logger  zerolog.Logger
}

// NewProvider creates the Stripe connector provider
func NewProvider(clients *ClientFactory, logger zerolog.Logger) *Provider {
	return &Provider{clients: clients, logger: logger}
}

func (p *Provider) Type() domain.ConnectorType { return domain.ConnectorStripe }

// TestConnection probes the balance endpoint with the given credentials
func (p *Provider) TestConnection(ctx context.Context, creds domain.Credentials) bool {
	c, ok := creds.(domain.StripeCredentials)
	if !ok {
		return false
	}
	client, err := p.clients.NewClient(c)
	if err != nil {
		return false
	}
	return client.TestConnection(ctx)
}

// Stages syncs customers, plans, subscriptions and invoices in that order
func (p *Provider) Stages(conn *domain.Connector, sink ports.EntitySink) ([]ports.SyncStage, error) {
	creds, ok := conn.Credentials.(domain.StripeCredentials)
	if !ok {
		return nil, fmt.Errorf("%w: expected stripe credentials", domain.ErrInvalidCredentials)
	}
	client, err := p.clients.NewClient(creds)
	if err != nil {
		return nil, err
	}
	ws := conn.WorkspaceID

	return []ports.SyncStage{
		stage("customers", client.ListCustomers, func(v Customer) domain.NormalizedEntity { return TransformCustomer(v, ws) }, sink),
		stage("plans", client.ListPrices, func(v Price) domain.NormalizedEntity { return TransformPrice(v, ws) }, sink),
		stage("subscriptions", client.ListSubscriptions, func(v Subscription) domain.NormalizedEntity { return TransformSubscription(v, ws) }, sink),
		stage("invoices", client.ListInvoices, func(v Invoice) domain.NormalizedEntity { return TransformInvoice(v, ws) }, sink),
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
