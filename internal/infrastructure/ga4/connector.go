package ga4

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/application/paging"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Provider plugs GA4 into the sync runner
type Provider struct {
	clients *ClientFactory
	logger  zerolog.Logger
}

// NewProvider creates the GA4 connector provider
func NewProvider(clients *ClientFactory, logger zerolog.Logger) *Provider {
	return &Provider{clients: clients, logger: logger}
}

func (p *Provider) Type() domain.ConnectorType { return domain.ConnectorGA4 }

func (p *Provider) TestConnection(ctx context.Context, creds domain.Credentials) bool {
	c, ok := creds.(domain.GA4Credentials)
	if !ok {
		return false
	}
	client, err := p.clients.NewClient(c)
	if err != nil {
		return false
	}
	return client.TestConnection(ctx)
}

// Stages returns the single daily_metrics stage
func (p *Provider) Stages(conn *domain.Connector, sink ports.EntitySink) ([]ports.SyncStage, error) {
	creds, ok := conn.Credentials.(domain.GA4Credentials)
	if !ok {
		return nil, fmt.Errorf("%w: expected ga4 credentials", domain.ErrInvalidCredentials)
	}
	client, err := p.clients.NewClient(creds)
	if err != nil {
		return nil, err
	}
	ws := conn.WorkspaceID

	return []ports.SyncStage{{
		Name: "daily_metrics",
		Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
			fetch := func(ctx context.Context, cursor string) (ports.Page[Row], error) {
				return client.RunDailyReport(ctx, ports.ListParams{Limit: PageSize, Cursor: cursor, CreatedAtMin: window.Since})
			}
			return paging.Paginate(ctx, PageSize, fetch, func(ctx context.Context, row Row) error {
				_, err := sink.Upsert(ctx, TransformRow(row, creds.PropertyID, ws))
				return err
			})
		},
	}}, nil
}
