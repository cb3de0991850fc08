package metaads

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/application/paging"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Provider plugs Meta Ads into the sync runner
type Provider struct {
	clients *ClientFactory
	logger  zerolog.Logger
}

// NewProvider creates the Meta Ads connector provider
func NewProvider(clients *ClientFactory, logger zerolog.Logger) *Provider {
	return &Provider{clients: clients, logger: logger}
}

func (p *Provider) Type() domain.ConnectorType { return domain.ConnectorMetaAds }

// TestConnection reads the ad account node with the given credentials
func (p *Provider) TestConnection(ctx context.Context, creds domain.Credentials) bool {
	c, ok := creds.(domain.MetaAdsCredentials)
	if !ok {
		return false
	}
	client, err := p.clients.NewClient(c)
	if err != nil {
		return false
	}
	return client.TestConnection(ctx)
}

// Stages syncs the ad account first, then campaigns, ad sets, ads and daily
// insights. The account stage is a prerequisite: its currency prices the
// budgets of the later stages.
func (p *Provider) Stages(conn *domain.Connector, sink ports.EntitySink) ([]ports.SyncStage, error) {
	creds, ok := conn.Credentials.(domain.MetaAdsCredentials)
	if !ok {
		return nil, fmt.Errorf("%w: expected meta ads credentials", domain.ErrInvalidCredentials)
	}
	client, err := p.clients.NewClient(creds)
	if err != nil {
		return nil, err
	}
	ws := conn.WorkspaceID
	var currency string

	return []ports.SyncStage{
		{
			Name:         "ad_account",
			Prerequisite: true,
			Run: func(ctx context.Context, _ ports.SyncWindow) (int, error) {
				acct, err := client.GetAdAccount(ctx)
				if err != nil {
					return 0, err
				}
				currency = acct.Currency
				if _, err := sink.Upsert(ctx, TransformAdAccount(*acct, ws)); err != nil {
					return 0, err
				}
				return 1, nil
			},
		},
		stage("campaigns", client.ListCampaigns, func(v Campaign) domain.NormalizedEntity { return TransformCampaign(v, ws, currency) }, sink),
		stage("ad_sets", client.ListAdSets, func(v AdSet) domain.NormalizedEntity { return TransformAdSet(v, ws, currency) }, sink),
		stage("ads", client.ListAds, func(v Ad) domain.NormalizedEntity { return TransformAd(v, ws) }, sink),
		stage("insights", client.ListInsights, func(v Insight) domain.NormalizedEntity { return TransformInsight(v, ws) }, sink),
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
