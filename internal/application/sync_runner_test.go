package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/memstore"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFixture struct {
	store     *memstore.Store
	registry  *ConnectorRegistry
	locker    *mapLocker
	publisher *recordingPublisher
	runner    *SyncRunner
	windows   []ports.SyncWindow
}

func newRunnerFixture(t *testing.T, opts SyncRunnerOptions, stages func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		store:     memstore.New(),
		locker:    newMapLocker(),
		publisher: &recordingPublisher{},
	}
	provider := func(ct domain.ConnectorType) *fakeProvider {
		return &fakeProvider{connectorType: ct, connectionOK: true, stages: func(conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
			return stages(f, conn, sink)
		}}
	}
	f.registry = NewConnectorRegistry(provider(domain.ConnectorShopify), provider(domain.ConnectorStripe))
	reconciler := NewReconciler(f.store.Entities(), nil, zerolog.Nop())
	f.runner = NewSyncRunner(f.store.Connectors(), f.store.SyncLogs(), f.registry, reconciler, f.locker, f.publisher, nil, opts, zerolog.Nop())
	return f
}

func (f *runnerFixture) addConnector(t *testing.T, id, workspaceID string, ct domain.ConnectorType) *domain.Connector {
	t.Helper()
	conn := &domain.Connector{
		ID:          id,
		WorkspaceID: workspaceID,
		Type:        ct,
		Credentials: domain.StripeCredentials{APIKey: "sk_test"},
		Status:      domain.ConnectorStatusConnected,
		IsEnabled:   true,
		CreatedAt:   time.Now(),
	}
	if ct == domain.ConnectorShopify {
		conn.Credentials = domain.ShopifyCredentials{ShopDomain: "acme.myshopify.com", AccessToken: "shpat"}
	}
	require.NoError(t, f.store.Connectors().Create(context.Background(), conn))
	return conn
}

// customerStage upserts n customers of the connector's workspace
func customerStage(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink, n int) ports.SyncStage {
	return ports.SyncStage{Name: "customers", Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
		f.windows = append(f.windows, window)
		for i := 0; i < n; i++ {
			c := newCustomer(conn.WorkspaceID, string(rune('a'+i)), "x@example.com")
			c.Source = conn.Type
			if _, err := sink.Upsert(ctx, c); err != nil {
				return i, err
			}
		}
		return n, nil
	}}
}

func TestSyncSingleConnectorLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		return []ports.SyncStage{customerStage(f, conn, sink, 3)}
	})
	f.addConnector(t, "c1", "w1", domain.ConnectorShopify)

	summary, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, summary.Status)
	assert.Equal(t, domain.SyncTypeFull, summary.SyncType)
	assert.Equal(t, 3, summary.Records["customers"])

	logs, err := f.store.SyncLogs().ListByConnector(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.SyncStatusCompleted, logs[0].Status)
	assert.NotNil(t, logs[0].CompletedAt)
	assert.Equal(t, 3, logs[0].RecordsProcessed["customers"])

	conn, err := f.store.Connectors().GetByID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, conn.LastSyncAt)
	assert.Equal(t, summary.StartedAt, *conn.LastSyncAt)
	assert.Equal(t, domain.LastSyncCompleted, conn.LastSyncStatus)
	assert.Equal(t, domain.ConnectorStatusActive, conn.Status)

	assert.Equal(t, []domain.PipelineEventType{domain.EventSyncStarted, domain.EventSyncCompleted}, f.publisher.types())

	// second run is incremental from the first run's start and leaves the row count unchanged
	summary2, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncTypeIncremental, summary2.SyncType)
	require.Len(t, f.windows, 2)
	require.NotNil(t, f.windows[1].Since)
	assert.Equal(t, summary.StartedAt, *f.windows[1].Since)

	n, err := f.store.Entities().CountEntities(ctx, domain.KindEcommerceCustomer, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSyncSingleConnectorRethrowsFailure(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		return []ports.SyncStage{{Name: "ad_account", Prerequisite: true, Run: func(ctx context.Context, w ports.SyncWindow) (int, error) {
			return 0, &domain.ProviderError{Provider: domain.ConnectorShopify, StatusCode: 401, Body: "bad token"}
		}}}
	})
	conn := f.addConnector(t, "c1", "w1", domain.ConnectorShopify)
	previous := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	conn.LastSyncAt = &previous
	require.NoError(t, f.store.Connectors().Update(ctx, conn))

	summary, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPrerequisiteFailed)
	require.NotNil(t, summary)
	assert.Equal(t, RunStatusFailed, summary.Status)

	logs, err := f.store.SyncLogs().ListByConnector(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.SyncStatusFailed, logs[0].Status)

	stored, err := f.store.Connectors().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectorStatusError, stored.Status)
	assert.Equal(t, domain.LastSyncFailed, stored.LastSyncStatus)
	assert.Contains(t, stored.LastSyncError, "bad token")
	assert.Equal(t, previous, *stored.LastSyncAt, "a failed run must not move the incremental anchor")

	assert.Contains(t, f.publisher.types(), domain.EventSyncFailed)
}

func TestSyncPartialSuccess(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		return []ports.SyncStage{
			customerStage(f, conn, sink, 2),
			{Name: "products", Run: func(ctx context.Context, w ports.SyncWindow) (int, error) {
				return 0, errors.New("shopify api error: status 500")
			}},
			{Name: "orders", Run: func(ctx context.Context, w ports.SyncWindow) (int, error) { return 7, nil }},
		}
	})
	f.addConnector(t, "c1", "w1", domain.ConnectorShopify)

	summary, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusPartial, summary.Status)
	assert.Equal(t, 7, summary.Records["orders"])

	stored, err := f.store.Connectors().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.LastSyncPartial, stored.LastSyncStatus)
	assert.Contains(t, stored.LastSyncError, "products:")
	assert.Equal(t, domain.ConnectorStatusActive, stored.Status)
	assert.Nil(t, stored.LastSyncAt, "a partial full sync is retried in full")
}

func TestSyncPartialRunKeepsIncrementalAnchor(t *testing.T) {
	ctx := context.Background()
	run := 0
	f := newRunnerFixture(t, SyncRunnerOptions{}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		current := run
		run++
		return []ports.SyncStage{
			customerStage(f, conn, sink, 1),
			{Name: "products", Run: func(ctx context.Context, w ports.SyncWindow) (int, error) {
				if current == 1 {
					return 0, errors.New("shopify api error: status 500")
				}
				return 1, nil
			}},
		}
	})
	f.addConnector(t, "c1", "w1", domain.ConnectorShopify)

	first, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, first.Status)

	second, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.NoError(t, err)
	require.Equal(t, RunStatusPartial, second.Status)

	stored, err := f.store.Connectors().GetByID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastSyncAt)
	assert.Equal(t, first.StartedAt, *stored.LastSyncAt)

	third, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, third.Status)

	require.Len(t, f.windows, 3)
	require.NotNil(t, f.windows[2].Since)
	assert.Equal(t, first.StartedAt, *f.windows[2].Since, "the run after a partial one covers the failed window again")

	stored, err = f.store.Connectors().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, third.StartedAt, *stored.LastSyncAt)
}

func TestSyncKeepsOperatorChangesMadeDuringRun(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		return []ports.SyncStage{{Name: "customers", Run: func(ctx context.Context, w ports.SyncWindow) (int, error) {
			current, err := f.store.Connectors().GetByID(ctx, conn.ID)
			if err != nil {
				return 0, err
			}
			current.IsEnabled = false
			current.Status = domain.ConnectorStatusDisconnected
			return 1, f.store.Connectors().Update(ctx, current)
		}}}
	})
	f.addConnector(t, "c1", "w1", domain.ConnectorShopify)

	summary, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, summary.Status)

	stored, err := f.store.Connectors().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, stored.IsEnabled)
	assert.Equal(t, domain.ConnectorStatusDisconnected, stored.Status)
	assert.Equal(t, domain.LastSyncCompleted, stored.LastSyncStatus)
	require.NotNil(t, stored.LastSyncAt)
	assert.Equal(t, summary.StartedAt, *stored.LastSyncAt)

	_, err = f.runner.SyncSingleConnector(ctx, "w1", "c1")
	assert.ErrorIs(t, err, domain.ErrConnectorDisabled)
}

func TestSyncRecordsMissingProvider(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		return nil
	})
	f.addConnector(t, "c1", "w1", domain.ConnectorGA4)

	summary, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
	assert.Nil(t, summary)

	stored, err := f.store.Connectors().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectorStatusError, stored.Status)
	assert.Equal(t, domain.LastSyncFailed, stored.LastSyncStatus)
	assert.Contains(t, stored.LastSyncError, "unknown provider")
	assert.Nil(t, stored.LastSyncAt)
	assert.Empty(t, f.locker.held)

	logs, err := f.store.SyncLogs().ListByConnector(ctx, "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSyncWorkspaceConnectorsSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{Concurrency: 2}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		if conn.Type == domain.ConnectorStripe {
			return []ports.SyncStage{{Name: "customers", Prerequisite: true, Run: func(ctx context.Context, w ports.SyncWindow) (int, error) {
				return 0, errors.New("stripe down")
			}}}
		}
		return []ports.SyncStage{{Name: "customers", Run: func(ctx context.Context, w ports.SyncWindow) (int, error) { return 1, nil }}}
	})
	f.addConnector(t, "c1", "w1", domain.ConnectorShopify)
	f.addConnector(t, "c2", "w1", domain.ConnectorStripe)
	disabled := f.addConnector(t, "c3", "w1", domain.ConnectorShopify)
	disabled.IsEnabled = false
	require.NoError(t, f.store.Connectors().Update(ctx, disabled))
	f.addConnector(t, "c4", "w2", domain.ConnectorShopify)

	summaries, err := f.runner.SyncWorkspaceConnectors(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	byID := map[string]RunSummary{}
	for _, s := range summaries {
		byID[s.ConnectorID] = s
	}
	assert.Equal(t, RunStatusCompleted, byID["c1"].Status)
	assert.Equal(t, RunStatusFailed, byID["c2"].Status)
	assert.Equal(t, RunStatusSkipped, byID["c3"].Status)

	all, err := f.runner.SyncAllConnectors(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3, "disabled connectors are not listed")
}

func TestSyncSingleConnectorGuards(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		return nil
	})
	conn := f.addConnector(t, "c1", "w1", domain.ConnectorShopify)

	_, err := f.runner.SyncSingleConnector(ctx, "w2", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.runner.SyncSingleConnector(ctx, "w1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	lease, err := f.locker.Acquire(ctx, "sync:connector:c1", time.Minute)
	require.NoError(t, err)
	_, err = f.runner.SyncSingleConnector(ctx, "w1", "c1")
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	require.NoError(t, lease.Release(ctx))

	conn.IsEnabled = false
	require.NoError(t, f.store.Connectors().Update(ctx, conn))
	_, err = f.runner.SyncSingleConnector(ctx, "w1", "c1")
	assert.ErrorIs(t, err, domain.ErrConnectorDisabled)
}

func TestSyncRunDeadline(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, SyncRunnerOptions{RunTimeout: 20 * time.Millisecond}, func(f *runnerFixture, conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage {
		return []ports.SyncStage{{Name: "orders", Run: func(ctx context.Context, w ports.SyncWindow) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}}}
	})
	f.addConnector(t, "c1", "w1", domain.ConnectorShopify)

	summary, err := f.runner.SyncSingleConnector(ctx, "w1", "c1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, RunStatusFailed, summary.Status)

	logs, err := f.store.SyncLogs().ListByConnector(ctx, "c1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusFailed, logs[0].Status)
	assert.Empty(t, f.locker.held, "lease released after failure")
}
