package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stageRecorder struct {
	order   []string
	windows []ports.SyncWindow
}

func (r *stageRecorder) stage(name string, prerequisite bool, n int, err error) ports.SyncStage {
	return ports.SyncStage{
		Name:         name,
		Prerequisite: prerequisite,
		Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
			r.order = append(r.order, name)
			r.windows = append(r.windows, window)
			return n, err
		},
	}
}

func testConnector(t domain.ConnectorType) *domain.Connector {
	return &domain.Connector{ID: "c1", WorkspaceID: "w1", Type: t, IsEnabled: true}
}

func TestOrchestratorRunsStagesInOrder(t *testing.T) {
	rec := &stageRecorder{}
	stages := []ports.SyncStage{
		rec.stage("customers", false, 3, nil),
		rec.stage("products", false, 5, nil),
		rec.stage("orders", false, 260, nil),
	}
	orch := NewOrchestrator(testConnector(domain.ConnectorShopify), stages, nil, zerolog.Nop())

	result, err := orch.FullSync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"customers", "products", "orders"}, rec.order)
	assert.Equal(t, map[string]int{"customers": 3, "products": 5, "orders": 260}, result.RecordsProcessed)
	for _, w := range rec.windows {
		assert.False(t, w.IsIncremental())
	}
}

func TestOrchestratorIsolatesStageFailures(t *testing.T) {
	rec := &stageRecorder{}
	stages := []ports.SyncStage{
		rec.stage("customers", false, 2, nil),
		rec.stage("plans", false, 0, errors.New("stripe api error: status 500")),
		rec.stage("subscriptions", false, 4, nil),
		rec.stage("invoices", false, 1, nil),
	}
	orch := NewOrchestrator(testConnector(domain.ConnectorStripe), stages, nil, zerolog.Nop())

	result, err := orch.FullSync(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"customers", "plans", "subscriptions", "invoices"}, rec.order)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "plans", result.Errors[0].Type)
	assert.Equal(t, 4, result.RecordsProcessed["subscriptions"])
}

func TestOrchestratorAbortsOnPrerequisiteFailure(t *testing.T) {
	rec := &stageRecorder{}
	stages := []ports.SyncStage{
		rec.stage("ad_account", true, 0, errors.New("meta_ads api error: status 401")),
		rec.stage("campaigns", false, 9, nil),
		rec.stage("ad_sets", false, 9, nil),
		rec.stage("ads", false, 9, nil),
		rec.stage("insights", false, 9, nil),
	}
	orch := NewOrchestrator(testConnector(domain.ConnectorMetaAds), stages, nil, zerolog.Nop())

	result, err := orch.FullSync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPrerequisiteFailed)
	assert.Equal(t, []string{"ad_account"}, rec.order, "no stage may run after a failed prerequisite")
	require.NotNil(t, result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ad_account", result.Errors[0].Type)
}

func TestOrchestratorPassesSinceToEveryStage(t *testing.T) {
	rec := &stageRecorder{}
	stages := []ports.SyncStage{
		rec.stage("customers", false, 0, nil),
		rec.stage("products", false, 0, nil),
		rec.stage("orders", false, 0, nil),
	}
	orch := NewOrchestrator(testConnector(domain.ConnectorTiendanube), stages, nil, zerolog.Nop())

	since := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	_, err := orch.IncrementalSync(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, rec.windows, 3)
	for _, w := range rec.windows {
		require.NotNil(t, w.Since)
		assert.Equal(t, since, *w.Since)
	}
}

func TestOrchestratorStopsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := []string{}
	stages := []ports.SyncStage{
		{Name: "daily_metrics", Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
			ran = append(ran, "daily_metrics")
			<-ctx.Done()
			return 0, ctx.Err()
		}},
		{Name: "never", Run: func(ctx context.Context, window ports.SyncWindow) (int, error) {
			ran = append(ran, "never")
			return 0, nil
		}},
	}
	orch := NewOrchestrator(testConnector(domain.ConnectorGA4), stages, nil, zerolog.Nop())

	_, err := orch.FullSync(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"daily_metrics"}, ran)
}
