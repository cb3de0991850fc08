package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/memstore"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectorServiceFixture(connectionOK bool) (*ConnectorService, *memstore.Store, *fakeProvider, *recordingPublisher) {
	store := memstore.New()
	provider := &fakeProvider{connectorType: domain.ConnectorStripe, connectionOK: connectionOK}
	publisher := &recordingPublisher{}
	svc := NewConnectorService(store.Connectors(), store.SyncLogs(), NewConnectorRegistry(provider), publisher, zerolog.Nop())
	return svc, store, provider, publisher
}

func TestCreateConnector(t *testing.T) {
	svc, store, _, publisher := newConnectorServiceFixture(true)
	ctx := context.Background()

	conn, err := svc.CreateConnector(ctx, CreateConnectorInput{
		WorkspaceID: "w1",
		Type:        "stripe",
		Credentials: json.RawMessage(`{"apiKey":"sk_test_1","accountId":"acct_9"}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, conn.ID)
	assert.Equal(t, domain.ConnectorStatusConnected, conn.Status)
	assert.True(t, conn.IsEnabled)
	assert.Equal(t, domain.ConnectorStripe, conn.Type)

	stored, err := store.Connectors().GetByID(ctx, conn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, conn.AccountRef, stored.AccountRef)
	assert.Equal(t, []domain.PipelineEventType{domain.EventConnectorStatus}, publisher.types())
}

func TestCreateConnectorFailedProbeStoresErrorState(t *testing.T) {
	svc, _, _, _ := newConnectorServiceFixture(false)

	conn, err := svc.CreateConnector(context.Background(), CreateConnectorInput{
		WorkspaceID: "w1",
		Type:        "stripe",
		Credentials: json.RawMessage(`{"apiKey":"sk_test_1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectorStatusError, conn.Status)
	assert.NotEmpty(t, conn.LastSyncError)
}

func TestCreateConnectorValidation(t *testing.T) {
	svc, _, _, _ := newConnectorServiceFixture(true)
	ctx := context.Background()

	_, err := svc.CreateConnector(ctx, CreateConnectorInput{Type: "stripe", Credentials: json.RawMessage(`{"apiKey":"x"}`)})
	assert.Error(t, err)

	_, err = svc.CreateConnector(ctx, CreateConnectorInput{WorkspaceID: "w1", Type: "myspace"})
	assert.True(t, errors.Is(err, domain.ErrUnknownProvider))

	// known type without a registered provider
	_, err = svc.CreateConnector(ctx, CreateConnectorInput{WorkspaceID: "w1", Type: "ga4"})
	assert.True(t, errors.Is(err, domain.ErrUnknownProvider))

	_, err = svc.CreateConnector(ctx, CreateConnectorInput{WorkspaceID: "w1", Type: "stripe", Credentials: json.RawMessage(`{}`)})
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
}

func TestConnectorWorkspaceScoping(t *testing.T) {
	svc, _, _, _ := newConnectorServiceFixture(true)
	ctx := context.Background()

	conn, err := svc.CreateConnector(ctx, CreateConnectorInput{WorkspaceID: "w1", Type: "stripe", Credentials: json.RawMessage(`{"apiKey":"sk"}`)})
	require.NoError(t, err)

	_, err = svc.GetConnector(ctx, "w2", conn.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	list, err := svc.ListConnectors(ctx, "w2")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.ListConnectors(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSetEnabledAndTestConnector(t *testing.T) {
	svc, _, provider, publisher := newConnectorServiceFixture(true)
	ctx := context.Background()

	conn, err := svc.CreateConnector(ctx, CreateConnectorInput{WorkspaceID: "w1", Type: "stripe", Credentials: json.RawMessage(`{"apiKey":"sk"}`)})
	require.NoError(t, err)

	disabled, err := svc.SetEnabled(ctx, "w1", conn.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.IsEnabled)
	assert.False(t, disabled.Syncable())

	provider.connectionOK = false
	ok, err := svc.TestConnector(ctx, "w1", conn.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := svc.GetConnector(ctx, "w1", conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectorStatusError, got.Status)

	provider.connectionOK = true
	ok, err = svc.TestConnector(ctx, "w1", conn.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = svc.GetConnector(ctx, "w1", conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectorStatusConnected, got.Status)
	assert.Len(t, publisher.types(), 3)
}

func TestListSyncLogs(t *testing.T) {
	svc, store, _, _ := newConnectorServiceFixture(true)
	ctx := context.Background()

	conn, err := svc.CreateConnector(ctx, CreateConnectorInput{WorkspaceID: "w1", Type: "stripe", Credentials: json.RawMessage(`{"apiKey":"sk"}`)})
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		log := domain.NewSyncLog("log-"+string(rune('a'+i)), conn, domain.SyncTypeFull, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.SyncLogs().Create(ctx, log))
	}

	logs, err := svc.ListSyncLogs(ctx, "w1", conn.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "log-c", logs[0].ID)

	_, err = svc.ListSyncLogs(ctx, "w2", conn.ID, 0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
