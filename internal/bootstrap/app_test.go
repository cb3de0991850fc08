package bootstrap

import (
	"context"
	"testing"
	"time"

	"aibos-connector-sync/internal/config"
	"aibos-connector-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "test",
		LogLevel:      "debug",
		StoreURI:      "memory://",
		EncryptionKey: "test-passphrase",
		Sync: config.SyncConfig{
			RunTimeout:     time.Minute,
			RequestTimeout: time.Second,
			Concurrency:    2,
			LockTTL:        2 * time.Minute,
			MaxRetries:     1,
		},
		Webhooks: config.WebhookConfig{MaxAttempts: 5, Tolerance: 5 * time.Minute},
		Providers: config.ProviderConfig{
			ShopifyAPIVersion: "2024-10",
			StripeBaseURL:     "http://127.0.0.1:1",
			MetaBaseURL:       "http://127.0.0.1:1/",
			MetaAPIVersion:    "v19.0",
			GA4BaseURL:        "http://127.0.0.1:1",
			GA4TokenURL:       "http://127.0.0.1:1/token",
			TiendanubeBaseURL: "http://127.0.0.1:1",
		},
		Schedule: config.ScheduleConfig{
			ConnectorSync:    "0 */6 * * *",
			AnomalyDetection: "0 3 * * *",
			WeeklyReport:     "0 6 * * 1",
		},
	}
}

func TestNewWiresEveryProvider(t *testing.T) {
	app, err := New(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer app.Close(context.Background())

	assert.ElementsMatch(t, domain.ConnectorTypes, app.Registry.Types())
	assert.Len(t, app.Scheduler.Jobs(), 3)
	assert.Nil(t, app.NewSyncRequestConsumer())
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.ConnectorSync = "not a cron"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestOpenStoreRejectsUnknownScheme(t *testing.T) {
	_, err := OpenStore(context.Background(), "ftp://nope", "", nil, zerolog.Nop())
	require.Error(t, err)
}

func TestHandleSyncRequestRoutesByScope(t *testing.T) {
	app, err := New(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer app.Close(context.Background())

	err = app.HandleSyncRequest(context.Background(), domain.SyncRequest{WorkspaceID: "ws-1", ConnectorID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, app.HandleSyncRequest(context.Background(), domain.SyncRequest{WorkspaceID: "ws-1"}))
	assert.NoError(t, app.HandleSyncRequest(context.Background(), domain.SyncRequest{}))
}

func TestMetaBaseURL(t *testing.T) {
	assert.Equal(t, "https://graph.facebook.com/v19.0", metaBaseURL(config.ProviderConfig{MetaBaseURL: "https://graph.facebook.com/", MetaAPIVersion: "v19.0"}))
	assert.Equal(t, "http://meta.test", metaBaseURL(config.ProviderConfig{MetaBaseURL: "http://meta.test"}))
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "warn"
	assert.Equal(t, zerolog.WarnLevel, NewLogger(cfg, nil).GetLevel())

	cfg.LogLevel = "bogus"
	assert.Equal(t, zerolog.InfoLevel, NewLogger(cfg, nil).GetLevel())
}
