// Package bootstrap assembles the service from configuration. Both the API
// server and the CLI build their dependencies here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aibos-connector-sync/internal/application"
	"aibos-connector-sync/internal/application/webhook_handlers"
	"aibos-connector-sync/internal/config"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/encryption"
	"aibos-connector-sync/internal/infrastructure/events"
	"aibos-connector-sync/internal/infrastructure/ga4"
	"aibos-connector-sync/internal/infrastructure/httpclient"
	"aibos-connector-sync/internal/infrastructure/lock"
	"aibos-connector-sync/internal/infrastructure/metaads"
	"aibos-connector-sync/internal/infrastructure/metrics"
	"aibos-connector-sync/internal/infrastructure/realtime"
	"aibos-connector-sync/internal/infrastructure/shopify"
	"aibos-connector-sync/internal/infrastructure/stripe"
	"aibos-connector-sync/internal/infrastructure/tiendanube"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// App holds the wired services
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      Store
	Hub        *realtime.Hub
	Metrics    *metrics.Prometheus
	Publisher  ports.EventPublisher
	Registry   *application.ConnectorRegistry
	Reconciler *application.Reconciler
	Connectors *application.ConnectorService
	Runner     *application.SyncRunner
	Webhooks   *application.WebhookGateway
	Scheduler  *application.Scheduler

	closers []func(ctx context.Context) error
}

// New connects to the store and wires every service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	if err := app.wire(ctx); err != nil {
		_ = app.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	logger.Info().
		Str("store", storeKind(cfg.StoreURI)).
		Bool("redisLock", cfg.Redis.URL != "").
		Bool("kafka", cfg.Kafka.Enabled()).
		Strs("providers", providerNames(app.Registry)).
		Msg("Service wired")
	return app, nil
}

func (app *App) wire(ctx context.Context) error {
	cfg, logger := app.Config, app.Logger

	encryptionSvc, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	sealer := encryption.NewCredentialCodec(encryptionSvc)

	store, err := OpenStore(ctx, cfg.StoreURI, cfg.MongoDatabase, sealer, logger.With().Str("component", "store").Logger())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	app.Store = store
	app.closers = append(app.closers, store.Close)

	locker, err := app.newLocker(ctx)
	if err != nil {
		return err
	}

	app.Hub = realtime.NewHub(logger.With().Str("component", "realtime").Logger())
	publishers := events.FanOut{app.Hub}
	if cfg.Kafka.Enabled() {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, logger.With().Str("component", "kafka").Logger())
		publishers = append(publishers, kafkaPublisher)
		app.closers = append(app.closers, func(context.Context) error { return kafkaPublisher.Close() })
	}
	app.Publisher = publishers

	app.Metrics = metrics.NewPrometheus()

	retry := httpclient.DefaultRetryConfig()
	retry.MaxRetries = cfg.Sync.MaxRetries
	httpClients := httpclient.NewFactory(
		httpclient.NewRateLimiter(logger, httpclient.DefaultProviderLimits()),
		retry,
		cfg.Sync.RequestTimeout,
		logger.With().Str("component", "http").Logger(),
	)

	providerLogger := func(p domain.ConnectorType) zerolog.Logger {
		return logger.With().Str("provider", string(p)).Logger()
	}
	shopifyClients := shopify.NewClientFactory(httpClients, cfg.Providers.ShopifyAPIVersion, providerLogger(domain.ConnectorShopify))
	stripeClients := stripe.NewClientFactory(httpClients, cfg.Providers.StripeBaseURL, providerLogger(domain.ConnectorStripe))
	metaClients := metaads.NewClientFactory(httpClients, metaBaseURL(cfg.Providers), providerLogger(domain.ConnectorMetaAds))
	ga4Clients := ga4.NewClientFactory(httpClients, cfg.Providers.GA4BaseURL, ga4.OAuthConfig{
		ClientID:     cfg.Providers.GA4ClientID,
		ClientSecret: cfg.Providers.GA4ClientSecret,
		TokenURL:     cfg.Providers.GA4TokenURL,
	}, providerLogger(domain.ConnectorGA4))
	tiendanubeClients := tiendanube.NewClientFactory(httpClients, cfg.Providers.TiendanubeBaseURL, cfg.Providers.TiendanubeUserAgent, providerLogger(domain.ConnectorTiendanube))

	app.Registry = application.NewConnectorRegistry(
		shopify.NewProvider(shopifyClients, providerLogger(domain.ConnectorShopify)),
		stripe.NewProvider(stripeClients, providerLogger(domain.ConnectorStripe)),
		metaads.NewProvider(metaClients, providerLogger(domain.ConnectorMetaAds)),
		ga4.NewProvider(ga4Clients, providerLogger(domain.ConnectorGA4)),
		tiendanube.NewProvider(tiendanubeClients, providerLogger(domain.ConnectorTiendanube)),
	)

	app.Reconciler = application.NewReconciler(store.Entities(), app.Metrics, logger.With().Str("component", "reconciler").Logger())

	app.Connectors = application.NewConnectorService(store.Connectors(), store.SyncLogs(), app.Registry, app.Publisher, logger.With().Str("component", "connectors").Logger())

	app.Runner = application.NewSyncRunner(
		store.Connectors(),
		store.SyncLogs(),
		app.Registry,
		app.Reconciler,
		locker,
		app.Publisher,
		app.Metrics,
		application.SyncRunnerOptions{
			RunTimeout:  cfg.Sync.RunTimeout,
			Concurrency: cfg.Sync.Concurrency,
			LockTTL:     cfg.Sync.LockTTL,
		},
		logger.With().Str("component", "sync").Logger(),
	)

	webhookLogger := logger.With().Str("component", "webhooks").Logger()
	app.Webhooks = application.NewWebhookGateway(
		store.Connectors(),
		store.WebhookEvents(),
		app.Reconciler,
		app.Publisher,
		app.Metrics,
		application.WebhookGatewayOptions{
			Secrets:     cfg.Webhooks.Secrets(),
			MaxAttempts: cfg.Webhooks.MaxAttempts,
		},
		webhookLogger,
	)
	lifecycle := webhook_handlers.NewConnectorLifecycleHandler(store.Connectors(), app.Publisher, webhookLogger)
	app.Webhooks.RegisterProvider(shopify.NewWebhookAdapter(cfg.Webhooks.Tolerance),
		webhook_handlers.NewCustomerHandler(webhookLogger),
		webhook_handlers.NewOrderHandler(webhookLogger),
		webhook_handlers.NewProductHandler(webhookLogger),
		lifecycle,
	)
	app.Webhooks.RegisterProvider(stripe.NewWebhookAdapter(cfg.Webhooks.Tolerance),
		stripe.NewEventHandler(webhookLogger),
		lifecycle,
	)
	app.Webhooks.RegisterProvider(metaads.NewWebhookAdapter(),
		metaads.NewChangeHandler(metaClients, webhookLogger),
	)
	app.Webhooks.RegisterProvider(tiendanube.NewWebhookAdapter(),
		tiendanube.NewResourceHandler(tiendanubeClients, webhookLogger),
		lifecycle,
	)

	specs := application.ScheduleSpecs{
		ConnectorSync:    cfg.Schedule.ConnectorSync,
		AnomalyDetection: cfg.Schedule.AnomalyDetection,
		WeeklyReport:     cfg.Schedule.WeeklyReport,
	}
	scheduler, err := application.NewScheduler(app.Runner, app.Publisher, specs, logger.With().Str("component", "scheduler").Logger())
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	app.Scheduler = scheduler

	return nil
}

func (app *App) newLocker(ctx context.Context) (ports.SyncLocker, error) {
	if app.Config.Redis.URL == "" {
		app.Logger.Warn().Msg("REDIS_URL not set, sync leases are local to this process")
		return lock.NewLocalLocker(), nil
	}
	client, err := lock.NewRedisClient(ctx, app.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	return lock.NewRedisLocker(client, app.Logger.With().Str("component", "lock").Logger()), nil
}

// NewSyncRequestConsumer returns the Kafka consumer of sync requests, or nil
// when Kafka is not configured
func (app *App) NewSyncRequestConsumer() *events.SyncRequestConsumer {
	if !app.Config.Kafka.Enabled() {
		return nil
	}
	consumer := events.NewSyncRequestConsumer(
		app.Config.Kafka.Brokers,
		app.Config.Kafka.SyncRequestsTopic,
		app.Config.Kafka.GroupID,
		app.HandleSyncRequest,
		app.Logger.With().Str("component", "kafka-consumer").Logger(),
	)
	app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	return consumer
}

// HandleSyncRequest runs the sync a queued request asks for
func (app *App) HandleSyncRequest(ctx context.Context, req domain.SyncRequest) error {
	ctx = domain.WithTrigger(ctx, domain.TriggerQueue)
	switch {
	case req.ConnectorID != "":
		_, err := app.Runner.SyncSingleConnector(ctx, req.WorkspaceID, req.ConnectorID)
		return err
	case req.WorkspaceID != "":
		_, err := app.Runner.SyncWorkspaceConnectors(ctx, req.WorkspaceID)
		return err
	default:
		_, err := app.Runner.SyncAllConnectors(ctx)
		return err
	}
}

// Close releases every resource in reverse order of acquisition
func (app *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func metaBaseURL(p config.ProviderConfig) string {
	base := strings.TrimRight(p.MetaBaseURL, "/")
	if p.MetaAPIVersion == "" {
		return base
	}
	return base + "/" + p.MetaAPIVersion
}

func storeKind(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return uri[:i]
	}
	return "unknown"
}

func providerNames(r *application.ConnectorRegistry) []string {
	types := r.Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return names
}
