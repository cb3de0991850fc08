// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the connector sync service.
// Values come from environment variables, optionally seeded from a .env file.
type Config struct {
	AppEnv   string `env:"APP_ENV" env-default:"production"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Port     string `env:"PORT" env-default:"8080"`
	AppURL   string `env:"APP_URL" env-default:"http://localhost:8080"`

	// StoreURI selects the storage backend by scheme:
	// mongodb://, mongodb+srv://, postgres://, postgresql://, sqlite://, memory://
	StoreURI      string `env:"STORE_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" env-default:"aibos"`

	// Secret - 32-byte key (hex or base64) or a passphrase
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	// Static bearer token guarding the trigger endpoints; empty disables the check
	APIToken string `env:"API_TOKEN"`

	Redis     RedisConfig
	Kafka     KafkaConfig
	Sync      SyncConfig
	Webhooks  WebhookConfig
	Providers ProviderConfig
	Schedule  ScheduleConfig
}

// RedisConfig configures the distributed sync lease. Empty URL uses an in-process lock.
type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

// KafkaConfig configures event publishing and the sync-request consumer.
// No brokers disables both.
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" env-separator:","`
	EventsTopic       string   `env:"KAFKA_EVENTS_TOPIC" env-default:"connector-events"`
	SyncRequestsTopic string   `env:"KAFKA_SYNC_REQUESTS_TOPIC" env-default:"connector-sync-requests"`
	GroupID           string   `env:"KAFKA_GROUP_ID" env-default:"connector-sync"`
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type SyncConfig struct {
	RunTimeout     time.Duration `env:"SYNC_RUN_TIMEOUT" env-default:"2h"`
	RequestTimeout time.Duration `env:"SYNC_REQUEST_TIMEOUT" env-default:"30s"`
	Concurrency    int           `env:"SYNC_CONCURRENCY" env-default:"1"`
	LockTTL        time.Duration `env:"SYNC_LOCK_TTL" env-default:"2h15m"`
	MaxRetries     int           `env:"SYNC_MAX_RETRIES" env-default:"3"`
}

type WebhookConfig struct {
	ShopifySecret    string        `env:"SHOPIFY_WEBHOOK_SECRET"`
	StripeSecret     string        `env:"STRIPE_WEBHOOK_SECRET"`
	MetaAppSecret    string        `env:"META_APP_SECRET"`
	MetaVerifyToken  string        `env:"META_VERIFY_TOKEN"`
	TiendanubeSecret string        `env:"TIENDANUBE_APP_SECRET"`
	MaxAttempts      int           `env:"WEBHOOK_MAX_ATTEMPTS" env-default:"5"`
	Tolerance        time.Duration `env:"WEBHOOK_TOLERANCE" env-default:"5m"`
}

// Secrets returns the signing secret per provider
func (w WebhookConfig) Secrets() map[domain.ConnectorType]string {
	return map[domain.ConnectorType]string{
		domain.ConnectorShopify:    w.ShopifySecret,
		domain.ConnectorStripe:     w.StripeSecret,
		domain.ConnectorMetaAds:    w.MetaAppSecret,
		domain.ConnectorTiendanube: w.TiendanubeSecret,
	}
}

type ProviderConfig struct {
	ShopifyAPIVersion   string `env:"SHOPIFY_API_VERSION" env-default:"2024-10"`
	StripeBaseURL       string `env:"STRIPE_BASE_URL" env-default:"https://api.stripe.com"`
	MetaBaseURL         string `env:"META_BASE_URL" env-default:"https://graph.facebook.com"`
	MetaAPIVersion      string `env:"META_API_VERSION" env-default:"v19.0"`
	GA4BaseURL          string `env:"GA4_BASE_URL" env-default:"https://analyticsdata.googleapis.com/v1beta"`
	GA4TokenURL         string `env:"GA4_TOKEN_URL" env-default:"https://oauth2.googleapis.com/token"`
	GA4ClientID         string `env:"GA4_CLIENT_ID"`
	GA4ClientSecret     string `env:"GA4_CLIENT_SECRET"`
	TiendanubeBaseURL   string `env:"TIENDANUBE_BASE_URL" env-default:"https://api.tiendanube.com/v1"`
	TiendanubeUserAgent string `env:"TIENDANUBE_USER_AGENT" env-default:"AI Business OS (support@aibos.app)"`
}

type ScheduleConfig struct {
	Enabled          bool   `env:"SCHEDULER_ENABLED" env-default:"true"`
	ConnectorSync    string `env:"SCHEDULE_CONNECTOR_SYNC" env-default:"0 */6 * * *"`
	AnomalyDetection string `env:"SCHEDULE_ANOMALY_DETECTION" env-default:"0 3 * * *"`
	WeeklyReport     string `env:"SCHEDULE_WEEKLY_REPORT" env-default:"0 6 * * 1"`
}

// Load reads configuration from the environment. Missing .env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints after loading
func (c *Config) Validate() error {
	var errs []error
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required"))
	}
	if c.Sync.Concurrency < 1 {
		errs = append(errs, errors.New("SYNC_CONCURRENCY must be at least 1"))
	}
	if c.Sync.RunTimeout <= 0 {
		errs = append(errs, errors.New("SYNC_RUN_TIMEOUT must be positive"))
	}
	if c.Sync.LockTTL < c.Sync.RunTimeout {
		errs = append(errs, errors.New("SYNC_LOCK_TTL must not be shorter than SYNC_RUN_TIMEOUT"))
	}
	if c.Webhooks.MaxAttempts < 1 {
		errs = append(errs, errors.New("WEBHOOK_MAX_ATTEMPTS must be at least 1"))
	}
	if !hasKnownStoreScheme(c.StoreURI) {
		errs = append(errs, fmt.Errorf("STORE_URI has unsupported scheme: %q", c.StoreURI))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether human-readable console logs should be used
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "local"
}

var storeSchemes = []string{"mongodb://", "mongodb+srv://", "postgres://", "postgresql://", "sqlite://", "memory://"}

func hasKnownStoreScheme(uri string) bool {
	for _, s := range storeSchemes {
		if strings.HasPrefix(uri, s) {
			return true
		}
	}
	return false
}
