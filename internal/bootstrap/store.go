package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"aibos-connector-sync/internal/infrastructure/memstore"
	"aibos-connector-sync/internal/infrastructure/repository"
	"aibos-connector-sync/internal/infrastructure/sqlstore"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Store is the persistence backend behind every repository
type Store interface {
	Connectors() ports.ConnectorRepository
	SyncLogs() ports.SyncLogRepository
	WebhookEvents() ports.WebhookEventRepository
	Entities() ports.EntityStore
	EnsureSchema(ctx context.Context) error
	Close(ctx context.Context) error
}

// OpenStore picks the backend from the URI scheme and prepares its schema
func OpenStore(ctx context.Context, uri, mongoDatabase string, sealer ports.CredentialSealer, logger zerolog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch {
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		store, err = repository.Connect(ctx, uri, mongoDatabase, sealer, logger)
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"), strings.HasPrefix(uri, "sqlite://"):
		store, err = sqlstore.Open(uri, sealer, logger)
	case strings.HasPrefix(uri, "memory://"):
		store = memstore.New()
	default:
		return nil, fmt.Errorf("unsupported store URI scheme")
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to prepare store schema: %w", err)
	}
	return store, nil
}
