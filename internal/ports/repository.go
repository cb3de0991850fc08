package ports

import (
	"context"
	"time"

	"aibos-connector-sync/internal/domain"
)

// ConnectorRepository defines the interface for connector persistence.
// Getters return nil, nil when nothing matches.
type ConnectorRepository interface {
	Create(ctx context.Context, connector *domain.Connector) error
	Update(ctx context.Context, connector *domain.Connector) error
	// RecordSyncState writes only the sync fields of a connector. It never
	// touches isEnabled, and leaves status alone once disconnected.
	RecordSyncState(ctx context.Context, id string, state domain.SyncState) error
	GetByID(ctx context.Context, id string) (*domain.Connector, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Connector, error)
	ListEnabled(ctx context.Context) ([]*domain.Connector, error)
	FindByAccountRef(ctx context.Context, connectorType domain.ConnectorType, accountRef string) ([]*domain.Connector, error)
}

// SyncLogRepository defines the interface for sync run audit records
type SyncLogRepository interface {
	Create(ctx context.Context, log *domain.SyncLog) error
	Update(ctx context.Context, log *domain.SyncLog) error
	ListByConnector(ctx context.Context, connectorID string, limit int) ([]*domain.SyncLog, error)
}

// WebhookEventRepository defines the interface for webhook processing records
type WebhookEventRepository interface {
	Get(ctx context.Context, provider domain.ConnectorType, eventID string) (*domain.WebhookEvent, error)
	// RecordAttempt creates the record on first delivery and increments attempts
	RecordAttempt(ctx context.Context, provider domain.ConnectorType, eventID, eventType string, receivedAt time.Time) (*domain.WebhookEvent, error)
	Update(ctx context.Context, event *domain.WebhookEvent) error
}

// EntityStore is the normalized store. UpsertEntity must be atomic against a
// unique index on (workspaceId, source, externalId): it inserts with newID or
// updates the existing row, and reports which id won. A concurrent insert
// race may surface as domain.ErrDuplicateKey.
type EntityStore interface {
	UpsertEntity(ctx context.Context, entity domain.NormalizedEntity, newID string, now time.Time) (id string, updated bool, err error)
	DeleteEntity(ctx context.Context, kind domain.EntityKind, identity domain.Identity) (bool, error)
	CountEntities(ctx context.Context, kind domain.EntityKind, workspaceID string) (int64, error)
}

// Store bundles the repositories of one storage backend
type Store interface {
	Connectors() ConnectorRepository
	SyncLogs() SyncLogRepository
	WebhookEvents() WebhookEventRepository
	Entities() EntityStore
	// EnsureSchema creates collections/tables and unique indexes
	EnsureSchema(ctx context.Context) error
	Close(ctx context.Context) error
}
