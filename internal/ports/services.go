package ports

import (
	"context"
	"time"

	"aibos-connector-sync/internal/domain"
)

// EncryptionService defines the interface for credential encryption at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// CredentialSealer encrypts connector credentials at rest
type CredentialSealer interface {
	Seal(creds domain.Credentials) (string, error)
	Open(connectorType domain.ConnectorType, sealed string) (domain.Credentials, error)
}

// Lease is a held sync lock
type Lease interface {
	Release(ctx context.Context) error
}

// SyncLocker hands out exclusive per-connector leases.
// Acquire returns domain.ErrSyncInProgress when the key is already held.
type SyncLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// EventPublisher delivers pipeline events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PipelineEvent) error
}

// Metrics records pipeline observations
type Metrics interface {
	SyncRunFinished(provider domain.ConnectorType, status string, duration time.Duration)
	StageFinished(provider domain.ConnectorType, stage string, records int, failed bool)
	EntityUpserted(kind domain.EntityKind, updated bool)
	UpsertConflict(kind domain.EntityKind)
	WebhookReceived(provider domain.ConnectorType, outcome string)
}

// NopMetrics discards all observations
type NopMetrics struct{}

func (NopMetrics) SyncRunFinished(domain.ConnectorType, string, time.Duration) {}
func (NopMetrics) StageFinished(domain.ConnectorType, string, int, bool)       {}
func (NopMetrics) EntityUpserted(domain.EntityKind, bool)                      {}
func (NopMetrics) UpsertConflict(domain.EntityKind)                            {}
func (NopMetrics) WebhookReceived(domain.ConnectorType, string)                {}
