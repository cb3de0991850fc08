package sqlstore

import (
	"time"

	"aibos-connector-sync/internal/domain"
)

// ConnectorRecord is the connectors table row. Credentials hold the sealed blob.
type ConnectorRecord struct {
	ID             string            `gorm:"primaryKey;size:64"`
	WorkspaceID    string            `gorm:"size:128;not null;index:idx_connectors_workspace"`
	Type           string            `gorm:"size:32;not null;index:idx_connectors_account,priority:1"`
	Credentials    string            `gorm:"type:text;not null"`
	Settings       map[string]string `gorm:"serializer:json"`
	Status         string            `gorm:"size:32;not null"`
	IsEnabled      bool              `gorm:"not null;index:idx_connectors_enabled"`
	AccountRef     string            `gorm:"size:255;index:idx_connectors_account,priority:2"`
	LastSyncAt     *time.Time
	LastSyncStatus string    `gorm:"size:32"`
	LastSyncError  string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (ConnectorRecord) TableName() string { return "connectors" }

func (r *ConnectorRecord) toDomain(creds domain.Credentials) *domain.Connector {
	return &domain.Connector{
		ID:             r.ID,
		WorkspaceID:    r.WorkspaceID,
		Type:           domain.ConnectorType(r.Type),
		Credentials:    creds,
		Settings:       r.Settings,
		Status:         domain.ConnectorStatus(r.Status),
		IsEnabled:      r.IsEnabled,
		AccountRef:     r.AccountRef,
		LastSyncAt:     r.LastSyncAt,
		LastSyncStatus: r.LastSyncStatus,
		LastSyncError:  r.LastSyncError,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func connectorRecordFromDomain(c *domain.Connector, sealed string) *ConnectorRecord {
	return &ConnectorRecord{
		ID:             c.ID,
		WorkspaceID:    c.WorkspaceID,
		Type:           string(c.Type),
		Credentials:    sealed,
		Settings:       c.Settings,
		Status:         string(c.Status),
		IsEnabled:      c.IsEnabled,
		AccountRef:     c.AccountRef,
		LastSyncAt:     c.LastSyncAt,
		LastSyncStatus: c.LastSyncStatus,
		LastSyncError:  c.LastSyncError,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// SyncLogRecord is the sync_logs table row
type SyncLogRecord struct {
	ID               string             `gorm:"primaryKey;size:64"`
	ConnectorID      string             `gorm:"size:64;not null;index:idx_sync_logs_connector,priority:1"`
	WorkspaceID      string             `gorm:"size:128;not null"`
	Provider         string             `gorm:"size:32;not null"`
	Status           string             `gorm:"size:32;not null"`
	SyncType         string             `gorm:"size:32;not null"`
	StartedAt        time.Time          `gorm:"not null;index:idx_sync_logs_connector,priority:2,sort:desc"`
	CompletedAt      *time.Time
	RecordsProcessed map[string]int     `gorm:"serializer:json"`
	Errors           []domain.SyncError `gorm:"serializer:json"`
}

func (SyncLogRecord) TableName() string { return "sync_logs" }

func (r *SyncLogRecord) toDomain() *domain.SyncLog {
	return &domain.SyncLog{
		ID:               r.ID,
		ConnectorID:      r.ConnectorID,
		WorkspaceID:      r.WorkspaceID,
		Provider:         domain.ConnectorType(r.Provider),
		Status:           domain.SyncStatus(r.Status),
		SyncType:         domain.SyncType(r.SyncType),
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		RecordsProcessed: r.RecordsProcessed,
		Errors:           r.Errors,
	}
}

func syncLogRecordFromDomain(l *domain.SyncLog) *SyncLogRecord {
	return &SyncLogRecord{
		ID:               l.ID,
		ConnectorID:      l.ConnectorID,
		WorkspaceID:      l.WorkspaceID,
		Provider:         string(l.Provider),
		Status:           string(l.Status),
		SyncType:         string(l.SyncType),
		StartedAt:        l.StartedAt,
		CompletedAt:      l.CompletedAt,
		RecordsProcessed: l.RecordsProcessed,
		Errors:           l.Errors,
	}
}

// WebhookEventRecord is the webhook_events table row, unique on (provider, event_id)
type WebhookEventRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	Provider    string `gorm:"size:32;not null;uniqueIndex:idx_webhook_events_provider_event,priority:1"`
	EventID     string `gorm:"size:255;not null;uniqueIndex:idx_webhook_events_provider_event,priority:2"`
	EventType   string `gorm:"size:128"`
	ConnectorID string `gorm:"size:64"`
	WorkspaceID string `gorm:"size:128"`
	Status      string `gorm:"size:32;not null"`
	ReceivedAt  time.Time
	ProcessedAt *time.Time
	Attempts    int    `gorm:"not null"`
	LastError   string `gorm:"type:text"`
}

func (WebhookEventRecord) TableName() string { return "webhook_events" }

func (r *WebhookEventRecord) toDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:          r.ID,
		Provider:    domain.ConnectorType(r.Provider),
		EventID:     r.EventID,
		EventType:   r.EventType,
		ConnectorID: r.ConnectorID,
		WorkspaceID: r.WorkspaceID,
		Status:      domain.WebhookStatus(r.Status),
		ReceivedAt:  r.ReceivedAt,
		ProcessedAt: r.ProcessedAt,
		Attempts:    r.Attempts,
		LastError:   r.LastError,
	}
}

func webhookEventRecordFromDomain(e *domain.WebhookEvent) *WebhookEventRecord {
	return &WebhookEventRecord{
		ID:          e.ID,
		Provider:    string(e.Provider),
		EventID:     e.EventID,
		EventType:   e.EventType,
		ConnectorID: e.ConnectorID,
		WorkspaceID: e.WorkspaceID,
		Status:      string(e.Status),
		ReceivedAt:  e.ReceivedAt,
		ProcessedAt: e.ProcessedAt,
		Attempts:    e.Attempts,
		LastError:   e.LastError,
	}
}

// EntityRecord is a row of one normalized entity table. The table name is
// the entity kind; the full entity is kept as JSON in Payload.
type EntityRecord struct {
	ID              string `gorm:"primaryKey;size:64"`
	WorkspaceID     string `gorm:"size:128;not null"`
	Source          string `gorm:"size:32;not null"`
	ExternalID      string `gorm:"size:255;not null"`
	Payload         string `gorm:"type:text;not null"`
	SourceCreatedAt *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}
