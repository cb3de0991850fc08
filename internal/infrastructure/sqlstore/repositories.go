package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConnectorRepository implements ports.ConnectorRepository with gorm
type ConnectorRepository struct {
	db     *gorm.DB
	sealer ports.CredentialSealer
}

// Create inserts a new connector
func (r *ConnectorRepository) Create(ctx context.Context, connector *domain.Connector) error {
	rec, err := r.toRecord(connector)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create connector: %w", mapWriteError(err, "connector "+connector.ID))
	}
	return nil
}

// Update rewrites every column of a stored connector
func (r *ConnectorRepository) Update(ctx context.Context, connector *domain.Connector) error {
	rec, err := r.toRecord(connector)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&ConnectorRecord{}).Where("id = ?", connector.ID).Select("*").Updates(rec)
	if result.Error != nil {
		return fmt.Errorf("failed to update connector: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("connector %s: %w", connector.ID, domain.ErrNotFound)
	}
	return nil
}

// RecordSyncState updates the sync columns only. A disconnected row keeps
// its status.
func (r *ConnectorRepository) RecordSyncState(ctx context.Context, id string, state domain.SyncState) error {
	columns := map[string]any{
		"last_sync_status": state.LastSyncStatus,
		"last_sync_error":  state.LastSyncError,
		"updated_at":       state.UpdatedAt,
		"status": gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END",
			string(domain.ConnectorStatusDisconnected), string(state.Status)),
	}
	if state.LastSyncAt != nil {
		columns["last_sync_at"] = *state.LastSyncAt
	}

	result := r.db.WithContext(ctx).Model(&ConnectorRecord{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("failed to record sync state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("connector %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a connector by id
func (r *ConnectorRepository) GetByID(ctx context.Context, id string) (*domain.Connector, error) {
	var rec ConnectorRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}
	return r.toDomain(&rec)
}

// ListByWorkspace retrieves every connector of a workspace, oldest first
func (r *ConnectorRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Connector, error) {
	return r.find(ctx, "workspace_id = ?", workspaceID)
}

// ListEnabled retrieves every enabled connector across workspaces
func (r *ConnectorRepository) ListEnabled(ctx context.Context) ([]*domain.Connector, error) {
	return r.find(ctx, "is_enabled = ?", true)
}

// FindByAccountRef retrieves the connectors of a provider account
func (r *ConnectorRepository) FindByAccountRef(ctx context.Context, connectorType domain.ConnectorType, accountRef string) ([]*domain.Connector, error) {
	return r.find(ctx, "type = ? AND account_ref = ?", string(connectorType), accountRef)
}

func (r *ConnectorRepository) find(ctx context.Context, query string, args ...any) ([]*domain.Connector, error) {
	var recs []ConnectorRecord
	if err := r.db.WithContext(ctx).Where(query, args...).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}

	connectors := make([]*domain.Connector, 0, len(recs))
	for i := range recs {
		conn, err := r.toDomain(&recs[i])
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, conn)
	}
	return connectors, nil
}

func (r *ConnectorRepository) toRecord(connector *domain.Connector) (*ConnectorRecord, error) {
	sealed, err := r.sealer.Seal(connector.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials for connector %s: %w", connector.ID, err)
	}
	return connectorRecordFromDomain(connector, sealed), nil
}

func (r *ConnectorRepository) toDomain(rec *ConnectorRecord) (*domain.Connector, error) {
	creds, err := r.sealer.Open(domain.ConnectorType(rec.Type), rec.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials for connector %s: %w", rec.ID, err)
	}
	return rec.toDomain(creds), nil
}

// SyncLogRepository implements ports.SyncLogRepository with gorm
type SyncLogRepository struct {
	db *gorm.DB
}

// Create inserts a sync log
func (r *SyncLogRepository) Create(ctx context.Context, log *domain.SyncLog) error {
	if err := r.db.WithContext(ctx).Create(syncLogRecordFromDomain(log)).Error; err != nil {
		return fmt.Errorf("failed to create sync log: %w", mapWriteError(err, "sync log "+log.ID))
	}
	return nil
}

// Update rewrites a sync log
func (r *SyncLogRepository) Update(ctx context.Context, log *domain.SyncLog) error {
	result := r.db.WithContext(ctx).Model(&SyncLogRecord{}).Where("id = ?", log.ID).Select("*").Updates(syncLogRecordFromDomain(log))
	if result.Error != nil {
		return fmt.Errorf("failed to update sync log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sync log %s: %w", log.ID, domain.ErrNotFound)
	}
	return nil
}

// ListByConnector retrieves the newest sync logs of a connector
func (r *SyncLogRepository) ListByConnector(ctx context.Context, connectorID string, limit int) ([]*domain.SyncLog, error) {
	q := r.db.WithContext(ctx).Where("connector_id = ?", connectorID).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []SyncLogRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}

	logs := make([]*domain.SyncLog, 0, len(recs))
	for i := range recs {
		logs = append(logs, recs[i].toDomain())
	}
	return logs, nil
}

// WebhookEventRepository implements ports.WebhookEventRepository with gorm
type WebhookEventRepository struct {
	db *gorm.DB
}

// Get retrieves the record of a provider event
func (r *WebhookEventRepository) Get(ctx context.Context, provider domain.ConnectorType, eventID string) (*domain.WebhookEvent, error) {
	var rec WebhookEventRecord
	err := r.db.WithContext(ctx).First(&rec, "provider = ? AND event_id = ?", string(provider), eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return rec.toDomain(), nil
}

// RecordAttempt inserts the record or increments attempts in one statement
func (r *WebhookEventRepository) RecordAttempt(ctx context.Context, provider domain.ConnectorType, eventID, eventType string, receivedAt time.Time) (*domain.WebhookEvent, error) {
	rec := &WebhookEventRecord{
		ID:         uuid.NewString(),
		Provider:   string(provider),
		EventID:    eventID,
		EventType:  eventType,
		Status:     string(domain.WebhookStatusProcessing),
		ReceivedAt: receivedAt,
		Attempts:   1,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"attempts": gorm.Expr("webhook_events.attempts + 1"),
				"status":   string(domain.WebhookStatusProcessing),
			}),
		}).Create(rec).Error
		if err != nil {
			return err
		}
		return tx.First(rec, "provider = ? AND event_id = ?", string(provider), eventID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook attempt: %w", err)
	}
	return rec.toDomain(), nil
}

// Update rewrites a webhook event record
func (r *WebhookEventRepository) Update(ctx context.Context, event *domain.WebhookEvent) error {
	result := r.db.WithContext(ctx).Model(&WebhookEventRecord{}).Where("id = ?", event.ID).Select("*").Updates(webhookEventRecordFromDomain(event))
	if result.Error != nil {
		return fmt.Errorf("failed to update webhook event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event %s: %w", event.ID, domain.ErrNotFound)
	}
	return nil
}
