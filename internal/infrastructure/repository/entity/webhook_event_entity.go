package entity

import (
	"time"

	"aibos-connector-sync/internal/domain"
)

// MongoWebhookEventDoc represents a webhook processing record in MongoDB,
// unique on (provider, eventId)
type MongoWebhookEventDoc struct {
	ID          string     `bson:"_id"`
	Provider    string     `bson:"provider"`
	EventID     string     `bson:"eventId"`
	EventType   string     `bson:"eventType"`
	ConnectorID string     `bson:"connectorId,omitempty"`
	WorkspaceID string     `bson:"workspaceId,omitempty"`
	Status      string     `bson:"status"`
	ReceivedAt  time.Time  `bson:"receivedAt"`
	ProcessedAt *time.Time `bson:"processedAt,omitempty"`
	Attempts    int        `bson:"attempts"`
	LastError   string     `bson:"lastError,omitempty"`
}

// ToDomain converts the MongoDB document to a domain webhook event
func (d *MongoWebhookEventDoc) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:          d.ID,
		Provider:    domain.ConnectorType(d.Provider),
		EventID:     d.EventID,
		EventType:   d.EventType,
		ConnectorID: d.ConnectorID,
		WorkspaceID: d.WorkspaceID,
		Status:      domain.WebhookStatus(d.Status),
		ReceivedAt:  d.ReceivedAt,
		ProcessedAt: d.ProcessedAt,
		Attempts:    d.Attempts,
		LastError:   d.LastError,
	}
}

// MongoWebhookEventDocFromDomain converts a domain webhook event to a MongoDB document
func MongoWebhookEventDocFromDomain(e *domain.WebhookEvent) *MongoWebhookEventDoc {
	return &MongoWebhookEventDoc{
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
