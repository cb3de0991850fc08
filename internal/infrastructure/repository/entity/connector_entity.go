package entity

import (
	"time"

	"aibos-connector-sync/internal/domain"
)

// MongoConnectorDoc represents a connector in MongoDB. Credentials hold the
// sealed (encrypted) credential blob, never plaintext.
type MongoConnectorDoc struct {
	ID             string            `bson:"_id"`
	WorkspaceID    string            `bson:"workspaceId"`
	Type           string            `bson:"type"`
	Credentials    string            `bson:"credentials"`
	Settings       map[string]string `bson:"settings,omitempty"`
	Status         string            `bson:"status"`
	IsEnabled      bool              `bson:"isEnabled"`
	AccountRef     string            `bson:"accountRef,omitempty"`
	LastSyncAt     *time.Time        `bson:"lastSyncAt,omitempty"`
	LastSyncStatus string            `bson:"lastSyncStatus,omitempty"`
	LastSyncError  string            `bson:"lastSyncError,omitempty"`
	CreatedAt      time.Time         `bson:"createdAt"`
	UpdatedAt      time.Time         `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain connector carrying the opened credentials
func (d *MongoConnectorDoc) ToDomain(creds domain.Credentials) *domain.Connector {
	return &domain.Connector{
		ID:             d.ID,
		WorkspaceID:    d.WorkspaceID,
		Type:           domain.ConnectorType(d.Type),
		Credentials:    creds,
		Settings:       d.Settings,
		Status:         domain.ConnectorStatus(d.Status),
		IsEnabled:      d.IsEnabled,
		AccountRef:     d.AccountRef,
		LastSyncAt:     d.LastSyncAt,
		LastSyncStatus: d.LastSyncStatus,
		LastSyncError:  d.LastSyncError,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MongoConnectorDocFromDomain converts a domain connector to a MongoDB document
func MongoConnectorDocFromDomain(c *domain.Connector, sealedCredentials string) *MongoConnectorDoc {
	return &MongoConnectorDoc{
		ID:             c.ID,
		WorkspaceID:    c.WorkspaceID,
		Type:           string(c.Type),
		Credentials:    sealedCredentials,
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
