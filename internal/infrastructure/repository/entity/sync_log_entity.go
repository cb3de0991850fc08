package entity

import (
	"time"

	"aibos-connector-sync/internal/domain"
)

// MongoSyncLogDoc represents a sync run audit record in MongoDB
type MongoSyncLogDoc struct {
	ID               string             `bson:"_id"`
	ConnectorID      string             `bson:"connectorId"`
	WorkspaceID      string             `bson:"workspaceId"`
	Provider         string             `bson:"provider"`
	Status           string             `bson:"status"`
	SyncType         string             `bson:"syncType"`
	StartedAt        time.Time          `bson:"startedAt"`
	CompletedAt      *time.Time         `bson:"completedAt,omitempty"`
	RecordsProcessed map[string]int     `bson:"recordsProcessed,omitempty"`
	Errors           []domain.SyncError `bson:"errors,omitempty"`
}

// ToDomain converts the MongoDB document to a domain sync log
func (d *MongoSyncLogDoc) ToDomain() *domain.SyncLog {
	return &domain.SyncLog{
		ID:               d.ID,
		ConnectorID:      d.ConnectorID,
		WorkspaceID:      d.WorkspaceID,
		Provider:         domain.ConnectorType(d.Provider),
		Status:           domain.SyncStatus(d.Status),
		SyncType:         domain.SyncType(d.SyncType),
		StartedAt:        d.StartedAt,
		CompletedAt:      d.CompletedAt,
		RecordsProcessed: d.RecordsProcessed,
		Errors:           d.Errors,
	}
}

// MongoSyncLogDocFromDomain converts a domain sync log to a MongoDB document
func MongoSyncLogDocFromDomain(l *domain.SyncLog) *MongoSyncLogDoc {
	return &MongoSyncLogDoc{
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
