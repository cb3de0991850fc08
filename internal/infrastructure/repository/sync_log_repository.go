package repository

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSyncLogRepository implements ports.SyncLogRepository using MongoDB
type MongoSyncLogRepository struct {
	collection *mongo.Collection
}

// NewMongoSyncLogRepository creates a new MongoDB sync log repository
func NewMongoSyncLogRepository(db *mongo.Database) *MongoSyncLogRepository {
	return &MongoSyncLogRepository{collection: db.Collection(SyncLogsCollection)}
}

// Create inserts a sync log
func (r *MongoSyncLogRepository) Create(ctx context.Context, log *domain.SyncLog) error {
	if _, err := r.collection.InsertOne(ctx, entity.MongoSyncLogDocFromDomain(log)); err != nil {
		return fmt.Errorf("failed to create sync log: %w", mapWriteError(err, "sync log "+log.ID))
	}
	return nil
}

// Update replaces a sync log
func (r *MongoSyncLogRepository) Update(ctx context.Context, log *domain.SyncLog) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": log.ID}, entity.MongoSyncLogDocFromDomain(log))
	if err != nil {
		return fmt.Errorf("failed to update sync log: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("sync log %s: %w", log.ID, domain.ErrNotFound)
	}
	return nil
}

// ListByConnector retrieves the newest sync logs of a connector
func (r *MongoSyncLogRepository) ListByConnector(ctx context.Context, connectorID string, limit int) ([]*domain.SyncLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"connectorId": connectorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []*domain.SyncLog
	for cursor.Next(ctx) {
		var doc entity.MongoSyncLogDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode sync log: %w", err)
		}
		logs = append(logs, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return logs, nil
}
