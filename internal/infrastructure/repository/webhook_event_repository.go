package repository

import (
	"context"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/repository/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWebhookEventRepository implements ports.WebhookEventRepository using MongoDB
type MongoWebhookEventRepository struct {
	collection *mongo.Collection
}

// NewMongoWebhookEventRepository creates a new MongoDB webhook event repository
func NewMongoWebhookEventRepository(db *mongo.Database) *MongoWebhookEventRepository {
	return &MongoWebhookEventRepository{collection: db.Collection(WebhookEventsCollection)}
}

// Get retrieves the record of a provider event
func (r *MongoWebhookEventRepository) Get(ctx context.Context, provider domain.ConnectorType, eventID string) (*domain.WebhookEvent, error) {
	var doc entity.MongoWebhookEventDoc
	err := r.collection.FindOne(ctx, bson.M{"provider": string(provider), "eventId": eventID}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return doc.ToDomain(), nil
}

// RecordAttempt creates the record on first delivery and increments attempts
// atomically, so concurrent redeliveries each count once.
func (r *MongoWebhookEventRepository) RecordAttempt(ctx context.Context, provider domain.ConnectorType, eventID, eventType string, receivedAt time.Time) (*domain.WebhookEvent, error) {
	filter := bson.M{"provider": string(provider), "eventId": eventID}
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"status": string(domain.WebhookStatusProcessing)},
		"$setOnInsert": bson.M{
			"_id":        uuid.NewString(),
			"eventType":  eventType,
			"receivedAt": receivedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc entity.MongoWebhookEventDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// lost the insert race; the record exists now
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook attempt: %w", err)
	}
	return doc.ToDomain(), nil
}

// Update replaces a webhook event record
func (r *MongoWebhookEventRepository) Update(ctx context.Context, event *domain.WebhookEvent) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": event.ID}, entity.MongoWebhookEventDocFromDomain(event))
	if err != nil {
		return fmt.Errorf("failed to update webhook event: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("webhook event %s: %w", event.ID, domain.ErrNotFound)
	}
	return nil
}
