package repository

import (
	"context"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEntityStore implements ports.EntityStore with one collection per entity kind
type MongoEntityStore struct {
	db *mongo.Database
}

// NewMongoEntityStore creates a new MongoDB normalized entity store
func NewMongoEntityStore(db *mongo.Database) *MongoEntityStore {
	return &MongoEntityStore{db: db}
}

func (s *MongoEntityStore) collection(kind domain.EntityKind) *mongo.Collection {
	return s.db.Collection(string(kind))
}

// UpsertEntity writes an entity keyed by its identity in one FindOneAndUpdate.
// The stored document is replaced as a whole so a field cleared upstream is
// cleared here too. Only _id and createdAt survive from the previous version;
// the returned _id tells an insert (newID) from an update.
func (s *MongoEntityStore) UpsertEntity(ctx context.Context, e domain.NormalizedEntity, newID string, now time.Time) (string, bool, error) {
	base := e.Base()
	identity := base.Identity()

	fields, err := entityFields(e)
	if err != nil {
		return "", false, err
	}

	// $literal keeps "$" prefixed payload strings from being read as field paths
	update := mongo.Pipeline{{{Key: "$replaceWith", Value: bson.M{
		"$mergeObjects": bson.A{
			bson.M{"$literal": fields},
			bson.M{
				"_id":       bson.M{"$ifNull": bson.A{"$_id", newID}},
				"createdAt": bson.M{"$ifNull": bson.A{"$createdAt", now}},
				"updatedAt": now,
			},
		},
	}}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.M{"_id": 1, "createdAt": 1})

	var stored struct {
		ID        string    `bson:"_id"`
		CreatedAt time.Time `bson:"createdAt"`
	}
	err = s.collection(e.Kind()).FindOneAndUpdate(ctx, identityFilter(identity), update, opts).Decode(&stored)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert entity: %w", mapWriteError(err, identity.String()))
	}

	base.ID = stored.ID
	base.CreatedAt = stored.CreatedAt
	base.UpdatedAt = now
	return stored.ID, stored.ID != newID, nil
}

// DeleteEntity removes the entity with the given identity
func (s *MongoEntityStore) DeleteEntity(ctx context.Context, kind domain.EntityKind, identity domain.Identity) (bool, error) {
	result, err := s.collection(kind).DeleteOne(ctx, identityFilter(identity))
	if err != nil {
		return false, fmt.Errorf("failed to delete entity: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// CountEntities counts a workspace's entities of one kind
func (s *MongoEntityStore) CountEntities(ctx context.Context, kind domain.EntityKind, workspaceID string) (int64, error) {
	n, err := s.collection(kind).CountDocuments(ctx, bson.M{"workspaceId": workspaceID})
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return n, nil
}

// entityFields renders an entity to the $set document, without the
// insert-only attributes
func entityFields(e domain.NormalizedEntity) (bson.M, error) {
	raw, err := bson.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.Kind(), err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.Kind(), err)
	}
	delete(fields, "_id")
	delete(fields, "createdAt")
	return fields, nil
}
