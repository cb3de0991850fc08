package repository

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/repository/entity"
	"aibos-connector-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConnectorRepository implements ports.ConnectorRepository using MongoDB.
// Credentials are sealed on write and opened on read.
type MongoConnectorRepository struct {
	collection *mongo.Collection
	sealer     ports.CredentialSealer
}

// NewMongoConnectorRepository creates a new MongoDB connector repository
func NewMongoConnectorRepository(db *mongo.Database, sealer ports.CredentialSealer) *MongoConnectorRepository {
	return &MongoConnectorRepository{
		collection: db.Collection(ConnectorsCollection),
		sealer:     sealer,
	}
}

// Create inserts a new connector
func (r *MongoConnectorRepository) Create(ctx context.Context, connector *domain.Connector) error {
	doc, err := r.toDoc(connector)
	if err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create connector: %w", mapWriteError(err, "connector "+connector.ID))
	}
	return nil
}

// Update replaces a stored connector
func (r *MongoConnectorRepository) Update(ctx context.Context, connector *domain.Connector) error {
	doc, err := r.toDoc(connector)
	if err != nil {
		return err
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": connector.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to update connector: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("connector %s: %w", connector.ID, domain.ErrNotFound)
	}
	return nil
}

// RecordSyncState sets the sync fields in place. Status is written by a
// second filtered update so a concurrent disconnect wins.
func (r *MongoConnectorRepository) RecordSyncState(ctx context.Context, id string, state domain.SyncState) error {
	set := bson.M{
		"lastSyncStatus": state.LastSyncStatus,
		"lastSyncError":  state.LastSyncError,
		"updatedAt":      state.UpdatedAt,
	}
	if state.LastSyncAt != nil {
		set["lastSyncAt"] = *state.LastSyncAt
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to record sync state: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("connector %s: %w", id, domain.ErrNotFound)
	}

	filter := bson.M{"_id": id, "status": bson.M{"$ne": string(domain.ConnectorStatusDisconnected)}}
	if _, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": string(state.Status)}}); err != nil {
		return fmt.Errorf("failed to record connector status: %w", err)
	}
	return nil
}

// GetByID retrieves a connector by id
func (r *MongoConnectorRepository) GetByID(ctx context.Context, id string) (*domain.Connector, error) {
	var doc entity.MongoConnectorDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}
	return r.toDomain(&doc)
}

// ListByWorkspace retrieves every connector of a workspace, oldest first
func (r *MongoConnectorRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Connector, error) {
	return r.find(ctx, bson.M{"workspaceId": workspaceID})
}

// ListEnabled retrieves every enabled connector across workspaces
func (r *MongoConnectorRepository) ListEnabled(ctx context.Context) ([]*domain.Connector, error) {
	return r.find(ctx, bson.M{"isEnabled": true})
}

// FindByAccountRef retrieves the connectors of a provider account
func (r *MongoConnectorRepository) FindByAccountRef(ctx context.Context, connectorType domain.ConnectorType, accountRef string) ([]*domain.Connector, error) {
	return r.find(ctx, bson.M{"type": string(connectorType), "accountRef": accountRef})
}

func (r *MongoConnectorRepository) find(ctx context.Context, filter bson.M) ([]*domain.Connector, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}
	defer cursor.Close(ctx)

	var connectors []*domain.Connector
	for cursor.Next(ctx) {
		var doc entity.MongoConnectorDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode connector: %w", err)
		}
		conn, err := r.toDomain(&doc)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, conn)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return connectors, nil
}

func (r *MongoConnectorRepository) toDoc(connector *domain.Connector) (*entity.MongoConnectorDoc, error) {
	sealed, err := r.sealer.Seal(connector.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials for connector %s: %w", connector.ID, err)
	}
	return entity.MongoConnectorDocFromDomain(connector, sealed), nil
}

func (r *MongoConnectorRepository) toDomain(doc *entity.MongoConnectorDoc) (*domain.Connector, error) {
	creds, err := r.sealer.Open(domain.ConnectorType(doc.Type), doc.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials for connector %s: %w", doc.ID, err)
	}
	return doc.ToDomain(creds), nil
}
