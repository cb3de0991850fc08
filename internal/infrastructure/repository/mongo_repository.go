// Package repository is the MongoDB storage backend, selected by mongodb://
// and mongodb+srv:// store URIs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names outside the normalized entity families
const (
	ConnectorsCollection    = "connectors"
	SyncLogsCollection      = "sync_logs"
	WebhookEventsCollection = "webhook_events"
)

// MongoStore implements ports.Store using MongoDB
type MongoStore struct {
	client     *mongo.Client
	db         *mongo.Database
	connectors *MongoConnectorRepository
	syncLogs   *MongoSyncLogRepository
	webhooks   *MongoWebhookEventRepository
	entities   *MongoEntityStore
	logger     zerolog.Logger
}

var _ ports.Store = (*MongoStore)(nil)

// Connect opens a client for uri, pings it and returns a store over database
func Connect(ctx context.Context, uri, database string, sealer ports.CredentialSealer, logger zerolog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info().Str("database", database).Msg("Connected to MongoDB")
	return NewMongoStore(client, client.Database(database), sealer, logger), nil
}

// NewMongoStore creates a store over an existing database handle
func NewMongoStore(client *mongo.Client, db *mongo.Database, sealer ports.CredentialSealer, logger zerolog.Logger) *MongoStore {
	return &MongoStore{
		client:     client,
		db:         db,
		connectors: NewMongoConnectorRepository(db, sealer),
		syncLogs:   NewMongoSyncLogRepository(db),
		webhooks:   NewMongoWebhookEventRepository(db),
		entities:   NewMongoEntityStore(db),
		logger:     logger,
	}
}

func (s *MongoStore) Connectors() ports.ConnectorRepository       { return s.connectors }
func (s *MongoStore) SyncLogs() ports.SyncLogRepository           { return s.syncLogs }
func (s *MongoStore) WebhookEvents() ports.WebhookEventRepository { return s.webhooks }
func (s *MongoStore) Entities() ports.EntityStore                 { return s.entities }

// EnsureSchema creates the indexes every repository relies on. The unique
// identity index on each entity collection is what makes upserts race-safe.
func (s *MongoStore) EnsureSchema(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ConnectorsCollection: {
			{Keys: bson.D{{Key: "workspaceId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "accountRef", Value: 1}}},
			{Keys: bson.D{{Key: "isEnabled", Value: 1}}},
		},
		SyncLogsCollection: {
			{Keys: bson.D{{Key: "connectorId", Value: 1}, {Key: "startedAt", Value: -1}}},
		},
		WebhookEventsCollection: {
			{
				Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "eventId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for _, kind := range domain.EntityKinds {
		indexes[string(kind)] = []mongo.IndexModel{
			{
				Keys:    identityKeys(),
				Options: options.Index().SetUnique(true).SetName("identity_unique"),
			},
			{Keys: bson.D{{Key: "workspaceId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		}
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}

	s.logger.Info().Int("collections", len(indexes)).Msg("MongoDB indexes ensured")
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

func identityKeys() bson.D {
	return bson.D{
		{Key: "workspaceId", Value: 1},
		{Key: "source", Value: 1},
		{Key: "externalId", Value: 1},
	}
}

func identityFilter(identity domain.Identity) bson.M {
	return bson.M{
		"workspaceId": identity.WorkspaceID,
		"source":      string(identity.Source),
		"externalId":  identity.ExternalID,
	}
}

func mapWriteError(err error, what string) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrDuplicateKey)
	}
	return err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
