package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// SyncRequestHandler runs the sync a request asks for
type SyncRequestHandler func(ctx context.Context, req domain.SyncRequest) error

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SyncRequestConsumer reads sync requests from a topic and hands them to a
// handler, committing each message once handled
type SyncRequestConsumer struct {
	reader  messageReader
	handler SyncRequestHandler
	logger  zerolog.Logger
}

// NewSyncRequestConsumer creates a consumer group reader for topic
func NewSyncRequestConsumer(brokers []string, topic, groupID string, handler SyncRequestHandler, logger zerolog.Logger) *SyncRequestConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       1e6,
		CommitInterval: 0,
	})
	return &SyncRequestConsumer{reader: reader, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled
func (c *SyncRequestConsumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("Sync request consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("Sync request consumer stopped")
				return nil
			}
			c.logger.Error().Err(err).Msg("Failed to read sync request")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit sync request")
		}
	}
}

// handle runs one request. Undecodable and failed requests are logged and
// committed; sync failures are already recorded in the sync logs.
func (c *SyncRequestConsumer) handle(ctx context.Context, msg kafka.Message) {
	req, err := decodeSyncRequest(msg.Value)
	if err != nil {
		c.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Dropping malformed sync request")
		return
	}

	logger := c.logger.With().Str("workspaceId", req.WorkspaceID).Str("connectorId", req.ConnectorID).Logger()
	logger.Info().Msg("Sync requested")

	if err := c.handler(ctx, req); err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			logger.Info().Msg("Sync already in progress, skipping request")
			return
		}
		logger.Error().Err(err).Msg("Requested sync failed")
	}
}

// Close stops the reader
func (c *SyncRequestConsumer) Close() error {
	return c.reader.Close()
}

func decodeSyncRequest(raw []byte) (domain.SyncRequest, error) {
	var req domain.SyncRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid sync request: %w", err)
	}
	if req.ConnectorID != "" && req.WorkspaceID == "" {
		return req, errors.New("invalid sync request: connector_id requires workspace_id")
	}
	return req, nil
}
