// Package events carries pipeline events out of the process (Kafka) and sync
// requests into it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes pipeline events to one topic, keyed by workspace so
// a workspace's events stay ordered within a partition
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.PipelineEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.Debug().
		Str("type", string(event.Type)).
		Str("workspaceId", event.WorkspaceID).
		Msg("Published pipeline event")
	return nil
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildMessage(event domain.PipelineEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.WorkspaceID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}

// FanOut publishes every event to each of its publishers. Publishers run in
// order and all are attempted even when one fails.
type FanOut []ports.EventPublisher

var _ ports.EventPublisher = FanOut(nil)

func (f FanOut) Publish(ctx context.Context, event domain.PipelineEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
