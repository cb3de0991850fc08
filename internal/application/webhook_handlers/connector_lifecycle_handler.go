package webhook_handlers

import (
	"context"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Uninstall and deauthorization events across providers
const (
	TopicAppUninstalled      = "app/uninstalled"
	TopicStripeDeauthorized  = "account.application.deauthorized"
	TopicTiendanubeSuspended = "app/suspended"
)

// ConnectorLifecycleHandler marks a connector disconnected when the provider
// revokes the app. Stored entities are kept.
type ConnectorLifecycleHandler struct {
	connectors ports.ConnectorRepository
	publisher  ports.EventPublisher
	logger     zerolog.Logger
}

// NewConnectorLifecycleHandler creates a new lifecycle webhook handler
func NewConnectorLifecycleHandler(connectors ports.ConnectorRepository, publisher ports.EventPublisher, logger zerolog.Logger) *ConnectorLifecycleHandler {
	return &ConnectorLifecycleHandler{
		connectors: connectors,
		publisher:  publisher,
		logger:     logger,
	}
}

// CanHandle returns true if this handler can process the given event type
func (h *ConnectorLifecycleHandler) CanHandle(eventType string) bool {
	return eventType == TopicAppUninstalled ||
		eventType == TopicStripeDeauthorized ||
		eventType == TopicTiendanubeSuspended
}

// Handle disconnects the connector. It produces no store mutations.
func (h *ConnectorLifecycleHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	if conn.Status == domain.ConnectorStatusDisconnected {
		return nil, nil
	}

	conn.Status = domain.ConnectorStatusDisconnected
	conn.LastSyncError = "provider revoked access: " + event.EventType
	conn.UpdatedAt = time.Now().UTC()
	if err := h.connectors.Update(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to disconnect connector: %w", err)
	}

	h.logger.Info().
		Str("eventType", event.EventType).
		Str("connectorId", conn.ID).
		Str("workspaceId", conn.WorkspaceID).
		Str("provider", string(conn.Type)).
		Msg("Connector disconnected by provider")

	if h.publisher != nil {
		statusEvent := domain.PipelineEvent{
			Type:        domain.EventConnectorStatus,
			WorkspaceID: conn.WorkspaceID,
			ConnectorID: conn.ID,
			Provider:    conn.Type,
			Data:        map[string]any{"status": conn.Status, "reason": event.EventType},
			OccurredAt:  conn.UpdatedAt,
		}
		if err := h.publisher.Publish(ctx, statusEvent); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to publish connector status")
		}
	}
	return nil, nil
}
