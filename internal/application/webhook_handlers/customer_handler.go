package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/shopify"

	"github.com/rs/zerolog"
)

// CustomerHandler handles Shopify customer webhook events
type CustomerHandler struct {
	logger zerolog.Logger
}

// NewCustomerHandler creates a new customer webhook handler
func NewCustomerHandler(logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerHandler) CanHandle(topic string) bool {
	return topic == "customers/create" ||
		topic == "customers/update" ||
		topic == "customers/delete" ||
		topic == "customers/enable" ||
		topic == "customers/disable"
}

// Handle turns a customer payload into an upsert, or a delete for customers/delete
func (h *CustomerHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	if event.EventType == "customers/delete" {
		return deleteAction(conn, event, domain.KindEcommerceCustomer)
	}

	var customer shopify.Customer
	if err := json.Unmarshal(event.Payload, &customer); err != nil {
		return nil, fmt.Errorf("failed to parse customer webhook payload: %w", err)
	}
	if customer.ID == 0 {
		return nil, fmt.Errorf("customer webhook payload has no id")
	}

	h.logger.Debug().
		Str("topic", event.EventType).
		Str("shop", event.AccountRef).
		Int64("customerId", customer.ID).
		Msg("Processing customer webhook event")

	return []domain.WebhookAction{domain.UpsertAction(shopify.TransformCustomer(customer, conn.WorkspaceID))}, nil
}

// deleteAction builds a delete from a */delete payload, which carries only the id
func deleteAction(conn *domain.Connector, event *domain.InboundWebhook, kind domain.EntityKind) ([]domain.WebhookAction, error) {
	var deleted shopify.DeletedResource
	if err := json.Unmarshal(event.Payload, &deleted); err != nil {
		return nil, fmt.Errorf("failed to parse %s payload: %w", event.EventType, err)
	}
	if deleted.ID == 0 {
		return nil, fmt.Errorf("%s payload has no id", event.EventType)
	}
	identity := domain.Identity{
		WorkspaceID: conn.WorkspaceID,
		Source:      domain.ConnectorShopify,
		ExternalID:  fmt.Sprintf("%d", deleted.ID),
	}
	return []domain.WebhookAction{domain.DeleteAction(kind, identity)}, nil
}
