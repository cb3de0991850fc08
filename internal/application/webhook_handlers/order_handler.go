package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/shopify"

	"github.com/rs/zerolog"
)

// OrderHandler handles Shopify order webhook events
type OrderHandler struct {
	logger zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == "orders/create" ||
		topic == "orders/updated" ||
		topic == "orders/cancelled" ||
		topic == "orders/paid" ||
		topic == "orders/fulfilled" ||
		topic == "orders/partially_fulfilled" ||
		topic == "orders/edited" ||
		topic == "orders/delete"
}

// Handle turns an order payload into an upsert, or a delete for orders/delete
func (h *OrderHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	if event.EventType == "orders/delete" {
		return deleteAction(conn, event, domain.KindEcommerceOrder)
	}

	var order shopify.Order
	if err := json.Unmarshal(event.Payload, &order); err != nil {
		return nil, fmt.Errorf("failed to parse order webhook payload: %w", err)
	}
	if order.ID == 0 {
		return nil, fmt.Errorf("order webhook payload has no id")
	}

	h.logger.Info().
		Str("topic", event.EventType).
		Str("shop", event.AccountRef).
		Int64("orderId", order.ID).
		Str("totalPrice", order.TotalPrice).
		Str("financialStatus", order.FinancialStatus).
		Str("fulfillmentStatus", order.FulfillmentStatus).
		Msg("Processing order webhook event")

	return []domain.WebhookAction{domain.UpsertAction(shopify.TransformOrder(order, conn.WorkspaceID))}, nil
}
