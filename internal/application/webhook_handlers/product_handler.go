package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/shopify"

	"github.com/rs/zerolog"
)

// ProductHandler handles Shopify product webhook events
type ProductHandler struct {
	logger zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == "products/create" ||
		topic == "products/update" ||
		topic == "products/delete"
}

// Handle turns a product payload into an upsert, or a delete for products/delete
func (h *ProductHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	if event.EventType == "products/delete" {
		return deleteAction(conn, event, domain.KindEcommerceProduct)
	}

	var product shopify.Product
	if err := json.Unmarshal(event.Payload, &product); err != nil {
		return nil, fmt.Errorf("failed to parse product webhook payload: %w", err)
	}
	if product.ID == 0 {
		return nil, fmt.Errorf("product webhook payload has no id")
	}

	h.logger.Debug().
		Str("topic", event.EventType).
		Str("shop", event.AccountRef).
		Int64("productId", product.ID).
		Int("variants", len(product.Variants)).
		Msg("Processing product webhook event")

	return []domain.WebhookAction{domain.UpsertAction(shopify.TransformProduct(product, conn.WorkspaceID))}, nil
}
