package tiendanube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/signature"

	"github.com/rs/zerolog"
)

// HeaderSignature carries the hex HMAC-SHA256 of the raw body
const HeaderSignature = "X-Linkedstore-Hmac-Sha256"

// WebhookAdapter verifies and parses Tiendanube notifications
type WebhookAdapter struct {
	now func() time.Time
}

// NewWebhookAdapter creates the Tiendanube webhook adapter
func NewWebhookAdapter() *WebhookAdapter {
	return &WebhookAdapter{now: time.Now}
}

func (a *WebhookAdapter) Provider() domain.ConnectorType { return domain.ConnectorTiendanube }

func (a *WebhookAdapter) Verify(body []byte, headers http.Header, secret string, _ time.Time) error {
	return signature.VerifyHex(body, headers.Get(HeaderSignature), "", secret)
}

// Parse reads the notification. Deliveries carry no id and successive updates
// of one record have identical bodies, so every delivery gets its own event
// id; handlers re-fetch the record, which keeps repeats idempotent.
func (a *WebhookAdapter) Parse(body []byte, _ http.Header) (*domain.InboundWebhook, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if n.Event == "" || n.StoreID == 0 {
		return nil, fmt.Errorf("%w: event and store_id are required", domain.ErrInvalidPayload)
	}
	at := a.now().UTC()
	return &domain.InboundWebhook{
		Provider:   domain.ConnectorTiendanube,
		EventID:    fmt.Sprintf("%s:%d:%d", n.Event, n.ID, at.UnixNano()),
		EventType:  n.Event,
		AccountRef: strconv.FormatInt(int64(n.StoreID), 10),
		OccurredAt: &at,
		Payload:    body,
	}, nil
}

// ResourceHandler re-fetches the order, product or customer a notification
// references. */deleted events, and records gone by the time of the re-fetch,
// become deletes.
type ResourceHandler struct {
	clients *ClientFactory
	logger  zerolog.Logger
}

// NewResourceHandler creates the Tiendanube resource handler
func NewResourceHandler(clients *ClientFactory, logger zerolog.Logger) *ResourceHandler {
	return &ResourceHandler{clients: clients, logger: logger}
}

func (h *ResourceHandler) CanHandle(eventType string) bool {
	return strings.HasPrefix(eventType, "order/") ||
		strings.HasPrefix(eventType, "product/") ||
		strings.HasPrefix(eventType, "customer/")
}

func (h *ResourceHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	creds, ok := conn.Credentials.(domain.TiendanubeCredentials)
	if !ok {
		return nil, fmt.Errorf("%w: expected tiendanube credentials", domain.ErrInvalidCredentials)
	}
	var n Notification
	if err := json.Unmarshal(event.Payload, &n); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	if n.ID == 0 {
		return nil, fmt.Errorf("notification %s has no id", event.EventType)
	}

	resource, action, _ := strings.Cut(event.EventType, "/")
	var kind domain.EntityKind
	switch resource {
	case "order":
		kind = domain.KindEcommerceOrder
	case "product":
		kind = domain.KindEcommerceProduct
	case "customer":
		kind = domain.KindEcommerceCustomer
	default:
		return nil, nil
	}

	remove := []domain.WebhookAction{domain.DeleteAction(kind, domain.Identity{
		WorkspaceID: conn.WorkspaceID,
		Source:      domain.ConnectorTiendanube,
		ExternalID:  externalID(n.ID),
	})}
	if action == "deleted" {
		return remove, nil
	}

	client, err := h.clients.NewClient(creds)
	if err != nil {
		return nil, err
	}

	var entity domain.NormalizedEntity
	switch kind {
	case domain.KindEcommerceOrder:
		var o *Order
		if o, err = client.GetOrder(ctx, n.ID); err == nil {
			entity = TransformOrder(*o, conn.WorkspaceID)
		}
	case domain.KindEcommerceProduct:
		var p *Product
		if p, err = client.GetProduct(ctx, n.ID); err == nil {
			entity = TransformProduct(*p, conn.WorkspaceID)
		}
	case domain.KindEcommerceCustomer:
		var c *Customer
		if c, err = client.GetCustomer(ctx, n.ID); err == nil {
			entity = TransformCustomer(*c, conn.WorkspaceID)
		}
	}
	if errors.Is(err, ErrNotFound) {
		h.logger.Info().Str("eventType", event.EventType).Int64("id", n.ID).Msg("Referenced record no longer exists, deleting")
		return remove, nil
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("eventType", event.EventType).
		Str("storeId", event.AccountRef).
		Int64("id", n.ID).
		Msg("Processing Tiendanube webhook event")
	return []domain.WebhookAction{domain.UpsertAction(entity)}, nil
}
