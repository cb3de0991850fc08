package shopify

import (
	"fmt"
	"net/http"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/signature"
)

// Shopify webhook headers
const (
	HeaderHmac        = "X-Shopify-Hmac-Sha256"
	HeaderTopic       = "X-Shopify-Topic"
	HeaderShopDomain  = "X-Shopify-Shop-Domain"
	HeaderWebhookID   = "X-Shopify-Webhook-Id"
	HeaderEventID     = "X-Shopify-Event-Id"
	HeaderTriggeredAt = "X-Shopify-Triggered-At"
)

// WebhookAdapter verifies and parses Shopify webhook deliveries
type WebhookAdapter struct {
	tolerance time.Duration
}

// NewWebhookAdapter creates the adapter. tolerance bounds X-Shopify-Triggered-At.
func NewWebhookAdapter(tolerance time.Duration) *WebhookAdapter {
	return &WebhookAdapter{tolerance: tolerance}
}

func (a *WebhookAdapter) Provider() domain.ConnectorType { return domain.ConnectorShopify }

// Verify checks the base64 HMAC of the raw body
func (a *WebhookAdapter) Verify(body []byte, headers http.Header, secret string, now time.Time) error {
	if err := signature.VerifyBase64(body, headers.Get(HeaderHmac), secret); err != nil {
		return err
	}
	if raw := headers.Get(HeaderTriggeredAt); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("%w: malformed %s", domain.ErrInvalidSignature, HeaderTriggeredAt)
		}
		return signature.CheckTimestamp(at, now, a.tolerance)
	}
	return nil
}

// Parse reads the envelope from the Shopify headers; the body is the resource itself
func (a *WebhookAdapter) Parse(body []byte, headers http.Header) (*domain.InboundWebhook, error) {
	topic := headers.Get(HeaderTopic)
	eventID := headers.Get(HeaderWebhookID)
	if eventID == "" {
		eventID = headers.Get(HeaderEventID)
	}
	if topic == "" || eventID == "" {
		return nil, fmt.Errorf("%w: missing %s or %s", domain.ErrInvalidPayload, HeaderTopic, HeaderWebhookID)
	}

	inbound := &domain.InboundWebhook{
		Provider:   domain.ConnectorShopify,
		EventID:    eventID,
		EventType:  topic,
		AccountRef: domain.NormalizeShopDomain(headers.Get(HeaderShopDomain)),
		Payload:    body,
	}
	if at, err := time.Parse(time.RFC3339Nano, headers.Get(HeaderTriggeredAt)); err == nil {
		inbound.OccurredAt = &at
	}
	return inbound, nil
}
