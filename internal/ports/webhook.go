package ports

import (
	"context"
	"net/http"
	"time"

	"aibos-connector-sync/internal/domain"
)

// WebhookProvider verifies and parses one provider's webhook deliveries
type WebhookProvider interface {
	Provider() domain.ConnectorType
	// Verify checks the signature over the raw, unparsed body.
	// It returns domain.ErrInvalidSignature (wrapped) on mismatch.
	Verify(body []byte, headers http.Header, secret string, now time.Time) error
	Parse(body []byte, headers http.Header) (*domain.InboundWebhook, error)
}

// WebhookHandler routes one family of event types to store mutations
type WebhookHandler interface {
	CanHandle(eventType string) bool
	Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error)
}
