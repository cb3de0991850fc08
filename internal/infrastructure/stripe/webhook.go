package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/signature"

	"github.com/rs/zerolog"
)

// HeaderSignature carries "t=<unix>,v1=<hex>"
const HeaderSignature = "Stripe-Signature"

// WebhookAdapter verifies and parses Stripe events
type WebhookAdapter struct {
	tolerance time.Duration
}

// NewWebhookAdapter creates the adapter with the timestamp tolerance window
func NewWebhookAdapter(tolerance time.Duration) *WebhookAdapter {
	return &WebhookAdapter{tolerance: tolerance}
}

func (a *WebhookAdapter) Provider() domain.ConnectorType { return domain.ConnectorStripe }

// Verify checks the timestamped signature. The generic X-Webhook-Signature
// header is accepted as a fallback.
func (a *WebhookAdapter) Verify(body []byte, headers http.Header, secret string, now time.Time) error {
	header := headers.Get(HeaderSignature)
	if header == "" {
		header = headers.Get("X-Webhook-Signature")
	}
	return signature.VerifyTimestamped(body, header, secret, now, a.tolerance)
}

// Parse decodes the event envelope. The account ref is set for Connect events.
func (a *WebhookAdapter) Parse(body []byte, headers http.Header) (*domain.InboundWebhook, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: event id and type are required", domain.ErrInvalidPayload)
	}
	return &domain.InboundWebhook{
		Provider:   domain.ConnectorStripe,
		EventID:    event.ID,
		EventType:  event.Type,
		AccountRef: event.Account,
		OccurredAt: unixTime(event.Created),
		Payload:    event.Data.Object,
	}, nil
}

// EventHandler maps billing events onto the SaaS entities
type EventHandler struct {
	logger zerolog.Logger
}

// NewEventHandler creates the Stripe event handler
func NewEventHandler(logger zerolog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

// CanHandle accepts customer, subscription, invoice and price events
func (h *EventHandler) CanHandle(eventType string) bool {
	return strings.HasPrefix(eventType, "customer.") ||
		strings.HasPrefix(eventType, "invoice.") ||
		strings.HasPrefix(eventType, "price.")
}

// Handle turns the event object into store actions. A deleted subscription is
// kept and upserted with its canceled status; deleted customers and prices
// are removed.
func (h *EventHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	ws := conn.WorkspaceID
	t := event.EventType

	switch {
	case strings.HasPrefix(t, "customer.subscription."):
		var sub Subscription
		if err := decodeObject(event, &sub); err != nil {
			return nil, err
		}
		if t == "customer.subscription.deleted" && sub.Status == "" {
			sub.Status = "canceled"
		}
		return upsert(TransformSubscription(sub, ws)), nil

	case t == "customer.created" || t == "customer.updated":
		var c Customer
		if err := decodeObject(event, &c); err != nil {
			return nil, err
		}
		return upsert(TransformCustomer(c, ws)), nil

	case t == "customer.deleted":
		var c Customer
		if err := decodeObject(event, &c); err != nil {
			return nil, err
		}
		return deleteByID(domain.KindSaasCustomer, ws, c.ID), nil

	case strings.HasPrefix(t, "invoice."):
		var inv Invoice
		if err := decodeObject(event, &inv); err != nil {
			return nil, err
		}
		return upsert(TransformInvoice(inv, ws)), nil

	case t == "price.deleted":
		var p Price
		if err := decodeObject(event, &p); err != nil {
			return nil, err
		}
		return deleteByID(domain.KindSaasPlan, ws, p.ID), nil

	case strings.HasPrefix(t, "price."):
		var p Price
		if err := decodeObject(event, &p); err != nil {
			return nil, err
		}
		return upsert(TransformPrice(p, ws)), nil
	}

	// other customer.* events (discounts, sources, tax ids) carry no entity we store
	h.logger.Debug().Str("eventType", t).Msg("Stripe event has no mapped entity")
	return nil, nil
}

func decodeObject(event *domain.InboundWebhook, out any) error {
	if err := json.Unmarshal(event.Payload, out); err != nil {
		return fmt.Errorf("failed to parse %s object: %w", event.EventType, err)
	}
	return nil
}

func upsert(e domain.NormalizedEntity) []domain.WebhookAction {
	if e.Base().ExternalID == "" {
		return nil
	}
	return []domain.WebhookAction{domain.UpsertAction(e)}
}

func deleteByID(kind domain.EntityKind, workspaceID, id string) []domain.WebhookAction {
	if id == "" {
		return nil
	}
	return []domain.WebhookAction{domain.DeleteAction(kind, domain.Identity{
		WorkspaceID: workspaceID,
		Source:      domain.ConnectorStripe,
		ExternalID:  id,
	})}
}
