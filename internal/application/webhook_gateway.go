package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Webhook outcomes reported to metrics
const (
	webhookOutcomeRejected  = "rejected"
	webhookOutcomeMalformed = "malformed"
	webhookOutcomeDuplicate = "duplicate"
	webhookOutcomeIgnored   = "ignored"
	webhookOutcomeProcessed = "processed"
	webhookOutcomeFailed    = "failed"
	webhookOutcomeExhausted = "exhausted"
)

// EntityWriter applies webhook actions to the normalized store
type EntityWriter interface {
	Upsert(ctx context.Context, entity domain.NormalizedEntity) (*domain.UpsertResult, error)
	Delete(ctx context.Context, kind domain.EntityKind, identity domain.Identity) (bool, error)
}

// WebhookResult describes how a delivery was handled
type WebhookResult struct {
	Verified  bool                 `json:"verified"`
	Processed bool                 `json:"processed"`
	Duplicate bool                 `json:"duplicate"`
	Ignored   bool                 `json:"ignored"`
	Status    domain.WebhookStatus `json:"status,omitempty"`
	EventID   string               `json:"event_id,omitempty"`
	EventType string               `json:"event_type,omitempty"`
	Attempts  int                  `json:"attempts,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// WebhookGatewayOptions configures signature secrets and retry bounds
type WebhookGatewayOptions struct {
	Secrets map[domain.ConnectorType]string
	// MaxAttempts is the processing attempt ceiling per event
	MaxAttempts int
}

type webhookRoute struct {
	adapter    ports.WebhookProvider
	dispatcher *WebhookDispatcher
}

// WebhookGateway verifies, records, routes and applies provider webhooks
type WebhookGateway struct {
	routes     map[domain.ConnectorType]webhookRoute
	connectors ports.ConnectorRepository
	events     ports.WebhookEventRepository
	writer     EntityWriter
	publisher  ports.EventPublisher
	metrics    ports.Metrics
	opts       WebhookGatewayOptions
	logger     zerolog.Logger
	now        func() time.Time
}

// NewWebhookGateway creates a new webhook gateway
func NewWebhookGateway(
	connectors ports.ConnectorRepository,
	events ports.WebhookEventRepository,
	writer EntityWriter,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	opts WebhookGatewayOptions,
	logger zerolog.Logger,
) *WebhookGateway {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &WebhookGateway{
		routes:     make(map[domain.ConnectorType]webhookRoute),
		connectors: connectors,
		events:     events,
		writer:     writer,
		publisher:  publisher,
		metrics:    metrics,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterProvider installs a provider adapter with its event handlers
func (g *WebhookGateway) RegisterProvider(adapter ports.WebhookProvider, handlers ...ports.WebhookHandler) {
	dispatcher := NewWebhookDispatcher(g.logger.With().Str("provider", string(adapter.Provider())).Logger())
	for _, h := range handlers {
		dispatcher.RegisterHandler(h)
	}
	g.routes[adapter.Provider()] = webhookRoute{adapter: adapter, dispatcher: dispatcher}
}

// Handle processes one raw delivery. connectorHint, when set, names the
// target connector directly; otherwise the payload's account ref resolves it.
//
// Errors map to HTTP responses: domain.ErrUnknownProvider (404),
// domain.ErrInvalidSignature (401, nothing recorded), domain.ErrInvalidPayload
// (400). Any other error means processing failed and the provider should retry.
func (g *WebhookGateway) Handle(ctx context.Context, provider domain.ConnectorType, body []byte, headers http.Header, connectorHint string) (*WebhookResult, error) {
	route, ok := g.routes[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}

	logger := g.logger.With().Str("provider", string(provider)).Logger()
	result := &WebhookResult{}

	secret := g.opts.Secrets[provider]
	if secret == "" {
		g.metrics.WebhookReceived(provider, webhookOutcomeRejected)
		logger.Warn().Msg("Webhook secret not configured, rejecting delivery")
		return result, fmt.Errorf("%w: no secret configured for %s", domain.ErrInvalidSignature, provider)
	}
	if err := route.adapter.Verify(body, headers, secret, g.now()); err != nil {
		g.metrics.WebhookReceived(provider, webhookOutcomeRejected)
		logger.Warn().Err(err).Msg("Webhook signature verification failed")
		if !errors.Is(err, domain.ErrInvalidSignature) {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return result, err
	}
	result.Verified = true

	inbound, err := route.adapter.Parse(body, headers)
	if err != nil {
		g.metrics.WebhookReceived(provider, webhookOutcomeMalformed)
		logger.Warn().Err(err).Msg("Failed to parse webhook payload")
		if !errors.Is(err, domain.ErrInvalidPayload) {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		return result, err
	}
	result.EventID = inbound.EventID
	result.EventType = inbound.EventType
	logger = logger.With().Str("eventId", inbound.EventID).Str("eventType", inbound.EventType).Logger()

	existing, err := g.events.Get(ctx, provider, inbound.EventID)
	if err != nil {
		return result, fmt.Errorf("failed to load webhook event: %w", err)
	}
	if existing != nil && existing.IsTerminal() {
		result.Duplicate = true
		result.Status = existing.Status
		result.Attempts = existing.Attempts
		g.metrics.WebhookReceived(provider, webhookOutcomeDuplicate)
		logger.Info().Str("status", string(existing.Status)).Msg("Webhook event already handled, acknowledging")
		return result, nil
	}

	record, err := g.events.RecordAttempt(ctx, provider, inbound.EventID, inbound.EventType, g.now())
	if err != nil {
		return result, fmt.Errorf("failed to record webhook attempt: %w", err)
	}
	result.Attempts = record.Attempts

	conns, err := g.resolveConnectors(ctx, provider, inbound, connectorHint)
	if err != nil {
		return g.fail(ctx, logger, record, result, fmt.Errorf("failed to resolve connector: %w", err))
	}
	if len(conns) == 0 {
		logger.Info().Str("accountRef", inbound.AccountRef).Msg("No connector matches webhook, ignoring")
		return g.ignore(ctx, record, result)
	}
	record.ConnectorID = conns[0].ID
	record.WorkspaceID = conns[0].WorkspaceID

	handlers := route.dispatcher.HandlersFor(inbound.EventType)
	if len(handlers) == 0 {
		return g.ignore(ctx, record, result)
	}

	applied := 0
	for _, conn := range conns {
		for _, h := range handlers {
			actions, err := h.Handle(ctx, conn, inbound)
			if err != nil {
				return g.fail(ctx, logger, record, result, fmt.Errorf("handler failed for connector %s: %w", conn.ID, err))
			}
			if err := g.apply(ctx, actions); err != nil {
				return g.fail(ctx, logger, record, result, fmt.Errorf("failed to apply webhook actions for connector %s: %w", conn.ID, err))
			}
			applied += len(actions)
		}
	}

	processedAt := g.now()
	record.Status = domain.WebhookStatusProcessed
	record.ProcessedAt = &processedAt
	record.LastError = ""
	if err := g.events.Update(ctx, record); err != nil {
		logger.Error().Err(err).Msg("Failed to mark webhook event processed")
	}

	result.Processed = true
	result.Status = record.Status
	g.metrics.WebhookReceived(provider, webhookOutcomeProcessed)
	logger.Info().Int("actions", applied).Int("connectors", len(conns)).Msg("Webhook event processed")

	for _, conn := range conns {
		g.publish(ctx, conn, inbound, applied)
	}
	return result, nil
}

func (g *WebhookGateway) resolveConnectors(ctx context.Context, provider domain.ConnectorType, inbound *domain.InboundWebhook, hint string) ([]*domain.Connector, error) {
	var candidates []*domain.Connector
	if hint != "" {
		conn, err := g.connectors.GetByID(ctx, hint)
		if err != nil {
			return nil, err
		}
		if conn != nil && conn.Type == provider {
			candidates = append(candidates, conn)
		}
	} else if inbound.AccountRef != "" {
		found, err := g.connectors.FindByAccountRef(ctx, provider, inbound.AccountRef)
		if err != nil {
			return nil, err
		}
		candidates = found
	}

	conns := candidates[:0]
	for _, c := range candidates {
		if c.IsEnabled {
			conns = append(conns, c)
		}
	}
	return conns, nil
}

func (g *WebhookGateway) apply(ctx context.Context, actions []domain.WebhookAction) error {
	for _, action := range actions {
		switch action.Kind {
		case domain.WebhookActionUpsert:
			if _, err := g.writer.Upsert(ctx, action.Entity); err != nil {
				return err
			}
		case domain.WebhookActionDelete:
			if _, err := g.writer.Delete(ctx, action.Target, action.Identity); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown webhook action %q", action.Kind)
		}
	}
	return nil
}

func (g *WebhookGateway) ignore(ctx context.Context, record *domain.WebhookEvent, result *WebhookResult) (*WebhookResult, error) {
	processedAt := g.now()
	record.Status = domain.WebhookStatusIgnored
	record.ProcessedAt = &processedAt
	if err := g.events.Update(ctx, record); err != nil {
		g.logger.Error().Err(err).Str("eventId", record.EventID).Msg("Failed to mark webhook event ignored")
	}
	result.Ignored = true
	result.Status = record.Status
	g.metrics.WebhookReceived(record.Provider, webhookOutcomeIgnored)
	return result, nil
}

// fail records a processing failure. Below the attempt ceiling the error is
// returned so the provider retries; at the ceiling the event is exhausted and
// acknowledged.
func (g *WebhookGateway) fail(ctx context.Context, logger zerolog.Logger, record *domain.WebhookEvent, result *WebhookResult, cause error) (*WebhookResult, error) {
	record.LastError = cause.Error()
	result.Error = cause.Error()

	exhausted := record.Attempts >= g.opts.MaxAttempts
	if exhausted {
		record.Status = domain.WebhookStatusExhausted
	} else {
		record.Status = domain.WebhookStatusFailed
	}
	result.Status = record.Status

	if err := g.events.Update(context.WithoutCancel(ctx), record); err != nil {
		logger.Error().Err(err).Msg("Failed to record webhook failure")
	}

	if exhausted {
		g.metrics.WebhookReceived(record.Provider, webhookOutcomeExhausted)
		logger.Error().Err(cause).Int("attempts", record.Attempts).Msg("Webhook event exhausted its attempts, giving up")
		return result, nil
	}

	g.metrics.WebhookReceived(record.Provider, webhookOutcomeFailed)
	logger.Error().Err(cause).Int("attempts", record.Attempts).Msg("Webhook processing failed")
	return result, cause
}

func (g *WebhookGateway) publish(ctx context.Context, conn *domain.Connector, inbound *domain.InboundWebhook, actions int) {
	if g.publisher == nil {
		return
	}
	event := domain.PipelineEvent{
		Type:        domain.EventWebhookProcessed,
		WorkspaceID: conn.WorkspaceID,
		ConnectorID: conn.ID,
		Provider:    conn.Type,
		Data: map[string]any{
			"event_id":   inbound.EventID,
			"event_type": inbound.EventType,
			"actions":    actions,
		},
		OccurredAt: g.now(),
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to publish webhook event")
	}
}
