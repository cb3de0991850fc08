package application

import (
	"sync"

	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookDispatcher routes webhook events to the handlers registered for one provider
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers []ports.WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler registers a webhook handler
func (d *WebhookDispatcher) RegisterHandler(handler ports.WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

// HandlersFor returns the handlers that accept the event type, in registration order
func (d *WebhookDispatcher) HandlersFor(eventType string) []ports.WebhookHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []ports.WebhookHandler
	for _, h := range d.handlers {
		if h.CanHandle(eventType) {
			matched = append(matched, h)
		}
	}
	if len(matched) == 0 {
		d.logger.Debug().Str("eventType", eventType).Msg("No handler registered for webhook event")
	}
	return matched
}
