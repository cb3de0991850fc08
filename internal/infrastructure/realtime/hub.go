// Package realtime fans pipeline events out to live subscribers, such as
// dashboard websocket connections.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

const subscriptionBuffer = 32

// Subscription represents one live subscriber
type Subscription struct {
	ID     string
	Filter *Filter
	Events chan domain.PipelineEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// Filter selects the events a subscriber receives
type Filter struct {
	WorkspaceID string                     // only this workspace, plus global events
	Types       []domain.PipelineEventType // empty matches all
}

// Hub is an explicit registry of live subscriptions
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	logger zerolog.Logger
	nextID int64
	idMu   sync.Mutex
}

var _ ports.EventPublisher = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a subscriber until ctx is cancelled or Unsubscribe is called
func (h *Hub) Subscribe(ctx context.Context, filter *Filter) *Subscription {
	h.idMu.Lock()
	id := h.generateID()
	h.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	sub := &Subscription{
		ID:     id,
		Filter: filter,
		Events: make(chan domain.PipelineEvent, subscriptionBuffer),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	h.logger.Info().
		Str("subscriptionId", id).
		Interface("filter", filter).
		Msg("Realtime subscription created")

	go func() {
		<-subCtx.Done()
		h.Unsubscribe(id)
	}()

	return sub
}

// Unsubscribe removes a subscription and closes its channels
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, exists := h.subs[id]
	if !exists {
		return
	}

	close(sub.Events)
	close(sub.Done)
	sub.cancel()
	delete(h.subs, id)

	h.logger.Info().
		Str("subscriptionId", id).
		Msg("Realtime subscription removed")
}

// Publish delivers an event to every matching subscriber without blocking.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, event domain.PipelineEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		if !matchesFilter(event, sub.Filter) {
			continue
		}
		select {
		case sub.Events <- event:
			delivered++
		case <-sub.ctx.Done():
		default:
			h.logger.Warn().
				Str("subscriptionId", sub.ID).
				Msg("Subscription buffer full, dropping event")
		}
	}

	if delivered > 0 {
		h.logger.Debug().
			Str("type", string(event.Type)).
			Str("workspaceId", event.WorkspaceID).
			Int("subscribers", delivered).
			Msg("Published realtime event")
	}
	return nil
}

func matchesFilter(event domain.PipelineEvent, filter *Filter) bool {
	if filter == nil {
		return true
	}

	if len(filter.Types) > 0 {
		typeMatch := false
		for _, t := range filter.Types {
			if event.Type == t {
				typeMatch = true
				break
			}
		}
		if !typeMatch {
			return false
		}
	}

	if filter.WorkspaceID != "" && event.WorkspaceID != "" && event.WorkspaceID != filter.WorkspaceID {
		return false
	}

	return true
}

func (h *Hub) generateID() string {
	h.nextID++
	return fmt.Sprintf("sub-%d", h.nextID)
}

// Stats returns hub statistics
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(h.subs),
	}
}
