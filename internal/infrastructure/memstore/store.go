// Package memstore is a process-local storage backend selected by memory://.
// It backs the CLI's dry runs and the application tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/google/uuid"
)

// Store keeps every repository in memory
type Store struct {
	connectors *ConnectorRepository
	syncLogs   *SyncLogRepository
	webhooks   *WebhookEventRepository
	entities   *EntityStore
}

var _ ports.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		connectors: &ConnectorRepository{items: make(map[string]domain.Connector)},
		syncLogs:   &SyncLogRepository{items: make(map[string]domain.SyncLog)},
		webhooks:   &WebhookEventRepository{items: make(map[string]domain.WebhookEvent)},
		entities:   &EntityStore{rows: make(map[domain.EntityKind]map[domain.Identity]entityRow)},
	}
}

func (s *Store) Connectors() ports.ConnectorRepository       { return s.connectors }
func (s *Store) SyncLogs() ports.SyncLogRepository           { return s.syncLogs }
func (s *Store) WebhookEvents() ports.WebhookEventRepository { return s.webhooks }
func (s *Store) Entities() ports.EntityStore                 { return s.entities }

// EntityStore exposes the concrete entity store for inspection
func (s *Store) EntityStore() *EntityStore { return s.entities }

func (s *Store) EnsureSchema(ctx context.Context) error { return nil }
func (s *Store) Close(ctx context.Context) error        { return nil }

// ConnectorRepository stores connectors by id
type ConnectorRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Connector
}

func copyConnector(c domain.Connector) *domain.Connector {
	if c.Settings != nil {
		settings := make(map[string]string, len(c.Settings))
		for k, v := range c.Settings {
			settings[k] = v
		}
		c.Settings = settings
	}
	if c.LastSyncAt != nil {
		t := *c.LastSyncAt
		c.LastSyncAt = &t
	}
	return &c
}

func (r *ConnectorRepository) Create(ctx context.Context, connector *domain.Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connector.ID == "" {
		connector.ID = uuid.NewString()
	}
	if _, ok := r.items[connector.ID]; ok {
		return fmt.Errorf("connector %s: %w", connector.ID, domain.ErrDuplicateKey)
	}
	r.items[connector.ID] = *copyConnector(*connector)
	return nil
}

func (r *ConnectorRepository) Update(ctx context.Context, connector *domain.Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[connector.ID]; !ok {
		return fmt.Errorf("connector %s: %w", connector.ID, domain.ErrNotFound)
	}
	r.items[connector.ID] = *copyConnector(*connector)
	return nil
}

func (r *ConnectorRepository) RecordSyncState(ctx context.Context, id string, state domain.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return fmt.Errorf("connector %s: %w", id, domain.ErrNotFound)
	}
	c.ApplySyncState(state)
	r.items[id] = c
	return nil
}

func (r *ConnectorRepository) GetByID(ctx context.Context, id string) (*domain.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return copyConnector(c), nil
}

func (r *ConnectorRepository) list(match func(domain.Connector) bool) []*domain.Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Connector
	for _, c := range r.items {
		if match(c) {
			out = append(out, copyConnector(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *ConnectorRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Connector, error) {
	return r.list(func(c domain.Connector) bool { return c.WorkspaceID == workspaceID }), nil
}

func (r *ConnectorRepository) ListEnabled(ctx context.Context) ([]*domain.Connector, error) {
	return r.list(func(c domain.Connector) bool { return c.IsEnabled }), nil
}

func (r *ConnectorRepository) FindByAccountRef(ctx context.Context, connectorType domain.ConnectorType, accountRef string) ([]*domain.Connector, error) {
	return r.list(func(c domain.Connector) bool {
		return c.Type == connectorType && c.AccountRef == accountRef
	}), nil
}

// SyncLogRepository stores sync logs by id
type SyncLogRepository struct {
	mu    sync.RWMutex
	items map[string]domain.SyncLog
}

func copySyncLog(l domain.SyncLog) *domain.SyncLog {
	if l.RecordsProcessed != nil {
		counts := make(map[string]int, len(l.RecordsProcessed))
		for k, v := range l.RecordsProcessed {
			counts[k] = v
		}
		l.RecordsProcessed = counts
	}
	l.Errors = append([]domain.SyncError(nil), l.Errors...)
	return &l
}

func (r *SyncLogRepository) Create(ctx context.Context, log *domain.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[log.ID] = *copySyncLog(*log)
	return nil
}

func (r *SyncLogRepository) Update(ctx context.Context, log *domain.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[log.ID]; !ok {
		return fmt.Errorf("sync log %s: %w", log.ID, domain.ErrNotFound)
	}
	r.items[log.ID] = *copySyncLog(*log)
	return nil
}

func (r *SyncLogRepository) ListByConnector(ctx context.Context, connectorID string, limit int) ([]*domain.SyncLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.SyncLog
	for _, l := range r.items {
		if l.ConnectorID == connectorID {
			out = append(out, copySyncLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WebhookEventRepository stores webhook records keyed by provider and event id
type WebhookEventRepository struct {
	mu    sync.Mutex
	items map[string]domain.WebhookEvent
}

func webhookKey(provider domain.ConnectorType, eventID string) string {
	return string(provider) + ":" + eventID
}

func (r *WebhookEventRepository) Get(ctx context.Context, provider domain.ConnectorType, eventID string) (*domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[webhookKey(provider, eventID)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *WebhookEventRepository) RecordAttempt(ctx context.Context, provider domain.ConnectorType, eventID, eventType string, receivedAt time.Time) (*domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := webhookKey(provider, eventID)
	e, ok := r.items[key]
	if !ok {
		e = domain.WebhookEvent{
			ID:         uuid.NewString(),
			Provider:   provider,
			EventID:    eventID,
			EventType:  eventType,
			ReceivedAt: receivedAt,
		}
	}
	e.Attempts++
	e.Status = domain.WebhookStatusProcessing
	r.items[key] = e
	return &e, nil
}

func (r *WebhookEventRepository) Update(ctx context.Context, event *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := webhookKey(event.Provider, event.EventID)
	if _, ok := r.items[key]; !ok {
		return fmt.Errorf("webhook event %s: %w", key, domain.ErrNotFound)
	}
	r.items[key] = *event
	return nil
}

type entityRow struct {
	id      string
	payload []byte
}

// EntityStore holds normalized entities as JSON keyed by identity
type EntityStore struct {
	mu   sync.RWMutex
	rows map[domain.EntityKind]map[domain.Identity]entityRow
}

// UpsertEntity is atomic under the store mutex, so it never reports a duplicate key
func (s *EntityStore) UpsertEntity(ctx context.Context, entity domain.NormalizedEntity, newID string, now time.Time) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := entity.Base()
	identity := base.Identity()
	table, ok := s.rows[entity.Kind()]
	if !ok {
		table = make(map[domain.Identity]entityRow)
		s.rows[entity.Kind()] = table
	}

	updated := false
	if existing, ok := table[identity]; ok {
		var prev domain.EntityBase
		if err := json.Unmarshal(existing.payload, &prev); err != nil {
			return "", false, fmt.Errorf("failed to decode stored entity: %w", err)
		}
		base.ID = existing.id
		base.CreatedAt = prev.CreatedAt
		updated = true
	} else {
		base.ID = newID
		base.CreatedAt = now
	}
	base.UpdatedAt = now

	payload, err := json.Marshal(entity)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode entity: %w", err)
	}
	table[identity] = entityRow{id: base.ID, payload: payload}
	return base.ID, updated, nil
}

func (s *EntityStore) DeleteEntity(ctx context.Context, kind domain.EntityKind, identity domain.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.rows[kind]
	if _, ok := table[identity]; !ok {
		return false, nil
	}
	delete(table, identity)
	return true, nil
}

func (s *EntityStore) CountEntities(ctx context.Context, kind domain.EntityKind, workspaceID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for identity := range s.rows[kind] {
		if identity.WorkspaceID == workspaceID {
			n++
		}
	}
	return n, nil
}

// Get decodes a stored entity into out, reporting whether it exists
func (s *EntityStore) Get(kind domain.EntityKind, identity domain.Identity, out domain.NormalizedEntity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[kind][identity]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(row.payload, out)
}
