package application

import (
	"context"
	"sync"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"
)

// fakeProvider serves a fixed stage list and connection result
type fakeProvider struct {
	connectorType domain.ConnectorType
	connectionOK  bool
	stages        func(conn *domain.Connector, sink ports.EntitySink) []ports.SyncStage
}

func (p *fakeProvider) Type() domain.ConnectorType { return p.connectorType }

func (p *fakeProvider) TestConnection(ctx context.Context, creds domain.Credentials) bool {
	return p.connectionOK
}

func (p *fakeProvider) Stages(conn *domain.Connector, sink ports.EntitySink) ([]ports.SyncStage, error) {
	return p.stages(conn, sink), nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PipelineEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.PipelineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.PipelineEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PipelineEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// mapLocker is an in-process SyncLocker
type mapLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMapLocker() *mapLocker {
	return &mapLocker{held: make(map[string]bool)}
}

func (l *mapLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrSyncInProgress
	}
	l.held[key] = true
	return &mapLease{locker: l, key: key}, nil
}

type mapLease struct {
	locker *mapLocker
	key    string
}

func (m *mapLease) Release(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	delete(m.locker.held, m.key)
	return nil
}

// countingMetrics records conflict and upsert observations
type countingMetrics struct {
	ports.NopMetrics
	mu        sync.Mutex
	conflicts int
	inserts   int
	updates   int
	webhooks  map[string]int
}

func (m *countingMetrics) UpsertConflict(domain.EntityKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *countingMetrics) EntityUpserted(kind domain.EntityKind, updated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if updated {
		m.updates++
	} else {
		m.inserts++
	}
}

func (m *countingMetrics) WebhookReceived(provider domain.ConnectorType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.webhooks == nil {
		m.webhooks = make(map[string]int)
	}
	m.webhooks[outcome]++
}

func newCustomer(workspaceID, externalID, email string) *domain.EcommerceCustomer {
	return &domain.EcommerceCustomer{
		EntityBase: domain.NewEntityBase(workspaceID, domain.ConnectorShopify, externalID, nil),
		Email:      email,
	}
}
