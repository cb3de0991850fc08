package application

import (
	"fmt"
	"sort"
	"sync"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"
)

// ConnectorRegistry dispatches by connector type to provider implementations
type ConnectorRegistry struct {
	mu        sync.RWMutex
	providers map[domain.ConnectorType]ports.ConnectorProvider
}

// NewConnectorRegistry creates a registry holding the given providers
func NewConnectorRegistry(providers ...ports.ConnectorProvider) *ConnectorRegistry {
	r := &ConnectorRegistry{providers: make(map[domain.ConnectorType]ports.ConnectorProvider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for its type
func (r *ConnectorRegistry) Register(p ports.ConnectorProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Type()] = p
}

// Get returns the provider for a connector type
func (r *ConnectorRegistry) Get(t domain.ConnectorType) (ports.ConnectorProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, t)
	}
	return p, nil
}

// Types lists registered connector types in stable order
func (r *ConnectorRegistry) Types() []domain.ConnectorType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.ConnectorType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
