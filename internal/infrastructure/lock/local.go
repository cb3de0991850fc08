package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"
)

// LocalLocker is the single-process lease used when Redis is not configured
type LocalLocker struct {
	mu     sync.Mutex
	held   map[string]localEntry
	now    func() time.Time
	serial uint64
}

type localEntry struct {
	serial    uint64
	expiresAt time.Time
}

var _ ports.SyncLocker = (*LocalLocker)(nil)

// NewLocalLocker creates an empty in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

// Acquire takes the lease for key or returns domain.ErrSyncInProgress. An
// expired lease is taken over.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, key)
	}

	l.serial++
	l.held[key] = localEntry{serial: l.serial, expiresAt: now.Add(ttl)}
	return &localLease{locker: l, key: key, serial: l.serial}, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	serial uint64
}

func (l *localLease) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if e, ok := l.locker.held[l.key]; ok && e.serial == l.serial {
		delete(l.locker.held, l.key)
	}
	return nil
}
