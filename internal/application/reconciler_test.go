package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/memstore"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	metrics := &countingMetrics{}
	r := NewReconciler(store.Entities(), metrics, zerolog.Nop())

	first, err := r.Upsert(ctx, newCustomer("w1", "42", "a@example.com"))
	require.NoError(t, err)
	assert.False(t, first.WasUpdate)

	second, err := r.Upsert(ctx, newCustomer("w1", "42", "b@example.com"))
	require.NoError(t, err)
	assert.True(t, second.WasUpdate)
	assert.Equal(t, first.ID, second.ID)

	n, err := store.Entities().CountEntities(ctx, domain.KindEcommerceCustomer, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, metrics.inserts)
	assert.Equal(t, 1, metrics.updates)
}

func TestReconcilerSeparatesWorkspacesAndSources(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	r := NewReconciler(store.Entities(), nil, zerolog.Nop())

	_, err := r.Upsert(ctx, newCustomer("w1", "42", "a@example.com"))
	require.NoError(t, err)
	res, err := r.Upsert(ctx, newCustomer("w2", "42", "a@example.com"))
	require.NoError(t, err)
	assert.False(t, res.WasUpdate)

	tn := newCustomer("w1", "42", "a@example.com")
	tn.Source = domain.ConnectorTiendanube
	res, err = r.Upsert(ctx, tn)
	require.NoError(t, err)
	assert.False(t, res.WasUpdate)
}

func TestReconcilerRejectsIncompleteIdentity(t *testing.T) {
	r := NewReconciler(memstore.New().Entities(), nil, zerolog.Nop())
	_, err := r.Upsert(context.Background(), newCustomer("w1", "", "a@example.com"))
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

// racingStore reports a lost insert race on the first write
type racingStore struct {
	calls int
}

func (s *racingStore) UpsertEntity(ctx context.Context, entity domain.NormalizedEntity, newID string, now time.Time) (string, bool, error) {
	s.calls++
	if s.calls == 1 {
		return "", false, fmt.Errorf("E11000: %w", domain.ErrDuplicateKey)
	}
	return "winner-id", true, nil
}

func (s *racingStore) DeleteEntity(ctx context.Context, kind domain.EntityKind, identity domain.Identity) (bool, error) {
	return false, nil
}

func (s *racingStore) CountEntities(ctx context.Context, kind domain.EntityKind, workspaceID string) (int64, error) {
	return 0, nil
}

func TestReconcilerResolvesDuplicateKeyAsUpdate(t *testing.T) {
	store := &racingStore{}
	metrics := &countingMetrics{}
	r := NewReconciler(store, metrics, zerolog.Nop())

	res, err := r.Upsert(context.Background(), newCustomer("w1", "42", "a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "winner-id", res.ID)
	assert.True(t, res.WasUpdate)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, 1, metrics.conflicts)
}

func TestReconcilerConcurrentUpsertsLeaveOneRow(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	r := NewReconciler(store.Entities(), nil, zerolog.Nop())

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Upsert(ctx, newCustomer("w1", "7", fmt.Sprintf("u%d@example.com", i)))
			if assert.NoError(t, err) {
				ids[i] = res.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	n, err := store.Entities().CountEntities(ctx, domain.KindEcommerceCustomer, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReconcilerDelete(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	r := NewReconciler(store.Entities(), nil, zerolog.Nop())

	c := newCustomer("w1", "42", "a@example.com")
	_, err := r.Upsert(ctx, c)
	require.NoError(t, err)

	deleted, err := r.Delete(ctx, domain.KindEcommerceCustomer, c.Identity())
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = r.Delete(ctx, domain.KindEcommerceCustomer, c.Identity())
	require.NoError(t, err)
	assert.False(t, deleted)
}
