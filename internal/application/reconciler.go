package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxConflictRetries bounds how often a duplicate-key race is re-attempted.
// The second attempt always finds the winner row, so one retry suffices in
// practice.
const maxConflictRetries = 3

// Reconciler writes normalized entities keyed on (workspaceId, source, externalId)
type Reconciler struct {
	store   ports.EntityStore
	metrics ports.Metrics
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// NewReconciler creates a new upsert reconciler
func NewReconciler(store ports.EntityStore, metrics ports.Metrics, logger zerolog.Logger) *Reconciler {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Reconciler{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// Upsert inserts the entity or updates the row that already carries its
// identity. Concurrent inserts of the same identity resolve to one row.
func (r *Reconciler) Upsert(ctx context.Context, entity domain.NormalizedEntity) (*domain.UpsertResult, error) {
	base := entity.Base()
	if err := base.Identity().Validate(); err != nil {
		return nil, err
	}

	kind := entity.Kind()
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		id, updated, err := r.store.UpsertEntity(ctx, entity, r.newID(), r.now())
		if err == nil {
			base.ID = id
			r.metrics.EntityUpserted(kind, updated)
			return &domain.UpsertResult{ID: id, WasUpdate: updated}, nil
		}
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to upsert %s %s: %w", kind, base.Identity(), err)
		}

		lastErr = err
		r.metrics.UpsertConflict(kind)
		r.logger.Debug().
			Str("kind", string(kind)).
			Str("identity", base.Identity().String()).
			Int("attempt", attempt+1).
			Msg("Upsert lost insert race, retrying as update")
	}

	return nil, fmt.Errorf("failed to upsert %s %s after %d conflicts: %w", kind, base.Identity(), maxConflictRetries, lastErr)
}

// Delete removes the entity with the given identity, reporting whether a row existed
func (r *Reconciler) Delete(ctx context.Context, kind domain.EntityKind, identity domain.Identity) (bool, error) {
	if err := identity.Validate(); err != nil {
		return false, err
	}
	deleted, err := r.store.DeleteEntity(ctx, kind, identity)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %s: %w", kind, identity, err)
	}
	return deleted, nil
}
