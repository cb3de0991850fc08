package ports

import (
	"context"
	"time"

	"aibos-connector-sync/internal/domain"
)

// ListParams is the uniform request shape of every paginated list call
type ListParams struct {
	Limit        int
	Cursor       string // since_id, starting_after, page number or opaque token depending on provider
	CreatedAtMin *time.Time
	CreatedAtMax *time.Time
}

// Page is one page of provider records.
// When Authoritative is true the provider told us explicitly whether more
// pages exist and NextCursor == "" means done. Otherwise the caller falls
// back to the full-page heuristic.
type Page[T any] struct {
	Items         []T
	NextCursor    string
	Authoritative bool
}

// SyncWindow bounds a sync run. A nil Since means a full sync.
type SyncWindow struct {
	Since *time.Time
}

// IsIncremental reports whether a lower date bound applies
func (w SyncWindow) IsIncremental() bool {
	return w.Since != nil
}

// SyncStage is one entity-type step of a connector sync
type SyncStage struct {
	Name string
	// Prerequisite stages abort the run when they fail
	Prerequisite bool
	Run          func(ctx context.Context, window SyncWindow) (int, error)
}

// EntitySink receives transformed entities. Implemented by the reconciler.
type EntitySink interface {
	Upsert(ctx context.Context, entity domain.NormalizedEntity) (*domain.UpsertResult, error)
}

// ConnectorProvider is the per-provider capability selected by connector type
type ConnectorProvider interface {
	Type() domain.ConnectorType
	// TestConnection performs a minimal authenticated call and never errors
	TestConnection(ctx context.Context, creds domain.Credentials) bool
	// Stages returns the ordered sync stages for a connector
	Stages(conn *domain.Connector, sink EntitySink) ([]SyncStage, error)
}
