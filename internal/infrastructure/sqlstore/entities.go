package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntityStore implements ports.EntityStore with one table per entity kind
type EntityStore struct {
	db *gorm.DB
}

// UpsertEntity writes an entity with INSERT ... ON CONFLICT on the identity
// index. id and created_at survive updates, so the id read back tells an
// insert (newID) from an update.
func (s *EntityStore) UpsertEntity(ctx context.Context, e domain.NormalizedEntity, newID string, now time.Time) (string, bool, error) {
	base := e.Base()
	identity := base.Identity()
	table := string(e.Kind())

	payload, err := json.Marshal(e)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode %s: %w", e.Kind(), err)
	}

	rec := &EntityRecord{
		ID:              newID,
		WorkspaceID:     identity.WorkspaceID,
		Source:          string(identity.Source),
		ExternalID:      identity.ExternalID,
		Payload:         string(payload),
		SourceCreatedAt: base.SourceCreatedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var stored EntityRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Table(table).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "source"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "source_created_at", "updated_at"}),
		}).Create(rec).Error
		if err != nil {
			return err
		}
		return tx.Table(table).
			Select("id", "created_at").
			Where("workspace_id = ? AND source = ? AND external_id = ?", identity.WorkspaceID, string(identity.Source), identity.ExternalID).
			Take(&stored).Error
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert entity: %w", mapWriteError(err, identity.String()))
	}

	base.ID = stored.ID
	base.CreatedAt = stored.CreatedAt
	base.UpdatedAt = now
	return stored.ID, stored.ID != newID, nil
}

// DeleteEntity removes the entity with the given identity
func (s *EntityStore) DeleteEntity(ctx context.Context, kind domain.EntityKind, identity domain.Identity) (bool, error) {
	result := s.db.WithContext(ctx).Table(string(kind)).
		Where("workspace_id = ? AND source = ? AND external_id = ?", identity.WorkspaceID, string(identity.Source), identity.ExternalID).
		Delete(&EntityRecord{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete entity: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountEntities counts a workspace's entities of one kind
func (s *EntityStore) CountEntities(ctx context.Context, kind domain.EntityKind, workspaceID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Table(string(kind)).Where("workspace_id = ?", workspaceID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return n, nil
}

// Load decodes the stored payload of an entity into out, reporting whether it exists
func (s *EntityStore) Load(ctx context.Context, kind domain.EntityKind, identity domain.Identity, out domain.NormalizedEntity) (bool, error) {
	var rec EntityRecord
	result := s.db.WithContext(ctx).Table(string(kind)).
		Where("workspace_id = ? AND source = ? AND external_id = ?", identity.WorkspaceID, string(identity.Source), identity.ExternalID).
		Limit(1).Find(&rec)
	if result.Error != nil {
		return false, fmt.Errorf("failed to load entity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if err := json.Unmarshal([]byte(rec.Payload), out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	base := out.Base()
	base.ID = rec.ID
	base.CreatedAt = rec.CreatedAt
	base.UpdatedAt = rec.UpdatedAt
	return true, nil
}
