// Package sqlstore is the relational storage backend on gorm, selected by
// postgres://, postgresql:// and sqlite:// store URIs.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store implements ports.Store on a gorm database
type Store struct {
	db         *gorm.DB
	connectors *ConnectorRepository
	syncLogs   *SyncLogRepository
	webhooks   *WebhookEventRepository
	entities   *EntityStore
	logger     zerolog.Logger
}

var _ ports.Store = (*Store)(nil)

// Open connects to a postgres or sqlite database chosen by the URI scheme
func Open(uri string, sealer ports.CredentialSealer, logger zerolog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(uri, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(uri, "sqlite://"))
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		dialector = postgres.Open(uri)
	default:
		return nil, fmt.Errorf("unsupported SQL store uri %q", redact(uri))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.New(gormWriter{logger: logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// sqlite allows one writer; queue writers on the pool instead of failing busy
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Info().Str("dialect", dialector.Name()).Msg("Connected to SQL store")
	return New(db, sealer, logger), nil
}

// New creates a store over an open gorm handle
func New(db *gorm.DB, sealer ports.CredentialSealer, logger zerolog.Logger) *Store {
	return &Store{
		db:         db,
		connectors: &ConnectorRepository{db: db, sealer: sealer},
		syncLogs:   &SyncLogRepository{db: db},
		webhooks:   &WebhookEventRepository{db: db},
		entities:   &EntityStore{db: db},
		logger:     logger,
	}
}

func (s *Store) Connectors() ports.ConnectorRepository       { return s.connectors }
func (s *Store) SyncLogs() ports.SyncLogRepository           { return s.syncLogs }
func (s *Store) WebhookEvents() ports.WebhookEventRepository { return s.webhooks }
func (s *Store) Entities() ports.EntityStore                 { return s.entities }

// EnsureSchema migrates every table. Entity tables share one shape, so their
// unique identity indexes are created by name per table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&ConnectorRecord{}, &SyncLogRecord{}, &WebhookEventRecord{}); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	for _, kind := range domain.EntityKinds {
		table := string(kind)
		if err := db.Table(table).AutoMigrate(&EntityRecord{}); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", table, err)
		}
		stmts := []string{
			fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_identity ON %s (workspace_id, source, external_id)", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_workspace_updated ON %s (workspace_id, updated_at)", table, table),
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to index %s: %w", table, err)
			}
		}
	}

	s.logger.Info().Int("entity_tables", len(domain.EntityKinds)).Msg("SQL schema ensured")
	return nil
}

// Close closes the underlying connection pool
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter routes gorm's slow query and error lines to zerolog
type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Str("component", "gorm").Msgf(format, args...)
}

func mapWriteError(err error, what string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrDuplicateKey)
	}
	return err
}

// isUniqueViolation matches driver errors not translated by gorm
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}

func redact(uri string) string {
	if i := strings.Index(uri, "://"); i >= 0 {
		return uri[:i+3] + "..."
	}
	return "..."
}
