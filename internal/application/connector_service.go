package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConnectorService manages connector records and their credentials
type ConnectorService struct {
	connectors ports.ConnectorRepository
	syncLogs   ports.SyncLogRepository
	registry   *ConnectorRegistry
	publisher  ports.EventPublisher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewConnectorService creates a new connector service
func NewConnectorService(
	connectors ports.ConnectorRepository,
	syncLogs ports.SyncLogRepository,
	registry *ConnectorRegistry,
	publisher ports.EventPublisher,
	logger zerolog.Logger,
) *ConnectorService {
	return &ConnectorService{
		connectors: connectors,
		syncLogs:   syncLogs,
		registry:   registry,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateConnectorInput represents input for connecting a provider account
type CreateConnectorInput struct {
	WorkspaceID string            `json:"workspace_id"`
	Type        string            `json:"type"`
	Credentials json.RawMessage   `json:"credentials"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// CreateConnector validates credentials, probes the provider and stores the connector.
// A failed probe still stores the connector, in the error state.
func (s *ConnectorService) CreateConnector(ctx context.Context, input CreateConnectorInput) (*domain.Connector, error) {
	if input.WorkspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}
	connectorType, err := domain.ParseConnectorType(input.Type)
	if err != nil {
		return nil, err
	}
	provider, err := s.registry.Get(connectorType)
	if err != nil {
		return nil, err
	}
	creds, err := domain.DecodeCredentials(connectorType, input.Credentials)
	if err != nil {
		return nil, err
	}

	status := domain.ConnectorStatusConnected
	if !provider.TestConnection(ctx, creds) {
		status = domain.ConnectorStatusError
	}

	now := s.now()
	conn := &domain.Connector{
		ID:          uuid.NewString(),
		WorkspaceID: input.WorkspaceID,
		Type:        connectorType,
		Credentials: creds,
		Settings:    input.Settings,
		Status:      status,
		IsEnabled:   true,
		AccountRef:  creds.AccountRef(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == domain.ConnectorStatusError {
		conn.LastSyncError = "connection test failed"
	}

	if err := s.connectors.Create(ctx, conn); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create connector")
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	s.logger.Info().
		Str("connectorId", conn.ID).
		Str("workspaceId", conn.WorkspaceID).
		Str("provider", string(conn.Type)).
		Str("status", string(conn.Status)).
		Msg("Created connector")
	s.publishStatus(ctx, conn)

	return conn, nil
}

// GetConnector returns a workspace's connector or domain.ErrNotFound
func (s *ConnectorService) GetConnector(ctx context.Context, workspaceID, connectorID string) (*domain.Connector, error) {
	conn, err := s.connectors.GetByID(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}
	if conn == nil || conn.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("connector %s: %w", connectorID, domain.ErrNotFound)
	}
	return conn, nil
}

// ListConnectors returns every connector of a workspace
func (s *ConnectorService) ListConnectors(ctx context.Context, workspaceID string) ([]*domain.Connector, error) {
	conns, err := s.connectors.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}
	return conns, nil
}

// SetEnabled soft-enables or soft-disables a connector
func (s *ConnectorService) SetEnabled(ctx context.Context, workspaceID, connectorID string, enabled bool) (*domain.Connector, error) {
	conn, err := s.GetConnector(ctx, workspaceID, connectorID)
	if err != nil {
		return nil, err
	}
	if conn.IsEnabled == enabled {
		return conn, nil
	}

	conn.IsEnabled = enabled
	conn.UpdatedAt = s.now()
	if err := s.connectors.Update(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to update connector: %w", err)
	}

	s.logger.Info().Str("connectorId", conn.ID).Bool("enabled", enabled).Msg("Connector enablement changed")
	return conn, nil
}

// TestConnector probes the provider with stored credentials and records the result
func (s *ConnectorService) TestConnector(ctx context.Context, workspaceID, connectorID string) (bool, error) {
	conn, err := s.GetConnector(ctx, workspaceID, connectorID)
	if err != nil {
		return false, err
	}
	provider, err := s.registry.Get(conn.Type)
	if err != nil {
		return false, err
	}

	ok := provider.TestConnection(ctx, conn.Credentials)

	previous := conn.Status
	switch {
	case ok && (conn.Status == domain.ConnectorStatusError || conn.Status == domain.ConnectorStatusPending):
		conn.Status = domain.ConnectorStatusConnected
	case !ok && conn.Status != domain.ConnectorStatusDisconnected:
		conn.Status = domain.ConnectorStatusError
	}

	if conn.Status != previous {
		conn.UpdatedAt = s.now()
		if err := s.connectors.Update(ctx, conn); err != nil {
			return ok, fmt.Errorf("failed to update connector status: %w", err)
		}
		s.publishStatus(ctx, conn)
	}

	s.logger.Info().Str("connectorId", conn.ID).Bool("ok", ok).Msg("Connector connection tested")
	return ok, nil
}

// ListSyncLogs returns the most recent sync runs of a connector
func (s *ConnectorService) ListSyncLogs(ctx context.Context, workspaceID, connectorID string, limit int) ([]*domain.SyncLog, error) {
	if _, err := s.GetConnector(ctx, workspaceID, connectorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	logs, err := s.syncLogs.ListByConnector(ctx, connectorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	return logs, nil
}

func (s *ConnectorService) publishStatus(ctx context.Context, conn *domain.Connector) {
	if s.publisher == nil {
		return
	}
	event := domain.PipelineEvent{
		Type:        domain.EventConnectorStatus,
		WorkspaceID: conn.WorkspaceID,
		ConnectorID: conn.ID,
		Provider:    conn.Type,
		Data:        map[string]any{"status": conn.Status},
		OccurredAt:  s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish connector status")
	}
}
