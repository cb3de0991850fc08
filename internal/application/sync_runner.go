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
	"golang.org/x/sync/errgroup"
)

// Run summary statuses. Completed, partial and failed mirror the connector's
// LastSyncStatus; skipped marks connectors that were not attempted.
const (
	RunStatusCompleted = domain.LastSyncCompleted
	RunStatusPartial   = domain.LastSyncPartial
	RunStatusFailed    = domain.LastSyncFailed
	RunStatusSkipped   = "skipped"
)

// RunSummary reports the outcome of one connector sync
type RunSummary struct {
	ConnectorID string               `json:"connector_id"`
	WorkspaceID string               `json:"workspace_id"`
	Provider    domain.ConnectorType `json:"provider"`
	SyncLogID   string               `json:"sync_log_id,omitempty"`
	SyncType    domain.SyncType      `json:"sync_type,omitempty"`
	Status      string               `json:"status"`
	Records     map[string]int       `json:"records,omitempty"`
	Errors      []domain.SyncError   `json:"errors,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	Duration    time.Duration        `json:"duration"`
}

// SyncRunnerOptions tunes the runner
type SyncRunnerOptions struct {
	// RunTimeout is the deadline of a single connector run
	RunTimeout time.Duration
	// Concurrency bounds how many connectors sync at once during fan-out
	Concurrency int
	// LockTTL is how long a sync lease survives a crashed holder
	LockTTL time.Duration
}

// SyncRunner executes connector syncs and records their outcome
type SyncRunner struct {
	connectors ports.ConnectorRepository
	syncLogs   ports.SyncLogRepository
	registry   *ConnectorRegistry
	sink       ports.EntitySink
	locker     ports.SyncLocker
	publisher  ports.EventPublisher
	metrics    ports.Metrics
	opts       SyncRunnerOptions
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSyncRunner creates a new sync job runner
func NewSyncRunner(
	connectors ports.ConnectorRepository,
	syncLogs ports.SyncLogRepository,
	registry *ConnectorRegistry,
	sink ports.EntitySink,
	locker ports.SyncLocker,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	opts SyncRunnerOptions,
	logger zerolog.Logger,
) *SyncRunner {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Hour
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.LockTTL < opts.RunTimeout {
		opts.LockTTL = opts.RunTimeout + 15*time.Minute
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &SyncRunner{
		connectors: connectors,
		syncLogs:   syncLogs,
		registry:   registry,
		sink:       sink,
		locker:     locker,
		publisher:  publisher,
		metrics:    metrics,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SyncSingleConnector syncs one connector and returns its error to the caller
func (r *SyncRunner) SyncSingleConnector(ctx context.Context, workspaceID, connectorID string) (*RunSummary, error) {
	conn, err := r.connectors.GetByID(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}
	if conn == nil || conn.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("connector %s: %w", connectorID, domain.ErrNotFound)
	}
	if !conn.Syncable() {
		return nil, fmt.Errorf("connector %s: %w", connectorID, domain.ErrConnectorDisabled)
	}
	return r.syncConnector(ctx, conn)
}

// SyncWorkspaceConnectors syncs every enabled connector of a workspace.
// Per-connector failures are recorded in the summaries, not returned.
func (r *SyncRunner) SyncWorkspaceConnectors(ctx context.Context, workspaceID string) ([]RunSummary, error) {
	conns, err := r.connectors.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace connectors: %w", err)
	}
	return r.fanOut(ctx, conns), nil
}

// SyncAllConnectors syncs every enabled connector across workspaces.
// Per-connector failures are recorded in the summaries, not returned.
func (r *SyncRunner) SyncAllConnectors(ctx context.Context) ([]RunSummary, error) {
	conns, err := r.connectors.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled connectors: %w", err)
	}
	summaries := r.fanOut(ctx, conns)

	failed := 0
	for _, s := range summaries {
		if s.Status == RunStatusFailed {
			failed++
		}
	}
	r.logger.Info().
		Int("connectors", len(summaries)).
		Int("failed", failed).
		Msg("Sync of all connectors finished")
	return summaries, nil
}

// fanOut runs connectors with bounded concurrency, preserving input order in the output
func (r *SyncRunner) fanOut(ctx context.Context, conns []*domain.Connector) []RunSummary {
	summaries := make([]RunSummary, len(conns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, conn := range conns {
		if !conn.Syncable() {
			summaries[i] = skippedSummary(conn, domain.ErrConnectorDisabled.Error())
			continue
		}
		g.Go(func() error {
			summary, err := r.syncConnector(gctx, conn)
			if err != nil {
				r.logger.Error().
					Err(err).
					Str("connectorId", conn.ID).
					Str("workspaceId", conn.WorkspaceID).
					Msg("Connector sync failed")
			}
			if summary == nil {
				s := skippedSummary(conn, err.Error())
				if !errors.Is(err, domain.ErrSyncInProgress) {
					s.Status = RunStatusFailed
				}
				summary = &s
			}
			summaries[i] = *summary
			// never cancel siblings
			return nil
		})
	}
	_ = g.Wait()

	return summaries
}

func skippedSummary(conn *domain.Connector, reason string) RunSummary {
	return RunSummary{
		ConnectorID: conn.ID,
		WorkspaceID: conn.WorkspaceID,
		Provider:    conn.Type,
		Status:      RunStatusSkipped,
		Error:       reason,
	}
}

// syncConnector runs one connector under its lease and deadline. The
// returned summary is nil only when no SyncLog was created.
func (r *SyncRunner) syncConnector(ctx context.Context, conn *domain.Connector) (*RunSummary, error) {
	logger := r.logger.With().
		Str("connectorId", conn.ID).
		Str("workspaceId", conn.WorkspaceID).
		Str("provider", string(conn.Type)).
		Str("trigger", domain.GetTriggerFromContext(ctx)).
		Logger()

	provider, err := r.registry.Get(conn.Type)
	if err != nil {
		now := r.now()
		conn.ApplySyncOutcome(domain.SyncOutcome{StartedAt: now, Status: domain.LastSyncFailed, Error: err.Error()}, now)
		if recErr := r.connectors.RecordSyncState(context.WithoutCancel(ctx), conn.ID, conn.SyncState()); recErr != nil {
			logger.Error().Err(recErr).Msg("Failed to update connector sync state")
		}
		r.metrics.SyncRunFinished(conn.Type, RunStatusFailed, 0)
		logger.Error().Err(err).Msg("No provider for connector")
		return nil, err
	}

	lease, err := r.locker.Acquire(ctx, "sync:connector:"+conn.ID, r.opts.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			logger.Info().Msg("Sync already in progress, skipping")
		}
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("Failed to release sync lease")
		}
	}()

	startedAt := r.now()
	syncType := domain.SyncTypeFull
	if conn.LastSyncAt != nil {
		syncType = domain.SyncTypeIncremental
	}

	log := domain.NewSyncLog(uuid.NewString(), conn, syncType, startedAt)
	if err := r.syncLogs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}

	summary := &RunSummary{
		ConnectorID: conn.ID,
		WorkspaceID: conn.WorkspaceID,
		Provider:    conn.Type,
		SyncLogID:   log.ID,
		SyncType:    syncType,
		StartedAt:   startedAt,
	}

	logger.Info().Str("syncType", string(syncType)).Str("syncLogId", log.ID).Msg("Starting connector sync")
	r.publish(ctx, domain.EventSyncStarted, conn, map[string]any{"sync_log_id": log.ID, "sync_type": syncType})

	result, runErr := r.execute(ctx, provider, conn)

	// final bookkeeping must survive a cancelled caller
	finalCtx := context.WithoutCancel(ctx)
	finishedAt := r.now()
	summary.Duration = finishedAt.Sub(startedAt)
	if result != nil {
		summary.Records = result.RecordsProcessed
		summary.Errors = result.Errors
	}

	if runErr != nil {
		summary.Status = RunStatusFailed
		summary.Error = runErr.Error()

		if err := log.Fail(runErr, result, finishedAt); err != nil {
			logger.Error().Err(err).Msg("Failed to transition sync log")
		}
		r.finalize(finalCtx, logger, log, conn, domain.SyncOutcome{
			StartedAt: startedAt,
			Status:    domain.LastSyncFailed,
			Error:     runErr.Error(),
		}, finishedAt)

		r.metrics.SyncRunFinished(conn.Type, RunStatusFailed, summary.Duration)
		r.publish(finalCtx, domain.EventSyncFailed, conn, map[string]any{"sync_log_id": log.ID, "error": runErr.Error()})
		logger.Error().Err(runErr).Dur("duration", summary.Duration).Msg("Connector sync failed")
		return summary, runErr
	}

	status := RunStatusCompleted
	if len(result.Errors) > 0 {
		status = RunStatusPartial
	}
	summary.Status = status

	if err := log.Complete(result, finishedAt); err != nil {
		logger.Error().Err(err).Msg("Failed to transition sync log")
	}
	r.finalize(finalCtx, logger, log, conn, domain.SyncOutcome{
		StartedAt: startedAt,
		Status:    status,
		Error:     result.ErrorSummary(),
	}, finishedAt)

	r.metrics.SyncRunFinished(conn.Type, status, summary.Duration)
	r.publish(finalCtx, domain.EventSyncCompleted, conn, map[string]any{
		"sync_log_id": log.ID,
		"status":      status,
		"records":     result.TotalRecords(),
	})
	logger.Info().
		Str("status", status).
		Int("records", result.TotalRecords()).
		Dur("duration", summary.Duration).
		Msg("Connector sync completed")
	return summary, nil
}

func (r *SyncRunner) execute(ctx context.Context, provider ports.ConnectorProvider, conn *domain.Connector) (*domain.SyncResult, error) {
	stages, err := provider.Stages(conn, r.sink)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync stages: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.RunTimeout)
	defer cancel()

	orch := NewOrchestrator(conn, stages, r.metrics, r.logger)
	if conn.LastSyncAt == nil {
		return orch.FullSync(runCtx)
	}
	return orch.IncrementalSync(runCtx, *conn.LastSyncAt)
}

func (r *SyncRunner) finalize(ctx context.Context, logger zerolog.Logger, log *domain.SyncLog, conn *domain.Connector, outcome domain.SyncOutcome, at time.Time) {
	if err := r.syncLogs.Update(ctx, log); err != nil {
		logger.Error().Err(err).Str("syncLogId", log.ID).Msg("Failed to update sync log")
	}
	conn.ApplySyncOutcome(outcome, at)
	if err := r.connectors.RecordSyncState(ctx, conn.ID, conn.SyncState()); err != nil {
		logger.Error().Err(err).Msg("Failed to update connector sync state")
	}
}

func (r *SyncRunner) publish(ctx context.Context, eventType domain.PipelineEventType, conn *domain.Connector, data map[string]any) {
	if r.publisher == nil {
		return
	}
	event := domain.PipelineEvent{
		Type:        eventType,
		WorkspaceID: conn.WorkspaceID,
		ConnectorID: conn.ID,
		Provider:    conn.Type,
		Data:        data,
		OccurredAt:  r.now(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("eventType", string(eventType)).Msg("Failed to publish pipeline event")
	}
}
