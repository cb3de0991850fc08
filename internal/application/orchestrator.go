package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Orchestrator runs the ordered sync stages of one connector
type Orchestrator struct {
	conn    *domain.Connector
	stages  []ports.SyncStage
	metrics ports.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator over stages in dependency order
func NewOrchestrator(conn *domain.Connector, stages []ports.SyncStage, metrics ports.Metrics, logger zerolog.Logger) *Orchestrator {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Orchestrator{
		conn:    conn,
		stages:  stages,
		metrics: metrics,
		logger: logger.With().
			Str("connectorId", conn.ID).
			Str("workspaceId", conn.WorkspaceID).
			Str("provider", string(conn.Type)).
			Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FullSync fetches everything each stage can list
func (o *Orchestrator) FullSync(ctx context.Context) (*domain.SyncResult, error) {
	return o.run(ctx, ports.SyncWindow{})
}

// IncrementalSync fetches records created or updated since the given time
func (o *Orchestrator) IncrementalSync(ctx context.Context, since time.Time) (*domain.SyncResult, error) {
	return o.run(ctx, ports.SyncWindow{Since: &since})
}

// run executes stages in order. A failing stage is recorded and later stages
// still run, except when the stage is a prerequisite or the context ended;
// both abort the run with the partial result.
func (o *Orchestrator) run(ctx context.Context, window ports.SyncWindow) (*domain.SyncResult, error) {
	result := &domain.SyncResult{
		RecordsProcessed: make(map[string]int, len(o.stages)),
		StartedAt:        o.now(),
	}
	finish := func() *domain.SyncResult {
		result.CompletedAt = o.now()
		result.Success = len(result.Errors) == 0
		return result
	}

	for _, stage := range o.stages {
		if err := ctx.Err(); err != nil {
			return finish(), fmt.Errorf("sync interrupted before %s: %w", stage.Name, err)
		}

		start := time.Now()
		n, err := stage.Run(ctx, window)
		result.RecordsProcessed[stage.Name] = n
		o.metrics.StageFinished(o.conn.Type, stage.Name, n, err != nil)

		if err == nil {
			o.logger.Info().
				Str("stage", stage.Name).
				Int("records", n).
				Dur("duration", time.Since(start)).
				Msg("Sync stage completed")
			continue
		}

		result.Errors = append(result.Errors, domain.SyncError{Type: stage.Name, Message: err.Error()})

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return finish(), fmt.Errorf("sync interrupted during %s: %w", stage.Name, err)
		}
		if stage.Prerequisite {
			o.logger.Error().Err(err).Str("stage", stage.Name).Msg("Prerequisite sync stage failed, aborting run")
			return finish(), fmt.Errorf("%w: %s: %v", domain.ErrPrerequisiteFailed, stage.Name, err)
		}

		o.logger.Warn().Err(err).Str("stage", stage.Name).Int("records", n).Msg("Sync stage failed, continuing")
	}

	return finish(), nil
}
