package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobName identifies a scheduled job
type JobName string

const (
	JobConnectorSync    JobName = "connector-sync"
	JobAnomalyDetection JobName = "anomaly-detection"
	JobWeeklyReport     JobName = "weekly-report"
)

// ParseJobName validates a job name given on the CLI or API
func ParseJobName(s string) (JobName, error) {
	switch JobName(s) {
	case JobConnectorSync, JobAnomalyDetection, JobWeeklyReport:
		return JobName(s), nil
	}
	return "", fmt.Errorf("unknown job %q", s)
}

// ScheduleSpecs holds the cron expressions of each job (UTC, 5 fields)
type ScheduleSpecs struct {
	ConnectorSync    string
	AnomalyDetection string
	WeeklyReport     string
}

// DefaultScheduleSpecs syncs every 6h, detects anomalies daily and reports weekly
func DefaultScheduleSpecs() ScheduleSpecs {
	return ScheduleSpecs{
		ConnectorSync:    "0 */6 * * *",
		AnomalyDetection: "0 3 * * *",
		WeeklyReport:     "0 6 * * 1",
	}
}

// SyncTrigger is the part of the runner the scheduler drives
type SyncTrigger interface {
	SyncAllConnectors(ctx context.Context) ([]RunSummary, error)
	SyncWorkspaceConnectors(ctx context.Context, workspaceID string) ([]RunSummary, error)
}

// JobInfo describes a registered job
type JobInfo struct {
	Name JobName   `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

// Scheduler runs periodic jobs on a cron clock
type Scheduler struct {
	cron      *cron.Cron
	runner    SyncTrigger
	publisher ports.EventPublisher
	logger    zerolog.Logger

	mu      sync.RWMutex
	baseCtx context.Context
	entries map[JobName]cron.EntryID
	specs   map[JobName]string
}

// NewScheduler creates a scheduler and registers the three jobs.
// Invalid cron expressions are reported here, not at Start.
func NewScheduler(runner SyncTrigger, publisher ports.EventPublisher, specs ScheduleSpecs, logger zerolog.Logger) (*Scheduler, error) {
	cronLogger := cronLogAdapter{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:    runner,
		publisher: publisher,
		logger:    logger,
		baseCtx:   context.Background(),
		entries:   make(map[JobName]cron.EntryID),
		specs:     make(map[JobName]string),
	}

	jobs := []struct {
		name JobName
		spec string
	}{
		{JobConnectorSync, specs.ConnectorSync},
		{JobAnomalyDetection, specs.AnomalyDetection},
		{JobWeeklyReport, specs.WeeklyReport},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		name := j.name
		id, err := s.cron.AddFunc(j.spec, func() {
			ctx := domain.WithTrigger(s.context(), domain.TriggerSchedule)
			if err := s.RunNow(ctx, name, ""); err != nil {
				s.logger.Error().Err(err).Str("job", string(name)).Msg("Scheduled job failed")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid schedule for %s %q: %w", name, j.spec, err)
		}
		s.entries[name] = id
		s.specs[name] = j.spec
	}

	return s, nil
}

// Start begins firing jobs until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")

	go func() {
		<-ctx.Done()
		<-s.Stop().Done()
	}()
}

// Stop prevents new runs; the returned context is done when running jobs finish
func (s *Scheduler) Stop() context.Context {
	done := s.cron.Stop()
	s.logger.Info().Msg("Scheduler stopped")
	return done
}

func (s *Scheduler) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

// Jobs lists registered jobs with their next fire time
func (s *Scheduler) Jobs() []JobInfo {
	infos := make([]JobInfo, 0, len(s.entries))
	for name, id := range s.entries {
		entry := s.cron.Entry(id)
		infos = append(infos, JobInfo{Name: name, Spec: s.specs[name], Next: entry.Next, Prev: entry.Prev})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RunNow executes a job immediately. An empty workspaceID runs the job for
// every workspace.
func (s *Scheduler) RunNow(ctx context.Context, job JobName, workspaceID string) error {
	logger := s.logger.With().Str("job", string(job)).Str("workspaceId", workspaceID).Logger()
	start := time.Now()

	switch job {
	case JobConnectorSync:
		var (
			summaries []RunSummary
			err       error
		)
		if workspaceID == "" {
			summaries, err = s.runner.SyncAllConnectors(ctx)
		} else {
			summaries, err = s.runner.SyncWorkspaceConnectors(ctx, workspaceID)
		}
		if err != nil {
			return fmt.Errorf("failed to run connector sync: %w", err)
		}
		logger.Info().Int("connectors", len(summaries)).Dur("duration", time.Since(start)).Msg("Connector sync job finished")
		return nil

	case JobAnomalyDetection:
		return s.emit(ctx, logger, domain.EventAnomalyDetectionRun, workspaceID)

	case JobWeeklyReport:
		return s.emit(ctx, logger, domain.EventReportGenerationRun, workspaceID)
	}

	return fmt.Errorf("unknown job %q", job)
}

// emit hands a job to its external consumer
func (s *Scheduler) emit(ctx context.Context, logger zerolog.Logger, eventType domain.PipelineEventType, workspaceID string) error {
	if s.publisher == nil {
		return fmt.Errorf("no event publisher configured for %s", eventType)
	}
	event := domain.PipelineEvent{
		Type:        eventType,
		WorkspaceID: workspaceID,
		Data:        map[string]any{"trigger": domain.GetTriggerFromContext(ctx)},
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	logger.Info().Str("eventType", string(eventType)).Msg("Job trigger published")
	return nil
}

// cronLogAdapter routes cron's internal logging to zerolog
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
