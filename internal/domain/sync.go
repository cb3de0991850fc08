package domain

import (
	"fmt"
	"strings"
	"time"
)

// SyncType distinguishes fetch-everything runs from since-last-timestamp runs
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
)

// SyncStatus is the lifecycle state of a SyncLog
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncError describes one failure inside a sync run. Type names the stage.
type SyncError struct {
	Type    string `json:"type" bson:"type"`
	Message string `json:"message" bson:"message"`
}

// SyncResult is what an orchestrator returns for one run
type SyncResult struct {
	Success          bool           `json:"success"`
	RecordsProcessed map[string]int `json:"records_processed"`
	Errors           []SyncError    `json:"errors,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      time.Time      `json:"completed_at"`
}

// TotalRecords sums the per-entity counts
func (r *SyncResult) TotalRecords() int {
	total := 0
	for _, n := range r.RecordsProcessed {
		total += n
	}
	return total
}

// ErrorSummary joins stage errors into one line for Connector.LastSyncError
func (r *SyncResult) ErrorSummary() string {
	if len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Type+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

// SyncLog is the audit record of one sync attempt
type SyncLog struct {
	ID               string         `json:"id"`
	ConnectorID      string         `json:"connector_id"`
	WorkspaceID      string         `json:"workspace_id"`
	Provider         ConnectorType  `json:"provider"`
	Status           SyncStatus     `json:"status"`
	SyncType         SyncType       `json:"sync_type"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	RecordsProcessed map[string]int `json:"records_processed,omitempty"`
	Errors           []SyncError    `json:"errors,omitempty"`
}

// NewSyncLog creates a log in the running state
func NewSyncLog(id string, conn *Connector, syncType SyncType, startedAt time.Time) *SyncLog {
	return &SyncLog{
		ID:          id,
		ConnectorID: conn.ID,
		WorkspaceID: conn.WorkspaceID,
		Provider:    conn.Type,
		Status:      SyncStatusRunning,
		SyncType:    syncType,
		StartedAt:   startedAt,
	}
}

// Complete moves a running log to completed
func (l *SyncLog) Complete(result *SyncResult, at time.Time) error {
	if l.Status != SyncStatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, SyncStatusCompleted)
	}
	l.Status = SyncStatusCompleted
	l.CompletedAt = &at
	l.RecordsProcessed = result.RecordsProcessed
	l.Errors = result.Errors
	return nil
}

// Fail moves a running log to failed. Partial counts are kept when known.
func (l *SyncLog) Fail(cause error, result *SyncResult, at time.Time) error {
	if l.Status != SyncStatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, SyncStatusFailed)
	}
	l.Status = SyncStatusFailed
	l.CompletedAt = &at
	if result != nil {
		l.RecordsProcessed = result.RecordsProcessed
		l.Errors = append(l.Errors, result.Errors...)
	}
	l.Errors = append(l.Errors, SyncError{Type: "run", Message: cause.Error()})
	return nil
}

// IsTerminal reports whether the log reached completed or failed
func (l *SyncLog) IsTerminal() bool {
	return l.Status == SyncStatusCompleted || l.Status == SyncStatusFailed
}
