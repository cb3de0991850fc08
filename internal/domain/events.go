package domain

import "time"

// PipelineEventType names events emitted to downstream consumers
type PipelineEventType string

const (
	EventSyncStarted         PipelineEventType = "sync.started"
	EventSyncCompleted       PipelineEventType = "sync.completed"
	EventSyncFailed          PipelineEventType = "sync.failed"
	EventWebhookProcessed    PipelineEventType = "webhook.processed"
	EventConnectorStatus     PipelineEventType = "connector.status_changed"
	EventAnomalyDetectionRun PipelineEventType = "job.anomaly_detection.requested"
	EventReportGenerationRun PipelineEventType = "job.report_generation.requested"
)

// PipelineEvent is published to Kafka and to realtime subscribers.
// WorkspaceID is empty for global events.
type PipelineEvent struct {
	Type        PipelineEventType `json:"type"`
	WorkspaceID string            `json:"workspace_id,omitempty"`
	ConnectorID string            `json:"connector_id,omitempty"`
	Provider    ConnectorType     `json:"provider,omitempty"`
	Data        map[string]any    `json:"data,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// SyncRequest asks the runner to sync a connector, a workspace, or everything
type SyncRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	ConnectorID string `json:"connector_id,omitempty"`
}
