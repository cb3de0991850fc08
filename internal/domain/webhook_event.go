package domain

import (
	"encoding/json"
	"time"
)

// WebhookStatus is the processing state of a webhook delivery record
type WebhookStatus string

const (
	WebhookStatusReceived   WebhookStatus = "received"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusProcessed  WebhookStatus = "processed"
	WebhookStatusFailed     WebhookStatus = "failed"
	WebhookStatusIgnored    WebhookStatus = "ignored"
	// WebhookStatusExhausted is terminal: processing failed at the attempt ceiling
	WebhookStatusExhausted WebhookStatus = "exhausted"
)

// WebhookEvent is the processing record of one provider event, keyed by (provider, eventId)
type WebhookEvent struct {
	ID          string        `json:"id"`
	Provider    ConnectorType `json:"provider"`
	EventID     string        `json:"event_id"`
	EventType   string        `json:"event_type"`
	ConnectorID string        `json:"connector_id,omitempty"`
	WorkspaceID string        `json:"workspace_id,omitempty"`
	Status      WebhookStatus `json:"status"`
	ReceivedAt  time.Time     `json:"received_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	Attempts    int           `json:"attempts"`
	LastError   string        `json:"last_error,omitempty"`
}

// IsTerminal reports whether no further processing attempts will be made
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookStatusProcessed ||
		e.Status == WebhookStatusIgnored ||
		e.Status == WebhookStatusExhausted
}

// InboundWebhook is a verified, parsed webhook envelope
type InboundWebhook struct {
	Provider   ConnectorType
	EventID    string
	EventType  string
	AccountRef string
	OccurredAt *time.Time
	Payload    json.RawMessage
}

// WebhookActionKind selects how a routed webhook mutates the normalized store
type WebhookActionKind string

const (
	WebhookActionUpsert WebhookActionKind = "upsert"
	WebhookActionDelete WebhookActionKind = "delete"
)

// WebhookAction is one store mutation produced by a webhook handler
type WebhookAction struct {
	Kind     WebhookActionKind
	Entity   NormalizedEntity // set for upserts
	Target   EntityKind       // set for deletes
	Identity Identity         // set for deletes
}

// UpsertAction wraps a transformed entity
func UpsertAction(e NormalizedEntity) WebhookAction {
	return WebhookAction{Kind: WebhookActionUpsert, Entity: e}
}

// DeleteAction targets the record with the given identity
func DeleteAction(kind EntityKind, id Identity) WebhookAction {
	return WebhookAction{Kind: WebhookActionDelete, Target: kind, Identity: id}
}
