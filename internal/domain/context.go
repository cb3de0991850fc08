package domain

import "context"

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	workspaceIDKey contextKey = "workspace_id"
	triggerKey     contextKey = "sync_trigger"
)

// Sync triggers recorded on logs and metrics
const (
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
	TriggerQueue    = "queue"
)

// WithWorkspaceID stores the workspace scope of a request
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceIDKey, workspaceID)
}

// GetWorkspaceIDFromContext returns the workspace scope or ""
func GetWorkspaceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(workspaceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTrigger records what started a sync
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey, trigger)
}

// GetTriggerFromContext returns the sync trigger, defaulting to api
func GetTriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(triggerKey).(string); ok && v != "" {
		return v
	}
	return TriggerAPI
}
