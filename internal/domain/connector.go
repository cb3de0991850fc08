package domain

import (
	"fmt"
	"time"
)

// ConnectorType identifies an external data provider
type ConnectorType string

const (
	ConnectorShopify    ConnectorType = "shopify"
	ConnectorStripe     ConnectorType = "stripe"
	ConnectorMetaAds    ConnectorType = "meta_ads"
	ConnectorGA4        ConnectorType = "ga4"
	ConnectorTiendanube ConnectorType = "tiendanube"
)

// ConnectorTypes lists every supported provider in a stable order
var ConnectorTypes = []ConnectorType{
	ConnectorShopify,
	ConnectorStripe,
	ConnectorMetaAds,
	ConnectorGA4,
	ConnectorTiendanube,
}

// ParseConnectorType validates a provider name coming from a URL or CLI argument
func ParseConnectorType(s string) (ConnectorType, error) {
	for _, t := range ConnectorTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// ConnectorStatus is the health state shown to the user
type ConnectorStatus string

const (
	ConnectorStatusPending      ConnectorStatus = "pending"
	ConnectorStatusConnected    ConnectorStatus = "connected"
	ConnectorStatusActive       ConnectorStatus = "active"
	ConnectorStatusError        ConnectorStatus = "error"
	ConnectorStatusDisconnected ConnectorStatus = "disconnected"
)

// Last sync outcomes stored on the connector
const (
	LastSyncCompleted = "completed"
	LastSyncPartial   = "partial"
	LastSyncFailed    = "failed"
)

// Connector is a workspace's credentialed link to one external provider
type Connector struct {
	ID             string            `json:"id"`
	WorkspaceID    string            `json:"workspace_id"`
	Type           ConnectorType     `json:"type"`
	Credentials    Credentials       `json:"-"`
	Settings       map[string]string `json:"settings,omitempty"`
	Status         ConnectorStatus   `json:"status"`
	IsEnabled      bool              `json:"is_enabled"`
	AccountRef     string            `json:"account_ref,omitempty"` // provider-side account key used to route webhooks
	LastSyncAt     *time.Time        `json:"last_sync_at,omitempty"`
	LastSyncStatus string            `json:"last_sync_status,omitempty"`
	LastSyncError  string            `json:"last_sync_error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Setting returns a connector setting or the fallback when unset
func (c *Connector) Setting(key, fallback string) string {
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Syncable reports whether the runner may start a sync for this connector
func (c *Connector) Syncable() bool {
	return c.IsEnabled && c.Status != ConnectorStatusDisconnected && c.Credentials != nil
}

// SyncOutcome captures what the runner writes back after a sync attempt
type SyncOutcome struct {
	StartedAt time.Time
	Status    string
	Error     string
}

// ApplySyncOutcome records the result of a sync run on the connector.
// Only a completed run moves LastSyncAt. Failed and partial runs keep the
// previous anchor so the next incremental window covers the stages that did
// not finish.
func (c *Connector) ApplySyncOutcome(outcome SyncOutcome, now time.Time) {
	c.LastSyncStatus = outcome.Status
	c.LastSyncError = outcome.Error
	c.UpdatedAt = now

	switch outcome.Status {
	case LastSyncCompleted:
		started := outcome.StartedAt
		c.LastSyncAt = &started
		c.Status = ConnectorStatusActive
	case LastSyncPartial:
		c.Status = ConnectorStatusActive
	case LastSyncFailed:
		c.Status = ConnectorStatusError
	}
}

// SyncState is the part of a connector a sync run writes back
type SyncState struct {
	LastSyncAt     *time.Time
	LastSyncStatus string
	LastSyncError  string
	Status         ConnectorStatus
	UpdatedAt      time.Time
}

// SyncState returns the run-owned fields of the connector
func (c *Connector) SyncState() SyncState {
	return SyncState{
		LastSyncAt:     c.LastSyncAt,
		LastSyncStatus: c.LastSyncStatus,
		LastSyncError:  c.LastSyncError,
		Status:         c.Status,
		UpdatedAt:      c.UpdatedAt,
	}
}

// ApplySyncState merges a recorded sync state. A disconnected connector
// keeps its status.
func (c *Connector) ApplySyncState(state SyncState) {
	if state.LastSyncAt != nil {
		at := *state.LastSyncAt
		c.LastSyncAt = &at
	}
	c.LastSyncStatus = state.LastSyncStatus
	c.LastSyncError = state.LastSyncError
	c.UpdatedAt = state.UpdatedAt
	if c.Status != ConnectorStatusDisconnected {
		c.Status = state.Status
	}
}
