package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind names a normalized entity family. The value is also the
// collection / table name in the normalized store.
type EntityKind string

const (
	KindEcommerceCustomer EntityKind = "ecommerce_customers"
	KindEcommerceProduct  EntityKind = "ecommerce_products"
	KindEcommerceOrder    EntityKind = "ecommerce_orders"
	KindSaasCustomer      EntityKind = "saas_customers"
	KindSaasPlan          EntityKind = "saas_plans"
	KindSaasSubscription  EntityKind = "saas_subscriptions"
	KindSaasInvoice       EntityKind = "saas_invoices"
	KindAdAccount         EntityKind = "ad_accounts"
	KindAdCampaign        EntityKind = "ad_campaigns"
	KindAdSet             EntityKind = "ad_sets"
	KindAd                EntityKind = "ads"
	KindAdInsight         EntityKind = "ad_insights"
	KindAnalyticsDaily    EntityKind = "analytics_daily_metrics"
)

// EntityKinds lists every normalized family, used when preparing storage
var EntityKinds = []EntityKind{
	KindEcommerceCustomer,
	KindEcommerceProduct,
	KindEcommerceOrder,
	KindSaasCustomer,
	KindSaasPlan,
	KindSaasSubscription,
	KindSaasInvoice,
	KindAdAccount,
	KindAdCampaign,
	KindAdSet,
	KindAd,
	KindAdInsight,
	KindAnalyticsDaily,
}

// Identity is the idempotency key of every normalized write
type Identity struct {
	WorkspaceID string
	Source      ConnectorType
	ExternalID  string
}

// Validate rejects identities with empty components
func (i Identity) Validate() error {
	if strings.TrimSpace(i.WorkspaceID) == "" || i.Source == "" || strings.TrimSpace(i.ExternalID) == "" {
		return fmt.Errorf("%w: (%q, %q, %q)", ErrInvalidIdentity, i.WorkspaceID, i.Source, i.ExternalID)
	}
	return nil
}

func (i Identity) String() string {
	return i.WorkspaceID + "/" + string(i.Source) + "/" + i.ExternalID
}

// EntityBase holds the attributes shared by all normalized entities
type EntityBase struct {
	ID              string        `json:"id" bson:"_id"`
	WorkspaceID     string        `json:"workspace_id" bson:"workspaceId"`
	Source          ConnectorType `json:"source" bson:"source"`
	ExternalID      string        `json:"external_id" bson:"externalId"`
	SourceCreatedAt *time.Time    `json:"source_created_at,omitempty" bson:"sourceCreatedAt,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"createdAt"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updatedAt"`
}

// NewEntityBase builds the shared attributes for a transformer
func NewEntityBase(workspaceID string, source ConnectorType, externalID string, sourceCreatedAt *time.Time) EntityBase {
	return EntityBase{
		WorkspaceID:     workspaceID,
		Source:          source,
		ExternalID:      externalID,
		SourceCreatedAt: sourceCreatedAt,
	}
}

// Base gives access to the shared attributes
func (b *EntityBase) Base() *EntityBase { return b }

// Identity returns the (workspaceId, source, externalId) triple
func (b *EntityBase) Identity() Identity {
	return Identity{WorkspaceID: b.WorkspaceID, Source: b.Source, ExternalID: b.ExternalID}
}

// NormalizedEntity is implemented by every normalized entity type
type NormalizedEntity interface {
	Base() *EntityBase
	Kind() EntityKind
}

// UpsertResult reports the outcome of an identity-triple write
type UpsertResult struct {
	ID        string
	WasUpdate bool
}
