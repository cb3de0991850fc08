package domain

import "time"

// SaasCustomer is a billing customer (Stripe)
type SaasCustomer struct {
	EntityBase `bson:",inline"`
	Email      string `json:"email,omitempty" bson:"email,omitempty"`
	Name       string `json:"name,omitempty" bson:"name,omitempty"`
	Currency   string `json:"currency,omitempty" bson:"currency,omitempty"`
	Delinquent bool   `json:"delinquent" bson:"delinquent"`
}

func (*SaasCustomer) Kind() EntityKind { return KindSaasCustomer }

// SaasPlan is a recurring price
type SaasPlan struct {
	EntityBase        `bson:",inline"`
	Name              string `json:"name,omitempty" bson:"name,omitempty"`
	ProductExternalID string `json:"product_external_id,omitempty" bson:"productExternalId,omitempty"`
	Amount            Amount `json:"amount,omitempty" bson:"amount,omitempty"`
	Currency          string `json:"currency,omitempty" bson:"currency,omitempty"`
	Interval          string `json:"interval,omitempty" bson:"interval,omitempty"`
	IntervalCount     int    `json:"interval_count" bson:"intervalCount"`
	Active            bool   `json:"active" bson:"active"`
}

func (*SaasPlan) Kind() EntityKind { return KindSaasPlan }

// SaasSubscription is a customer's subscription to one or more plans
type SaasSubscription struct {
	EntityBase         `bson:",inline"`
	CustomerExternalID string     `json:"customer_external_id,omitempty" bson:"customerExternalId,omitempty"`
	PlanExternalID     string     `json:"plan_external_id,omitempty" bson:"planExternalId,omitempty"`
	Status             string     `json:"status" bson:"status"`
	Quantity           int        `json:"quantity" bson:"quantity"`
	MRR                Amount     `json:"mrr,omitempty" bson:"mrr,omitempty"`
	Currency           string     `json:"currency,omitempty" bson:"currency,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty" bson:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty" bson:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end" bson:"cancelAtPeriodEnd"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty" bson:"canceledAt,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty" bson:"endedAt,omitempty"`
}

func (*SaasSubscription) Kind() EntityKind { return KindSaasSubscription }

// SaasInvoice is a billing invoice
type SaasInvoice struct {
	EntityBase             `bson:",inline"`
	CustomerExternalID     string     `json:"customer_external_id,omitempty" bson:"customerExternalId,omitempty"`
	SubscriptionExternalID string     `json:"subscription_external_id,omitempty" bson:"subscriptionExternalId,omitempty"`
	Number                 string     `json:"number,omitempty" bson:"number,omitempty"`
	Status                 string     `json:"status,omitempty" bson:"status,omitempty"`
	Currency               string     `json:"currency,omitempty" bson:"currency,omitempty"`
	AmountDue              Amount     `json:"amount_due,omitempty" bson:"amountDue,omitempty"`
	AmountPaid             Amount     `json:"amount_paid,omitempty" bson:"amountPaid,omitempty"`
	Total                  Amount     `json:"total,omitempty" bson:"total,omitempty"`
	PaidAt                 *time.Time `json:"paid_at,omitempty" bson:"paidAt,omitempty"`
	PeriodStart            *time.Time `json:"period_start,omitempty" bson:"periodStart,omitempty"`
	PeriodEnd              *time.Time `json:"period_end,omitempty" bson:"periodEnd,omitempty"`
}

func (*SaasInvoice) Kind() EntityKind { return KindSaasInvoice }
