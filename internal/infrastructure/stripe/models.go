package stripe

import (
	"bytes"
	"encoding/json"
)

// ExpandableID is a Stripe reference that arrives either as an id string or
// as the expanded object
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

// List is the envelope of every Stripe list endpoint
type List[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

type Customer struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Currency   string `json:"currency"`
	Delinquent bool   `json:"delinquent"`
	Deleted    bool   `json:"deleted"`
	Created    int64  `json:"created"`
}

type Recurring struct {
	Interval      string `json:"interval"`
	IntervalCount int    `json:"interval_count"`
}

type Price struct {
	ID                string       `json:"id"`
	Nickname          string       `json:"nickname"`
	Product           ExpandableID `json:"product"`
	UnitAmount        *int64       `json:"unit_amount"`
	UnitAmountDecimal string       `json:"unit_amount_decimal"`
	Currency          string       `json:"currency"`
	Recurring         *Recurring   `json:"recurring"`
	Active            bool         `json:"active"`
	Created           int64        `json:"created"`
}

type SubscriptionItem struct {
	ID       string `json:"id"`
	Price    Price  `json:"price"`
	Quantity int    `json:"quantity"`
}

type Subscription struct {
	ID                 string                 `json:"id"`
	Customer           ExpandableID           `json:"customer"`
	Status             string                 `json:"status"`
	Currency           string                 `json:"currency"`
	Items              List[SubscriptionItem] `json:"items"`
	CurrentPeriodStart int64                  `json:"current_period_start"`
	CurrentPeriodEnd   int64                  `json:"current_period_end"`
	CancelAtPeriodEnd  bool                   `json:"cancel_at_period_end"`
	CanceledAt         *int64                 `json:"canceled_at"`
	EndedAt            *int64                 `json:"ended_at"`
	Created            int64                  `json:"created"`
}

type StatusTransitions struct {
	PaidAt *int64 `json:"paid_at"`
}

type Invoice struct {
	ID                string            `json:"id"`
	Customer          ExpandableID      `json:"customer"`
	Subscription      ExpandableID      `json:"subscription"`
	Number            string            `json:"number"`
	Status            string            `json:"status"`
	Currency          string            `json:"currency"`
	AmountDue         int64             `json:"amount_due"`
	AmountPaid        int64             `json:"amount_paid"`
	Total             int64             `json:"total"`
	StatusTransitions StatusTransitions `json:"status_transitions"`
	PeriodStart       int64             `json:"period_start"`
	PeriodEnd         int64             `json:"period_end"`
	Created           int64             `json:"created"`
}

// Event is a webhook delivery
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account string `json:"account"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}
