package stripe

import (
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"

	"github.com/shopspring/decimal"
)

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func optionalUnix(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	return unixTime(*sec)
}

// TransformCustomer maps a Stripe customer
func TransformCustomer(c Customer, workspaceID string) *domain.SaasCustomer {
	return &domain.SaasCustomer{
		EntityBase: domain.NewEntityBase(workspaceID, domain.ConnectorStripe, c.ID, unixTime(c.Created)),
		Email:      strings.TrimSpace(c.Email),
		Name:       c.Name,
		Currency:   strings.ToUpper(c.Currency),
		Delinquent: c.Delinquent,
	}
}

// priceAmount converts the price's minor units exactly. unit_amount_decimal
// carries sub-minor precision for metered prices and wins when present.
func priceAmount(p Price) domain.Amount {
	exp := domain.CurrencyExponent(p.Currency)
	if p.UnitAmountDecimal != "" {
		if d, err := decimal.NewFromString(p.UnitAmountDecimal); err == nil {
			return domain.AmountFromDecimal(d.Shift(-exp))
		}
	}
	if p.UnitAmount != nil {
		return domain.AmountFromMinorUnits(*p.UnitAmount, p.Currency)
	}
	return ""
}

// TransformPrice maps a Stripe price into a plan
func TransformPrice(p Price, workspaceID string) *domain.SaasPlan {
	plan := &domain.SaasPlan{
		EntityBase:        domain.NewEntityBase(workspaceID, domain.ConnectorStripe, p.ID, unixTime(p.Created)),
		Name:              p.Nickname,
		ProductExternalID: string(p.Product),
		Amount:            priceAmount(p),
		Currency:          strings.ToUpper(p.Currency),
		Active:            p.Active,
	}
	if p.Recurring != nil {
		plan.Interval = p.Recurring.Interval
		plan.IntervalCount = p.Recurring.IntervalCount
	}
	return plan
}

// monthly factors per recurring interval
var monthsPerInterval = map[string]decimal.Decimal{
	"day":   decimal.NewFromInt(12).Div(decimal.NewFromInt(365)),
	"week":  decimal.NewFromInt(12).Div(decimal.NewFromInt(52)),
	"month": decimal.NewFromInt(1),
	"year":  decimal.NewFromInt(12),
}

// monthlyRecurring normalizes one item's recurring charge to a month, in major units
func monthlyRecurring(item SubscriptionItem) (decimal.Decimal, bool) {
	p := item.Price
	if p.Recurring == nil {
		return decimal.Zero, false
	}
	amount, ok := priceAmount(p).Decimal()
	if !ok {
		return decimal.Zero, false
	}
	months, ok := monthsPerInterval[p.Recurring.Interval]
	if !ok {
		return decimal.Zero, false
	}
	count := p.Recurring.IntervalCount
	if count < 1 {
		count = 1
	}
	qty := item.Quantity
	if qty < 1 {
		qty = 1
	}
	return amount.Mul(decimal.NewFromInt(int64(qty))).Div(months.Mul(decimal.NewFromInt(int64(count)))), true
}

// TransformSubscription maps a Stripe subscription. MRR sums the items'
// charges normalized to a month and is zero once the subscription ended.
func TransformSubscription(s Subscription, workspaceID string) *domain.SaasSubscription {
	sub := &domain.SaasSubscription{
		EntityBase:         domain.NewEntityBase(workspaceID, domain.ConnectorStripe, s.ID, unixTime(s.Created)),
		CustomerExternalID: string(s.Customer),
		Status:             s.Status,
		Currency:           strings.ToUpper(s.Currency),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CanceledAt:         optionalUnix(s.CanceledAt),
		EndedAt:            optionalUnix(s.EndedAt),
	}

	total := decimal.Zero
	priced := false
	for i, item := range s.Items.Data {
		if i == 0 {
			sub.PlanExternalID = item.Price.ID
		}
		sub.Quantity += item.Quantity
		if sub.Currency == "" {
			sub.Currency = strings.ToUpper(item.Price.Currency)
		}
		if m, ok := monthlyRecurring(item); ok {
			total = total.Add(m)
			priced = true
		}
	}

	if priced {
		if s.Status == "canceled" || s.Status == "incomplete_expired" {
			total = decimal.Zero
		}
		exp := domain.CurrencyExponent(sub.Currency)
		sub.MRR = domain.Amount(total.Round(exp).StringFixed(exp))
	}
	return sub
}

// TransformInvoice maps a Stripe invoice
func TransformInvoice(inv Invoice, workspaceID string) *domain.SaasInvoice {
	return &domain.SaasInvoice{
		EntityBase:             domain.NewEntityBase(workspaceID, domain.ConnectorStripe, inv.ID, unixTime(inv.Created)),
		CustomerExternalID:     string(inv.Customer),
		SubscriptionExternalID: string(inv.Subscription),
		Number:                 inv.Number,
		Status:                 inv.Status,
		Currency:               strings.ToUpper(inv.Currency),
		AmountDue:              domain.AmountFromMinorUnits(inv.AmountDue, inv.Currency),
		AmountPaid:             domain.AmountFromMinorUnits(inv.AmountPaid, inv.Currency),
		Total:                  domain.AmountFromMinorUnits(inv.Total, inv.Currency),
		PaidAt:                 optionalUnix(inv.StatusTransitions.PaidAt),
		PeriodStart:            unixTime(inv.PeriodStart),
		PeriodEnd:              unixTime(inv.PeriodEnd),
	}
}
