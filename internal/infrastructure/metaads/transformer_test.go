package metaads

import (
	"testing"

	"aibos-connector-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformInsight(t *testing.T) {
	in := TransformInsight(Insight{
		AccountID: "123", AccountCurrency: "USD", CampaignID: "c1", AdsetID: "s1", AdID: "a1",
		DateStart: "2026-03-02", DateStop: "2026-03-02",
		Impressions: "1200", Clicks: "34", Reach: "900", Spend: "10.005",
		Actions: []Action{
			{ActionType: "purchase", Value: "3"},
			{ActionType: "lead", Value: "2"},
			{ActionType: "link_click", Value: "30"},
		},
	}, "w1")

	assert.Equal(t, "a1:2026-03-02", in.ExternalID)
	assert.Equal(t, domain.Amount("10.01"), in.Spend)
	assert.Equal(t, int64(1200), in.Impressions)
	assert.Equal(t, int64(34), in.Clicks)
	assert.Equal(t, int64(5), in.Conversions)
	assert.Equal(t, "2026-03-02", in.Date)
	assert.Nil(t, in.SourceCreatedAt)
}

func TestTransformInsightToleratesBadNumbers(t *testing.T) {
	in := TransformInsight(Insight{AdID: "a1", DateStart: "2026-03-02", Impressions: "n/a", Spend: "abc"}, "w1")
	assert.Equal(t, int64(0), in.Impressions)
	assert.Equal(t, domain.Amount(""), in.Spend)
}

func TestTransformCampaign(t *testing.T) {
	c := TransformCampaign(Campaign{
		ID: "238", AccountID: "123", Name: "Spring", Objective: "OUTCOME_SALES",
		DailyBudget: "2500", StartTime: "2026-03-01T10:00:00+0000", CreatedTime: "2026-02-27T08:30:00-0300",
	}, "w1", "USD")
	assert.Equal(t, domain.Amount("25.00"), c.DailyBudget)
	assert.Equal(t, domain.Amount(""), c.LifetimeBudget)
	require.NotNil(t, c.StartTime)
	assert.Equal(t, 10, c.StartTime.Hour())
	require.NotNil(t, c.SourceCreatedAt)
	assert.Equal(t, 11, c.SourceCreatedAt.Hour())

	jpy := TransformCampaign(Campaign{ID: "239", DailyBudget: "5000"}, "w1", "JPY")
	assert.Equal(t, domain.Amount("5000"), jpy.DailyBudget)
}

func TestTransformAdAccountStripsPrefix(t *testing.T) {
	a := TransformAdAccount(AdAccount{ID: "act_123", Name: "Acme", Currency: "USD", AmountSpent: "99"}, "w1")
	assert.Equal(t, "123", a.ExternalID)
	assert.Equal(t, domain.Amount("0.99"), a.AmountSpent)
}

func TestTransformAd(t *testing.T) {
	a := TransformAd(Ad{ID: "a1", AdsetID: "s1", CampaignID: "c1", Creative: &Creative{ID: "cr1"}}, "w1")
	assert.Equal(t, "s1", a.AdSetExternalID)
	assert.Equal(t, "cr1", a.CreativeExternalID)
}
