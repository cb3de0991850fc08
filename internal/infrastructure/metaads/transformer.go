package metaads

import (
	"strconv"
	"strings"

	"aibos-connector-sync/internal/domain"

	"github.com/shopspring/decimal"
)

// action types counted as conversions
var conversionActions = map[string]bool{
	"purchase":              true,
	"lead":                  true,
	"complete_registration": true,
}

// budget converts a minor-unit budget string in the account currency
func budget(raw, currency string) domain.Amount {
	if raw == "" {
		return ""
	}
	units, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ""
	}
	return domain.AmountFromMinorUnits(units, currency)
}

// TransformAdAccount maps the ad account. ExternalID drops the act_ prefix.
func TransformAdAccount(a AdAccount, workspaceID string) *domain.AdAccount {
	id := a.AccountID
	if id == "" {
		id = strings.TrimPrefix(a.ID, "act_")
	}
	return &domain.AdAccount{
		EntityBase:    domain.NewEntityBase(workspaceID, domain.ConnectorMetaAds, id, parseTime(a.CreatedTime)),
		Name:          a.Name,
		Currency:      a.Currency,
		Timezone:      a.TimezoneName,
		AccountStatus: a.AccountStatus,
		AmountSpent:   budget(a.AmountSpent, a.Currency),
	}
}

// TransformCampaign maps a campaign; budgets are in the account currency
func TransformCampaign(c Campaign, workspaceID, currency string) *domain.AdCampaign {
	return &domain.AdCampaign{
		EntityBase:        domain.NewEntityBase(workspaceID, domain.ConnectorMetaAds, c.ID, parseTime(c.CreatedTime)),
		AccountExternalID: c.AccountID,
		Name:              c.Name,
		Objective:         c.Objective,
		Status:            c.Status,
		EffectiveStatus:   c.EffectiveStatus,
		DailyBudget:       budget(c.DailyBudget, currency),
		LifetimeBudget:    budget(c.LifetimeBudget, currency),
		StartTime:         parseTime(c.StartTime),
		StopTime:          parseTime(c.StopTime),
	}
}

// TransformAdSet maps an ad set
func TransformAdSet(s AdSet, workspaceID, currency string) *domain.AdSet {
	return &domain.AdSet{
		EntityBase:         domain.NewEntityBase(workspaceID, domain.ConnectorMetaAds, s.ID, parseTime(s.CreatedTime)),
		AccountExternalID:  s.AccountID,
		CampaignExternalID: s.CampaignID,
		Name:               s.Name,
		Status:             s.Status,
		EffectiveStatus:    s.EffectiveStatus,
		OptimizationGoal:   s.OptimizationGoal,
		BillingEvent:       s.BillingEvent,
		DailyBudget:        budget(s.DailyBudget, currency),
	}
}

// TransformAd maps an ad
func TransformAd(a Ad, workspaceID string) *domain.Ad {
	ad := &domain.Ad{
		EntityBase:         domain.NewEntityBase(workspaceID, domain.ConnectorMetaAds, a.ID, parseTime(a.CreatedTime)),
		AccountExternalID:  a.AccountID,
		CampaignExternalID: a.CampaignID,
		AdSetExternalID:    a.AdsetID,
		Name:               a.Name,
		Status:             a.Status,
		EffectiveStatus:    a.EffectiveStatus,
	}
	if a.Creative != nil {
		ad.CreativeExternalID = a.Creative.ID
	}
	return ad
}

// InsightExternalID keys one ad's day
func InsightExternalID(adID, date string) string {
	return adID + ":" + date
}

// TransformInsight maps one daily insight row. Spend is rounded half away
// from zero to 2 places.
func TransformInsight(in Insight, workspaceID string) *domain.AdInsight {
	conversions := decimal.Zero
	for _, a := range in.Actions {
		if !conversionActions[a.ActionType] {
			continue
		}
		if v, err := decimal.NewFromString(a.Value); err == nil {
			conversions = conversions.Add(v)
		}
	}

	return &domain.AdInsight{
		EntityBase:         domain.NewEntityBase(workspaceID, domain.ConnectorMetaAds, InsightExternalID(in.AdID, in.DateStart), nil),
		AccountExternalID:  in.AccountID,
		CampaignExternalID: in.CampaignID,
		AdSetExternalID:    in.AdsetID,
		AdExternalID:       in.AdID,
		Date:               in.DateStart,
		Impressions:        parseCount(in.Impressions),
		Clicks:             parseCount(in.Clicks),
		Reach:              parseCount(in.Reach),
		Spend:              domain.RoundedAmount(in.Spend, 2),
		Currency:           in.AccountCurrency,
		Conversions:        conversions.Round(0).IntPart(),
	}
}
