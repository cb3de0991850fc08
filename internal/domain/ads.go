package domain

import "time"

// AdAccount is the advertiser account every ad object is attributed to
type AdAccount struct {
	EntityBase    `bson:",inline"`
	Name          string `json:"name" bson:"name"`
	Currency      string `json:"currency,omitempty" bson:"currency,omitempty"`
	Timezone      string `json:"timezone,omitempty" bson:"timezone,omitempty"`
	AccountStatus int    `json:"account_status" bson:"accountStatus"`
	AmountSpent   Amount `json:"amount_spent,omitempty" bson:"amountSpent,omitempty"`
}

func (*AdAccount) Kind() EntityKind { return KindAdAccount }

// AdCampaign is a campaign inside an ad account
type AdCampaign struct {
	EntityBase        `bson:",inline"`
	AccountExternalID string     `json:"account_external_id" bson:"accountExternalId"`
	Name              string     `json:"name" bson:"name"`
	Objective         string     `json:"objective,omitempty" bson:"objective,omitempty"`
	Status            string     `json:"status,omitempty" bson:"status,omitempty"`
	EffectiveStatus   string     `json:"effective_status,omitempty" bson:"effectiveStatus,omitempty"`
	DailyBudget       Amount     `json:"daily_budget,omitempty" bson:"dailyBudget,omitempty"`
	LifetimeBudget    Amount     `json:"lifetime_budget,omitempty" bson:"lifetimeBudget,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty" bson:"startTime,omitempty"`
	StopTime          *time.Time `json:"stop_time,omitempty" bson:"stopTime,omitempty"`
}

func (*AdCampaign) Kind() EntityKind { return KindAdCampaign }

// AdSet is a targeting/budget group inside a campaign
type AdSet struct {
	EntityBase         `bson:",inline"`
	AccountExternalID  string `json:"account_external_id" bson:"accountExternalId"`
	CampaignExternalID string `json:"campaign_external_id" bson:"campaignExternalId"`
	Name               string `json:"name" bson:"name"`
	Status             string `json:"status,omitempty" bson:"status,omitempty"`
	EffectiveStatus    string `json:"effective_status,omitempty" bson:"effectiveStatus,omitempty"`
	OptimizationGoal   string `json:"optimization_goal,omitempty" bson:"optimizationGoal,omitempty"`
	BillingEvent       string `json:"billing_event,omitempty" bson:"billingEvent,omitempty"`
	DailyBudget        Amount `json:"daily_budget,omitempty" bson:"dailyBudget,omitempty"`
}

func (*AdSet) Kind() EntityKind { return KindAdSet }

// Ad is a single creative placement
type Ad struct {
	EntityBase         `bson:",inline"`
	AccountExternalID  string `json:"account_external_id" bson:"accountExternalId"`
	CampaignExternalID string `json:"campaign_external_id" bson:"campaignExternalId"`
	AdSetExternalID    string `json:"ad_set_external_id" bson:"adSetExternalId"`
	Name               string `json:"name" bson:"name"`
	Status             string `json:"status,omitempty" bson:"status,omitempty"`
	EffectiveStatus    string `json:"effective_status,omitempty" bson:"effectiveStatus,omitempty"`
	CreativeExternalID string `json:"creative_external_id,omitempty" bson:"creativeExternalId,omitempty"`
}

func (*Ad) Kind() EntityKind { return KindAd }

// AdInsight is one day of performance for one ad. ExternalID is "<adId>:<date>".
type AdInsight struct {
	EntityBase         `bson:",inline"`
	AccountExternalID  string `json:"account_external_id" bson:"accountExternalId"`
	CampaignExternalID string `json:"campaign_external_id,omitempty" bson:"campaignExternalId,omitempty"`
	AdSetExternalID    string `json:"ad_set_external_id,omitempty" bson:"adSetExternalId,omitempty"`
	AdExternalID       string `json:"ad_external_id" bson:"adExternalId"`
	Date               string `json:"date" bson:"date"`
	Impressions        int64  `json:"impressions" bson:"impressions"`
	Clicks             int64  `json:"clicks" bson:"clicks"`
	Reach              int64  `json:"reach" bson:"reach"`
	Spend              Amount `json:"spend,omitempty" bson:"spend,omitempty"`
	Currency           string `json:"currency,omitempty" bson:"currency,omitempty"`
	Conversions        int64  `json:"conversions" bson:"conversions"`
}

func (*AdInsight) Kind() EntityKind { return KindAdInsight }
