package metaads

import (
	"strconv"
	"time"
)

// timeLayout is the Graph API timestamp format, e.g. 2026-03-01T10:00:00+0000
const timeLayout = "2006-01-02T15:04:05-0700"

type Cursors struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type Paging struct {
	Cursors Cursors `json:"cursors"`
	Next    string  `json:"next"`
}

// Edge is the envelope of every Graph API collection
type Edge[T any] struct {
	Data   []T     `json:"data"`
	Paging *Paging `json:"paging"`
}

type AdAccount struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	TimezoneName  string `json:"timezone_name"`
	AccountStatus int    `json:"account_status"`
	AmountSpent   string `json:"amount_spent"`
	CreatedTime   string `json:"created_time"`
}

type Campaign struct {
	ID              string `json:"id"`
	AccountID       string `json:"account_id"`
	Name            string `json:"name"`
	Objective       string `json:"objective"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	DailyBudget     string `json:"daily_budget"`
	LifetimeBudget  string `json:"lifetime_budget"`
	StartTime       string `json:"start_time"`
	StopTime        string `json:"stop_time"`
	CreatedTime     string `json:"created_time"`
	UpdatedTime     string `json:"updated_time"`
}

type AdSet struct {
	ID               string `json:"id"`
	AccountID        string `json:"account_id"`
	CampaignID       string `json:"campaign_id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	EffectiveStatus  string `json:"effective_status"`
	OptimizationGoal string `json:"optimization_goal"`
	BillingEvent     string `json:"billing_event"`
	DailyBudget      string `json:"daily_budget"`
	CreatedTime      string `json:"created_time"`
	UpdatedTime      string `json:"updated_time"`
}

type Creative struct {
	ID string `json:"id"`
}

type Ad struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	CampaignID      string    `json:"campaign_id"`
	AdsetID         string    `json:"adset_id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	EffectiveStatus string    `json:"effective_status"`
	Creative        *Creative `json:"creative"`
	CreatedTime     string    `json:"created_time"`
	UpdatedTime     string    `json:"updated_time"`
}

type Action struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// Insight is one row of the insights edge at ad level with a daily increment.
// Metrics arrive as strings.
type Insight struct {
	AccountID       string   `json:"account_id"`
	AccountCurrency string   `json:"account_currency"`
	CampaignID      string   `json:"campaign_id"`
	AdsetID         string   `json:"adset_id"`
	AdID            string   `json:"ad_id"`
	DateStart       string   `json:"date_start"`
	DateStop        string   `json:"date_stop"`
	Impressions     string   `json:"impressions"`
	Clicks          string   `json:"clicks"`
	Reach           string   `json:"reach"`
	Spend           string   `json:"spend"`
	Actions         []Action `json:"actions"`
}

// ChangeValue describes the object referenced by an ad_account webhook change
type ChangeValue struct {
	ID    string `json:"id"`
	Level string `json:"level"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []Change `json:"changes"`
}

// Notification is a webhook delivery
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
