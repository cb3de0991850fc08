// Package metaads is the Meta Ads connector: Graph API client, transformers
// into the ad entities, sync stages and ad_account webhook handling.
package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/httpclient"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
)

// PageSize is the page size requested from Graph API edges
const PageSize = 100

// DefaultBaseURL is the versioned Graph API root
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

const (
	accountFields  = "id,account_id,name,currency,timezone_name,account_status,amount_spent,created_time"
	campaignFields = "id,account_id,name,objective,status,effective_status,daily_budget,lifetime_budget,start_time,stop_time,created_time,updated_time"
	adSetFields    = "id,account_id,campaign_id,name,status,effective_status,optimization_goal,billing_event,daily_budget,created_time,updated_time"
	adFields       = "id,account_id,campaign_id,adset_id,name,status,effective_status,creative{id},created_time,updated_time"
	insightFields  = "account_id,account_currency,campaign_id,adset_id,ad_id,impressions,clicks,reach,spend,actions"
)

// Graph API error codes that signal throttling even when the HTTP status is 400
var throttleCodes = map[int]bool{4: true, 17: true, 32: true, 613: true, 80004: true}

// ClientFactory builds per-account Graph API clients
type ClientFactory struct {
	http    *httpclient.Factory
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewClientFactory creates a Meta Ads client factory
func NewClientFactory(http *httpclient.Factory, baseURL string, logger zerolog.Logger) *ClientFactory {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ClientFactory{
		http:    http,
		baseURL: baseURL,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewClient creates a client for the credentials' ad account
func (f *ClientFactory) NewClient(creds domain.MetaAdsCredentials) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		api:     f.http.JSONClient(domain.ConnectorMetaAds, f.baseURL, nil).WithErrorClassifier(classifyThrottle),
		token:   creds.AccessToken,
		account: creds.AccountPath(),
		logger:  f.logger,
		now:     f.now,
	}, nil
}

// Client reads one ad account through the Graph API
type Client struct {
	api     *httpclient.Client
	token   string
	account string
	logger  zerolog.Logger
	now     func() time.Time
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", c.token)
	_, err := c.api.Get(ctx, path, query, out)
	return err
}

// classifyThrottle promotes Graph API throttling codes to 429 so they are retried
func classifyThrottle(pe *domain.ProviderError) {
	if pe.StatusCode == http.StatusTooManyRequests {
		return
	}
	var body struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(pe.Body), &body) == nil && throttleCodes[body.Error.Code] {
		pe.StatusCode = http.StatusTooManyRequests
	}
}

// TestConnection reads the ad account node. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	var acct AdAccount
	if err := c.get(ctx, c.account, url.Values{"fields": {"id,name"}}, &acct); err != nil {
		c.logger.Warn().Err(err).Msg("Meta Ads connection test failed")
		return false
	}
	return acct.ID != ""
}

// GetAdAccount reads the connector's ad account
func (c *Client) GetAdAccount(ctx context.Context) (*AdAccount, error) {
	var acct AdAccount
	if err := c.get(ctx, c.account, url.Values{"fields": {accountFields}}, &acct); err != nil {
		return nil, fmt.Errorf("failed to get ad account: %w", err)
	}
	return &acct, nil
}

// GetCampaign reads one campaign by id
func (c *Client) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	var v Campaign
	if err := c.get(ctx, id, url.Values{"fields": {campaignFields}}, &v); err != nil {
		return nil, fmt.Errorf("failed to get campaign %s: %w", id, err)
	}
	return &v, nil
}

// GetAdSet reads one ad set by id
func (c *Client) GetAdSet(ctx context.Context, id string) (*AdSet, error) {
	var v AdSet
	if err := c.get(ctx, id, url.Values{"fields": {adSetFields}}, &v); err != nil {
		return nil, fmt.Errorf("failed to get ad set %s: %w", id, err)
	}
	return &v, nil
}

// GetAd reads one ad by id
func (c *Client) GetAd(ctx context.Context, id string) (*Ad, error) {
	var v Ad
	if err := c.get(ctx, id, url.Values{"fields": {adFields}}, &v); err != nil {
		return nil, fmt.Errorf("failed to get ad %s: %w", id, err)
	}
	return &v, nil
}

func edgeQuery(fields string, params ports.ListParams) url.Values {
	limit := params.Limit
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	q := url.Values{}
	q.Set("fields", fields)
	q.Set("limit", strconv.Itoa(limit))
	if params.Cursor != "" {
		q.Set("after", params.Cursor)
	}
	if params.CreatedAtMin != nil {
		filter := []map[string]any{{
			"field":    "updated_time",
			"operator": "GREATER_THAN",
			"value":    params.CreatedAtMin.Unix(),
		}}
		raw, _ := json.Marshal(filter)
		q.Set("filtering", string(raw))
	}
	return q
}

// list fetches one page of an edge; paging.next is authoritative
func list[T any](ctx context.Context, c *Client, edge string, query url.Values) (ports.Page[T], error) {
	var out Edge[T]
	if err := c.get(ctx, c.account+"/"+edge, query, &out); err != nil {
		return ports.Page[T]{}, err
	}
	page := ports.Page[T]{Items: out.Data, Authoritative: true}
	if out.Paging != nil && out.Paging.Next != "" {
		page.NextCursor = out.Paging.Cursors.After
	}
	return page, nil
}

// ListCampaigns returns one page of campaigns, updated after CreatedAtMin when set
func (c *Client) ListCampaigns(ctx context.Context, params ports.ListParams) (ports.Page[Campaign], error) {
	page, err := list[Campaign](ctx, c, "campaigns", edgeQuery(campaignFields, params))
	if err != nil {
		return page, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return page, nil
}

// ListAdSets returns one page of ad sets
func (c *Client) ListAdSets(ctx context.Context, params ports.ListParams) (ports.Page[AdSet], error) {
	page, err := list[AdSet](ctx, c, "adsets", edgeQuery(adSetFields, params))
	if err != nil {
		return page, fmt.Errorf("failed to list ad sets: %w", err)
	}
	return page, nil
}

// ListAds returns one page of ads
func (c *Client) ListAds(ctx context.Context, params ports.ListParams) (ports.Page[Ad], error) {
	page, err := list[Ad](ctx, c, "ads", edgeQuery(adFields, params))
	if err != nil {
		return page, fmt.Errorf("failed to list ads: %w", err)
	}
	return page, nil
}

// ListInsights returns one page of daily ad-level insights. A full sync asks
// for the maximum date preset; an incremental one starts at CreatedAtMin.
func (c *Client) ListInsights(ctx context.Context, params ports.ListParams) (ports.Page[Insight], error) {
	limit := params.Limit
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	q := url.Values{}
	q.Set("fields", insightFields)
	q.Set("level", "ad")
	q.Set("time_increment", "1")
	q.Set("limit", strconv.Itoa(limit))
	if params.Cursor != "" {
		q.Set("after", params.Cursor)
	}
	if params.CreatedAtMin != nil {
		until := c.now()
		if params.CreatedAtMax != nil {
			until = *params.CreatedAtMax
		}
		raw, _ := json.Marshal(map[string]string{
			"since": params.CreatedAtMin.UTC().Format(time.DateOnly),
			"until": until.UTC().Format(time.DateOnly),
		})
		q.Set("time_range", string(raw))
	} else {
		q.Set("date_preset", "maximum")
	}

	page, err := list[Insight](ctx, c, "insights", q)
	if err != nil {
		return page, fmt.Errorf("failed to list insights: %w", err)
	}
	return page, nil
}

// VerifySubscription answers the webhook subscription handshake. It returns
// the challenge to echo back when the mode and verify token match.
func VerifySubscription(query url.Values, verifyToken string) (string, error) {
	if verifyToken == "" || query.Get("hub.mode") != "subscribe" {
		return "", fmt.Errorf("%w: not a subscription request", domain.ErrInvalidSignature)
	}
	if strings.TrimSpace(query.Get("hub.verify_token")) != verifyToken {
		return "", fmt.Errorf("%w: verify token mismatch", domain.ErrInvalidSignature)
	}
	return query.Get("hub.challenge"), nil
}
