// Package ga4 is the Google Analytics 4 connector: a Data API runReport
// client authenticated by an OAuth refresh token, the daily metrics
// transformer and its sync stage.
package ga4

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/httpclient"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// PageSize is the runReport row limit per request
const PageSize = 10000

// EarliestDate is the first date the Data API accepts; a full sync starts here
const EarliestDate = "2015-08-14"

const (
	DefaultBaseURL  = "https://analyticsdata.googleapis.com/v1beta"
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
)

// Report dimensions and metrics, in request order
var (
	dimensions = []string{"date", "sessionDefaultChannelGroup"}
	metrics    = []string{"sessions", "activeUsers", "newUsers", "conversions", "totalRevenue"}
)

// OAuthConfig identifies the OAuth client that issued the refresh tokens
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// ClientFactory builds per-property GA4 clients
type ClientFactory struct {
	http    *httpclient.Factory
	baseURL string
	oauth   oauth2.Config
	logger  zerolog.Logger
}

// NewClientFactory creates a GA4 client factory
func NewClientFactory(http *httpclient.Factory, baseURL string, oauth OAuthConfig, logger zerolog.Logger) *ClientFactory {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if oauth.TokenURL == "" {
		oauth.TokenURL = DefaultTokenURL
	}
	return &ClientFactory{
		http:    http,
		baseURL: baseURL,
		oauth: oauth2.Config{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: oauth.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
			Scopes:       []string{"https://www.googleapis.com/auth/analytics.readonly"},
		},
		logger: logger,
	}
}

// NewClient creates a client whose requests carry an access token refreshed
// from the credentials' refresh token as needed
func (f *ClientFactory) NewClient(creds domain.GA4Credentials) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	token := &oauth2.Token{RefreshToken: creds.RefreshToken, AccessToken: creds.AccessToken}
	if creds.Expiry != nil {
		token.Expiry = *creds.Expiry
	}
	// token refreshes go through the same rate-limited client as reports
	refreshCtx := context.WithValue(context.Background(), oauth2.HTTPClient, f.http.HTTPClient(domain.ConnectorGA4))
	source := oauth2.ReuseTokenSource(token, f.oauth.TokenSource(refreshCtx, token))

	hf := f.http.WrapTransport(func(base http.RoundTripper) http.RoundTripper {
		return &oauth2.Transport{Source: source, Base: base}
	})
	return &Client{
		api:        hf.JSONClient(domain.ConnectorGA4, f.baseURL, nil),
		propertyID: creds.PropertyID,
		logger:     f.logger,
	}, nil
}

// Client runs reports against one GA4 property
type Client struct {
	api        *httpclient.Client
	propertyID string
	logger     zerolog.Logger
}

// mapAuthError turns a failed token refresh into an invalid-credentials error
func mapAuthError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		pe := &domain.ProviderError{Provider: domain.ConnectorGA4, Body: string(rerr.Body)}
		if rerr.Response != nil {
			pe.StatusCode = rerr.Response.StatusCode
		}
		return fmt.Errorf("%w: token refresh failed: %w", domain.ErrInvalidCredentials, pe)
	}
	return err
}

// TestConnection reads the property's metadata. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	var meta struct {
		Name string `json:"name"`
	}
	if _, err := c.api.Get(ctx, "properties/"+c.propertyID+"/metadata", nil, &meta); err != nil {
		c.logger.Warn().Err(mapAuthError(err)).Msg("GA4 connection test failed")
		return false
	}
	return meta.Name != ""
}

type nameRef struct {
	Name string `json:"name"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type reportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []nameRef   `json:"dimensions"`
	Metrics    []nameRef   `json:"metrics"`
	Limit      int         `json:"limit,string"`
	Offset     int         `json:"offset,string"`
}

type value struct {
	Value string `json:"value"`
}

type reportRow struct {
	DimensionValues []value `json:"dimensionValues"`
	MetricValues    []value `json:"metricValues"`
}

type reportResponse struct {
	DimensionHeaders []nameRef   `json:"dimensionHeaders"`
	MetricHeaders    []nameRef   `json:"metricHeaders"`
	Rows             []reportRow `json:"rows"`
	RowCount         int         `json:"rowCount"`
}

// Row is one report row keyed by dimension and metric name
type Row struct {
	Dimensions map[string]string
	Metrics    map[string]string
}

func names(list []string) []nameRef {
	out := make([]nameRef, len(list))
	for i, n := range list {
		out[i] = nameRef{Name: n}
	}
	return out
}

// reportDates returns the runReport date range for a window
func reportDates(params ports.ListParams) dateRange {
	r := dateRange{StartDate: EarliestDate, EndDate: "today"}
	if params.CreatedAtMin != nil {
		r.StartDate = params.CreatedAtMin.UTC().Format(time.DateOnly)
	}
	if params.CreatedAtMax != nil {
		r.EndDate = params.CreatedAtMax.UTC().Format(time.DateOnly)
	}
	return r
}

// RunDailyReport fetches one page of date × channel group rows. The cursor is
// the row offset; rowCount is authoritative.
func (c *Client) RunDailyReport(ctx context.Context, params ports.ListParams) (ports.Page[Row], error) {
	limit := params.Limit
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	offset := 0
	if params.Cursor != "" {
		n, err := strconv.Atoi(params.Cursor)
		if err != nil || n < 0 {
			return ports.Page[Row]{}, fmt.Errorf("invalid report offset %q", params.Cursor)
		}
		offset = n
	}

	req := reportRequest{
		DateRanges: []dateRange{reportDates(params)},
		Dimensions: names(dimensions),
		Metrics:    names(metrics),
		Limit:      limit,
		Offset:     offset,
	}
	var resp reportResponse
	if _, err := c.api.Post(ctx, "properties/"+c.propertyID+":runReport", req, &resp); err != nil {
		return ports.Page[Row]{}, fmt.Errorf("failed to run report: %w", mapAuthError(err))
	}

	page := ports.Page[Row]{Items: make([]Row, 0, len(resp.Rows)), Authoritative: true}
	for _, r := range resp.Rows {
		row := Row{Dimensions: map[string]string{}, Metrics: map[string]string{}}
		for i, h := range resp.DimensionHeaders {
			if i < len(r.DimensionValues) {
				row.Dimensions[h.Name] = r.DimensionValues[i].Value
			}
		}
		for i, h := range resp.MetricHeaders {
			if i < len(r.MetricValues) {
				row.Metrics[h.Name] = r.MetricValues[i].Value
			}
		}
		page.Items = append(page.Items, row)
	}
	if next := offset + len(resp.Rows); len(resp.Rows) > 0 && next < resp.RowCount {
		page.NextCursor = strconv.Itoa(next)
	}
	return page, nil
}
