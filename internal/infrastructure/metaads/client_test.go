package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"aibos-connector-sync/internal/application"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/httpclient"
	"aibos-connector-sync/internal/infrastructure/memstore"
	"aibos-connector-sync/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = domain.MetaAdsCredentials{AccessToken: "EAAB-token", AdAccountID: "123"}

func newTestFactory(srv *httptest.Server) *ClientFactory {
	retry := &httpclient.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	f := NewClientFactory(httpclient.NewFactory(nil, retry, 5*time.Second, zerolog.Nop()), srv.URL, zerolog.Nop())
	f.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return f
}

// graphServer serves the ad account and a campaigns edge of total items
func graphServer(t *testing.T, total int, campaignCalls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EAAB-token", r.URL.Query().Get("access_token"))
		switch r.URL.Path {
		case "/act_123":
			_, _ = w.Write([]byte(`{"id":"act_123","account_id":"123","name":"Acme Ads","currency":"USD","account_status":1,"amount_spent":"123456"}`))
		case "/act_123/campaigns":
			campaignCalls.Add(1)
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			start, _ := strconv.Atoi(r.URL.Query().Get("after"))
			data := []map[string]any{}
			for i := start + 1; i <= total && len(data) < limit; i++ {
				data = append(data, map[string]any{"id": fmt.Sprintf("c%d", i), "account_id": "123", "name": "Spring", "daily_budget": "2500"})
			}
			out := map[string]any{"data": data}
			end := start + len(data)
			if end < total {
				out["paging"] = map[string]any{
					"cursors": map[string]string{"after": strconv.Itoa(end)},
					"next":    "https://graph.facebook.com/v19.0/act_123/campaigns?after=" + strconv.Itoa(end),
				}
			} else {
				out["paging"] = map[string]any{"cursors": map[string]string{"after": strconv.Itoa(end)}}
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}))
}

func TestStagesSyncAccountThenCampaigns(t *testing.T) {
	var calls atomic.Int32
	srv := graphServer(t, 150, &calls)
	defer srv.Close()

	store := memstore.New()
	sink := application.NewReconciler(store.Entities(), nil, zerolog.Nop())
	provider := NewProvider(newTestFactory(srv), zerolog.Nop())
	conn := &domain.Connector{ID: "c1", WorkspaceID: "w1", Type: domain.ConnectorMetaAds, Credentials: testCreds}

	stages, err := provider.Stages(conn, sink)
	require.NoError(t, err)
	require.Len(t, stages, 5)
	assert.Equal(t, "ad_account", stages[0].Name)
	assert.True(t, stages[0].Prerequisite)

	n, err := stages[0].Run(context.Background(), ports.SyncWindow{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = stages[1].Run(context.Background(), ports.SyncWindow{})
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	assert.Equal(t, int32(2), calls.Load())

	var acct domain.AdAccount
	found, err := store.EntityStore().Get(domain.KindAdAccount, domain.Identity{WorkspaceID: "w1", Source: domain.ConnectorMetaAds, ExternalID: "123"}, &acct)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.Amount("1234.56"), acct.AmountSpent)

	var campaign domain.AdCampaign
	found, err = store.EntityStore().Get(domain.KindAdCampaign, domain.Identity{WorkspaceID: "w1", Source: domain.ConnectorMetaAds, ExternalID: "c150"}, &campaign)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.Amount("25.00"), campaign.DailyBudget)
}

func TestEdgeQueryFiltersOnUpdatedTime(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	q := edgeQuery(campaignFields, ports.ListParams{Cursor: "QVFI", CreatedAtMin: &since})
	assert.Equal(t, "QVFI", q.Get("after"))
	assert.Equal(t, "100", q.Get("limit"))

	var filter []map[string]any
	require.NoError(t, json.Unmarshal([]byte(q.Get("filtering")), &filter))
	require.Len(t, filter, 1)
	assert.Equal(t, "updated_time", filter[0]["field"])
	assert.Equal(t, "GREATER_THAN", filter[0]["operator"])
	assert.Equal(t, float64(since.Unix()), filter[0]["value"])
}

func TestListInsightsDateRange(t *testing.T) {
	queries := make(chan url.Values, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/act_123/insights", r.URL.Path)
		queries <- r.URL.Query()
		_, _ = w.Write([]byte(`{"data":[{"ad_id":"a1","date_start":"2026-03-02","spend":"10.005","impressions":"100"}]}`))
	}))
	defer srv.Close()

	client, err := newTestFactory(srv).NewClient(testCreds)
	require.NoError(t, err)

	page, err := client.ListInsights(context.Background(), ports.ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Authoritative)
	assert.Empty(t, page.NextCursor)

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = client.ListInsights(context.Background(), ports.ListParams{CreatedAtMin: &since})
	require.NoError(t, err)

	full, incremental := <-queries, <-queries
	assert.Equal(t, "maximum", full.Get("date_preset"))
	assert.Equal(t, "ad", full.Get("level"))
	assert.Equal(t, "1", full.Get("time_increment"))
	assert.Empty(t, incremental.Get("date_preset"))
	assert.JSONEq(t, `{"since":"2026-03-01","until":"2026-03-10"}`, incremental.Get("time_range"))
}

func TestThrottleCodesAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"User request limit reached","code":17}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"act_123","account_id":"123","currency":"EUR"}`))
	}))
	defer srv.Close()

	client, err := newTestFactory(srv).NewClient(testCreds)
	require.NoError(t, err)
	acct, err := client.GetAdAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EUR", acct.Currency)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	}))
	defer srv.Close()

	provider := NewProvider(newTestFactory(srv), zerolog.Nop())
	assert.False(t, provider.TestConnection(context.Background(), testCreds))
	assert.Equal(t, int32(1), calls.Load())
}

func TestVerifySubscription(t *testing.T) {
	q := url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {"tok"}, "hub.challenge": {"1158201444"}}
	challenge, err := VerifySubscription(q, "tok")
	require.NoError(t, err)
	assert.Equal(t, "1158201444", challenge)

	_, err = VerifySubscription(q, "other")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	_, err = VerifySubscription(q, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	_, err = VerifySubscription(url.Values{"hub.mode": {"unsubscribe"}}, "tok")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}
