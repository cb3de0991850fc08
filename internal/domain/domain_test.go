package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsRoundTripPerProvider(t *testing.T) {
	cases := []Credentials{
		ShopifyCredentials{ShopDomain: "acme.myshopify.com", AccessToken: "shpat_1"},
		StripeCredentials{APIKey: "sk_test_1"},
		MetaAdsCredentials{AccessToken: "EAAB", AdAccountID: "act_123"},
		GA4Credentials{PropertyID: "properties/987", RefreshToken: "1//rt"},
		TiendanubeCredentials{StoreID: "4512", AccessToken: "tn_token"},
	}

	for _, creds := range cases {
		t.Run(string(creds.Provider()), func(t *testing.T) {
			data, err := EncodeCredentials(creds)
			require.NoError(t, err)

			decoded, err := DecodeCredentials(creds.Provider(), data)
			require.NoError(t, err)
			assert.Equal(t, creds, decoded)
		})
	}
}

func TestDecodeCredentialsRejectsMissingFields(t *testing.T) {
	_, err := DecodeCredentials(ConnectorShopify, []byte(`{"shopDomain":"acme.myshopify.com"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	assert.Contains(t, err.Error(), "accessToken")

	_, err = DecodeCredentials(ConnectorMetaAds, []byte(`{"accessToken":"x"}`))
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = DecodeCredentials(ConnectorStripe, []byte(`not json`))
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestDecodeCredentialsUnknownProvider(t *testing.T) {
	_, err := DecodeCredentials(ConnectorType("woocommerce"), []byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestAccountRefs(t *testing.T) {
	assert.Equal(t, "acme.myshopify.com", ShopifyCredentials{ShopDomain: "https://ACME.myshopify.com/"}.AccountRef())
	assert.Equal(t, "acme.myshopify.com", ShopifyCredentials{ShopDomain: "acme"}.AccountRef())
	assert.Equal(t, "acme", ShopifyCredentials{ShopDomain: "acme.myshopify.com"}.ShopName())
	assert.Equal(t, "123", MetaAdsCredentials{AdAccountID: "act_123"}.AccountRef())
	assert.Equal(t, "act_123", MetaAdsCredentials{AdAccountID: "123"}.AccountPath())
}

func TestParseConnectorType(t *testing.T) {
	ct, err := ParseConnectorType("meta_ads")
	require.NoError(t, err)
	assert.Equal(t, ConnectorMetaAds, ct)

	_, err = ParseConnectorType("myspace")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, Amount("19.90"), ParseAmount("19.90"))
	assert.Equal(t, Amount("100"), ParseAmount(" 100 "))
	assert.Equal(t, Amount(""), ParseAmount("abc"))
	assert.Equal(t, Amount(""), ParseAmount(""))

	assert.Equal(t, Amount("19.99"), AmountFromMinorUnits(1999, "usd"))
	assert.Equal(t, Amount("1999"), AmountFromMinorUnits(1999, "JPY"))
	assert.Equal(t, Amount("1.999"), AmountFromMinorUnits(1999, "KWD"))
	assert.Equal(t, Amount("-5.00"), AmountFromMinorUnits(-500, "EUR"))

	assert.Equal(t, Amount("12.35"), RoundedAmount("12.345", 2))
	assert.Equal(t, Amount("-12.35"), RoundedAmount("-12.345", 2))
	assert.Equal(t, Amount("7.00"), RoundedAmount("7", 2))

	assert.Equal(t, Amount("30.40"), SumAmounts("10.10", "", "20.30"))
	assert.Equal(t, Amount(""), SumAmounts("", ""))
}

func TestSyncLogTransitionsAreMonotonic(t *testing.T) {
	conn := &Connector{ID: "c1", WorkspaceID: "w1", Type: ConnectorShopify}
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	log := NewSyncLog("l1", conn, SyncTypeFull, start)
	assert.Equal(t, SyncStatusRunning, log.Status)
	assert.False(t, log.IsTerminal())

	result := &SyncResult{Success: true, RecordsProcessed: map[string]int{"orders": 3}}
	require.NoError(t, log.Complete(result, start.Add(time.Minute)))
	assert.Equal(t, SyncStatusCompleted, log.Status)
	assert.Equal(t, 3, log.RecordsProcessed["orders"])

	err := log.Fail(errors.New("late failure"), nil, start.Add(2*time.Minute))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, SyncStatusCompleted, log.Status)
}

func TestSyncLogFailKeepsPartialCounts(t *testing.T) {
	conn := &Connector{ID: "c1", WorkspaceID: "w1", Type: ConnectorMetaAds}
	log := NewSyncLog("l1", conn, SyncTypeIncremental, time.Now())
	partial := &SyncResult{
		RecordsProcessed: map[string]int{"ad_account": 0},
		Errors:           []SyncError{{Type: "ad_account", Message: "boom"}},
	}

	require.NoError(t, log.Fail(errors.New("prerequisite stage failed"), partial, time.Now()))
	assert.Equal(t, SyncStatusFailed, log.Status)
	require.Len(t, log.Errors, 2)
	assert.Equal(t, "ad_account", log.Errors[0].Type)
	assert.Equal(t, "run", log.Errors[1].Type)
}

func TestApplySyncOutcome(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	conn := &Connector{Status: ConnectorStatusConnected, LastSyncError: "old"}

	conn.ApplySyncOutcome(SyncOutcome{StartedAt: started, Status: LastSyncCompleted}, started.Add(time.Hour))
	require.NotNil(t, conn.LastSyncAt)
	assert.Equal(t, started, *conn.LastSyncAt)
	assert.Equal(t, ConnectorStatusActive, conn.Status)
	assert.Empty(t, conn.LastSyncError)

	conn.ApplySyncOutcome(SyncOutcome{StartedAt: started.Add(6 * time.Hour), Status: LastSyncFailed, Error: "401"}, started.Add(7*time.Hour))
	assert.Equal(t, started, *conn.LastSyncAt, "failed runs keep the previous window anchor")
	assert.Equal(t, ConnectorStatusError, conn.Status)
	assert.Equal(t, "401", conn.LastSyncError)

	conn.ApplySyncOutcome(SyncOutcome{StartedAt: started.Add(8 * time.Hour), Status: LastSyncPartial, Error: "products: 500"}, started.Add(9*time.Hour))
	assert.Equal(t, started, *conn.LastSyncAt, "partial runs keep the previous window anchor")
	assert.Equal(t, ConnectorStatusActive, conn.Status)
	assert.Equal(t, LastSyncPartial, conn.LastSyncStatus)
}

func TestApplySyncStateKeepsDisconnect(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	conn := &Connector{Status: ConnectorStatusDisconnected, IsEnabled: false}

	conn.ApplySyncState(SyncState{LastSyncAt: &at, LastSyncStatus: LastSyncCompleted, Status: ConnectorStatusActive, UpdatedAt: at})
	assert.Equal(t, ConnectorStatusDisconnected, conn.Status)
	assert.False(t, conn.IsEnabled)
	require.NotNil(t, conn.LastSyncAt)
	assert.Equal(t, at, *conn.LastSyncAt)

	anchor := conn.LastSyncAt
	conn.Status = ConnectorStatusActive
	conn.ApplySyncState(SyncState{LastSyncStatus: LastSyncFailed, LastSyncError: "boom", Status: ConnectorStatusError})
	assert.Equal(t, ConnectorStatusError, conn.Status)
	assert.Equal(t, anchor, conn.LastSyncAt, "a nil anchor leaves the stored one")
}

func TestProviderErrorRetryable(t *testing.T) {
	assert.True(t, (&ProviderError{StatusCode: 429}).IsRetryable())
	assert.True(t, (&ProviderError{StatusCode: 503}).IsRetryable())
	assert.False(t, (&ProviderError{StatusCode: 404}).IsRetryable())
	assert.True(t, (&ProviderError{StatusCode: 401}).IsAuthFailure())

	wrapped := errors.Join(errors.New("context"), &ProviderError{Provider: ConnectorStripe, StatusCode: 402})
	pe, ok := AsProviderError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 402, pe.StatusCode)
}

func TestIdentityValidate(t *testing.T) {
	assert.NoError(t, Identity{WorkspaceID: "w", Source: ConnectorShopify, ExternalID: "1"}.Validate())
	assert.True(t, errors.Is(Identity{WorkspaceID: "w", Source: ConnectorShopify}.Validate(), ErrInvalidIdentity))
}
