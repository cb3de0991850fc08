package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"aibos-connector-sync/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounts(t *testing.T) {
	m := NewPrometheus()

	m.SyncRunFinished(domain.ConnectorStripe, "completed", 3*time.Second)
	m.SyncRunFinished(domain.ConnectorStripe, "completed", time.Second)
	m.StageFinished(domain.ConnectorStripe, "customers", 40, false)
	m.StageFinished(domain.ConnectorStripe, "invoices", 2, true)
	m.EntityUpserted(domain.KindSaasCustomer, true)
	m.UpsertConflict(domain.KindSaasCustomer)
	m.WebhookReceived(domain.ConnectorShopify, "processed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.syncRuns.WithLabelValues("stripe", "completed")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.stageRecords.WithLabelValues("stripe", "customers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("stripe", "invoices")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("stripe", "customers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entityWrites.WithLabelValues("saas_customers", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upsertConflicts.WithLabelValues("saas_customers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("shopify", "processed")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := NewPrometheus()
	m.WebhookReceived(domain.ConnectorMetaAds, "rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `connector_sync_webhooks_total{outcome="rejected",provider="meta_ads"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
