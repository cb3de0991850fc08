package tiendanube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

var testCreds = domain.TiendanubeCredentials{StoreID: "777", AccessToken: "tn-token"}

func newTestFactory(srv *httptest.Server) *ClientFactory {
	retry := &httpclient.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return NewClientFactory(httpclient.NewFactory(nil, retry, 5*time.Second, zerolog.Nop()), srv.URL, "test-agent", zerolog.Nop())
}

// storeServer serves total orders through page/per_page and 404s past the last page
func storeServer(t *testing.T, total int, requests *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bearer tn-token", r.Header.Get("Authentication"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/777/store":
			_, _ = w.Write([]byte(`{"id":777,"name":{"es":"Tienda"}}`))
		case "/777/orders":
			requests.Add(1)
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
			start := (page - 1) * perPage
			if start >= total && page > 1 {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":404,"message":"Not Found","description":"Last page is 2"}`))
				return
			}
			orders := []map[string]any{}
			for id := start + 1; id <= total && len(orders) < perPage; id++ {
				orders = append(orders, map[string]any{"id": id, "number": id, "currency": "ARS", "total": "10.00"})
			}
			_ = json.NewEncoder(w).Encode(orders)
		case "/777/orders/42":
			_, _ = w.Write([]byte(`{"id":42,"number":42,"total":"99.90","currency":"ARS"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"message":"Not Found"}`))
		}
	}))
}

func ordersStage(t *testing.T, stages []ports.SyncStage) ports.SyncStage {
	t.Helper()
	for _, s := range stages {
		if s.Name == "orders" {
			return s
		}
	}
	t.Fatal("orders stage missing")
	return ports.SyncStage{}
}

func TestOrdersStageUsesFullPageHeuristic(t *testing.T) {
	var requests atomic.Int32
	srv := storeServer(t, 450, &requests)
	defer srv.Close()

	store := memstore.New()
	sink := application.NewReconciler(store.Entities(), nil, zerolog.Nop())
	provider := NewProvider(newTestFactory(srv), zerolog.Nop())
	conn := &domain.Connector{ID: "c1", WorkspaceID: "w1", Type: domain.ConnectorTiendanube, Credentials: testCreds}

	stages, err := provider.Stages(conn, sink)
	require.NoError(t, err)
	n, err := ordersStage(t, stages).Run(context.Background(), ports.SyncWindow{})
	require.NoError(t, err)
	assert.Equal(t, 450, n)
	assert.Equal(t, int32(3), requests.Load())
}

func TestExactMultipleEndsOnNotFoundPage(t *testing.T) {
	var requests atomic.Int32
	srv := storeServer(t, 400, &requests)
	defer srv.Close()

	store := memstore.New()
	sink := application.NewReconciler(store.Entities(), nil, zerolog.Nop())
	provider := NewProvider(newTestFactory(srv), zerolog.Nop())
	conn := &domain.Connector{ID: "c1", WorkspaceID: "w1", Type: domain.ConnectorTiendanube, Credentials: testCreds}

	stages, err := provider.Stages(conn, sink)
	require.NoError(t, err)
	n, err := ordersStage(t, stages).Run(context.Background(), ports.SyncWindow{})
	require.NoError(t, err)
	assert.Equal(t, 400, n)
	assert.Equal(t, int32(3), requests.Load(), "two full pages then the empty page")

	count, err := store.Entities().CountEntities(context.Background(), domain.KindEcommerceOrder, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), count)
}

func TestListSendsCreatedAtMin(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-03-01T00:00:00Z", r.URL.Query().Get("created_at_min"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "200", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := newTestFactory(srv).NewClient(testCreds)
	require.NoError(t, err)
	page, err := client.ListCustomers(context.Background(), ports.ListParams{CreatedAtMin: &since})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.Authoritative)

	_, err = client.ListCustomers(context.Background(), ports.ListParams{Cursor: "0"})
	assert.Error(t, err)
}

func TestGetters(t *testing.T) {
	var requests atomic.Int32
	srv := storeServer(t, 0, &requests)
	defer srv.Close()

	client, err := newTestFactory(srv).NewClient(testCreds)
	require.NoError(t, err)
	assert.True(t, client.TestConnection(context.Background()))

	order, err := client.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "99.90", order.Total)

	_, err = client.GetProduct(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}
