package application

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"aibos-connector-sync/internal/application/webhook_handlers"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/memstore"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSignatureHeader = "X-Test-Signature"

// headerAdapter accepts deliveries whose signature header equals the secret
type headerAdapter struct{}

func (headerAdapter) Provider() domain.ConnectorType { return domain.ConnectorShopify }

func (headerAdapter) Verify(body []byte, headers http.Header, secret string, now time.Time) error {
	if headers.Get(testSignatureHeader) != secret {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (headerAdapter) Parse(body []byte, headers http.Header) (*domain.InboundWebhook, error) {
	var env struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Account string `json:"account"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &domain.InboundWebhook{
		Provider:   domain.ConnectorShopify,
		EventID:    env.ID,
		EventType:  env.Type,
		AccountRef: env.Account,
		Payload:    body,
	}, nil
}

// customerHandler upserts or deletes a customer named by the payload
type customerHandler struct {
	fail error
}

func (h *customerHandler) CanHandle(eventType string) bool {
	return eventType == "customers/update" || eventType == "customers/delete"
}

func (h *customerHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	if h.fail != nil {
		return nil, h.fail
	}
	var payload struct {
		Customer string `json:"customer"`
		Email    string `json:"email"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, err
	}
	if event.EventType == "customers/delete" {
		return []domain.WebhookAction{domain.DeleteAction(domain.KindEcommerceCustomer, domain.Identity{
			WorkspaceID: conn.WorkspaceID, Source: conn.Type, ExternalID: payload.Customer,
		})}, nil
	}
	return []domain.WebhookAction{domain.UpsertAction(newCustomer(conn.WorkspaceID, payload.Customer, payload.Email))}, nil
}

type gatewayFixture struct {
	store     *memstore.Store
	handler   *customerHandler
	metrics   *countingMetrics
	publisher *recordingPublisher
	gateway   *WebhookGateway
}

func newGatewayFixture(t *testing.T, secret string) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		store:     memstore.New(),
		handler:   &customerHandler{},
		metrics:   &countingMetrics{},
		publisher: &recordingPublisher{},
	}
	reconciler := NewReconciler(f.store.Entities(), nil, zerolog.Nop())
	f.gateway = NewWebhookGateway(f.store.Connectors(), f.store.WebhookEvents(), reconciler, f.publisher, f.metrics, WebhookGatewayOptions{
		Secrets:     map[domain.ConnectorType]string{domain.ConnectorShopify: secret},
		MaxAttempts: 3,
	}, zerolog.Nop())
	f.gateway.RegisterProvider(headerAdapter{},
		f.handler,
		webhook_handlers.NewConnectorLifecycleHandler(f.store.Connectors(), f.publisher, zerolog.Nop()),
	)

	require.NoError(t, f.store.Connectors().Create(context.Background(), &domain.Connector{
		ID:          "c1",
		WorkspaceID: "w1",
		Type:        domain.ConnectorShopify,
		Credentials: domain.ShopifyCredentials{ShopDomain: "acme.myshopify.com", AccessToken: "shpat"},
		Status:      domain.ConnectorStatusActive,
		IsEnabled:   true,
		AccountRef:  "acme.myshopify.com",
	}))
	return f
}

func (f *gatewayFixture) deliver(t *testing.T, signature string, body string) (*WebhookResult, error) {
	t.Helper()
	headers := http.Header{}
	headers.Set(testSignatureHeader, signature)
	return f.gateway.Handle(context.Background(), domain.ConnectorShopify, []byte(body), headers, "")
}

func (f *gatewayFixture) customer(t *testing.T, externalID string) (*domain.EcommerceCustomer, bool) {
	t.Helper()
	var out domain.EcommerceCustomer
	found, err := f.store.EntityStore().Get(domain.KindEcommerceCustomer, domain.Identity{
		WorkspaceID: "w1", Source: domain.ConnectorShopify, ExternalID: externalID,
	}, &out)
	require.NoError(t, err)
	return &out, found
}

const updateBody = `{"id":"evt-1","type":"customers/update","account":"acme.myshopify.com","customer":"42","email":"ana@example.com"}`

func TestWebhookRejectsBadSignatureWithoutMutation(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")

	result, err := f.deliver(t, "wrong", updateBody)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.False(t, result.Verified)

	event, err := f.store.WebhookEvents().Get(context.Background(), domain.ConnectorShopify, "evt-1")
	require.NoError(t, err)
	assert.Nil(t, event, "rejected deliveries leave no record")

	_, found := f.customer(t, "42")
	assert.False(t, found)
	assert.Equal(t, 1, f.metrics.webhooks["rejected"])
}

func TestWebhookRejectsWhenSecretMissing(t *testing.T) {
	f := newGatewayFixture(t, "")
	_, err := f.deliver(t, "", updateBody)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestWebhookMalformedPayload(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")
	_, err := f.deliver(t, "s3cret", `{not json`)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestWebhookUnknownProvider(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")
	_, err := f.gateway.Handle(context.Background(), domain.ConnectorGA4, []byte(`{}`), http.Header{}, "")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestWebhookProcessesAndDeduplicates(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")

	result, err := f.deliver(t, "s3cret", updateBody)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.True(t, result.Processed)
	assert.Equal(t, domain.WebhookStatusProcessed, result.Status)
	assert.Equal(t, 1, result.Attempts)

	stored, found := f.customer(t, "42")
	require.True(t, found)
	assert.Equal(t, "ana@example.com", stored.Email)

	event, err := f.store.WebhookEvents().Get(context.Background(), domain.ConnectorShopify, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.WebhookStatusProcessed, event.Status)
	assert.Equal(t, "c1", event.ConnectorID)
	assert.NotNil(t, event.ProcessedAt)

	again, err := f.deliver(t, "s3cret", updateBody)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.False(t, again.Processed)

	n, err := f.store.Entities().CountEntities(context.Background(), domain.KindEcommerceCustomer, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []domain.PipelineEventType{domain.EventWebhookProcessed}, f.publisher.types())
}

func TestWebhookDeleteAction(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")
	_, err := f.deliver(t, "s3cret", updateBody)
	require.NoError(t, err)

	_, err = f.deliver(t, "s3cret", `{"id":"evt-2","type":"customers/delete","account":"acme.myshopify.com","customer":"42"}`)
	require.NoError(t, err)

	_, found := f.customer(t, "42")
	assert.False(t, found)
}

func TestWebhookIgnoredWhenUnroutable(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")

	result, err := f.deliver(t, "s3cret", `{"id":"evt-3","type":"customers/update","account":"other.myshopify.com","customer":"1"}`)
	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Equal(t, domain.WebhookStatusIgnored, result.Status)

	result, err = f.deliver(t, "s3cret", `{"id":"evt-4","type":"carts/create","account":"acme.myshopify.com"}`)
	require.NoError(t, err)
	assert.True(t, result.Ignored)

	event, err := f.store.WebhookEvents().Get(context.Background(), domain.ConnectorShopify, "evt-4")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusIgnored, event.Status)
}

func TestWebhookConnectorHint(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")
	headers := http.Header{}
	headers.Set(testSignatureHeader, "s3cret")

	body := `{"id":"evt-5","type":"customers/update","customer":"7","email":"b@example.com"}`
	result, err := f.gateway.Handle(context.Background(), domain.ConnectorShopify, []byte(body), headers, "c1")
	require.NoError(t, err)
	assert.True(t, result.Processed)

	_, found := f.customer(t, "7")
	assert.True(t, found)
}

func TestWebhookFailureRetriesUntilExhausted(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")
	f.handler.fail = errors.New("downstream unavailable")

	for attempt := 1; attempt < 3; attempt++ {
		result, err := f.deliver(t, "s3cret", updateBody)
		require.Error(t, err, "attempt %d should ask the provider to retry", attempt)
		assert.Equal(t, domain.WebhookStatusFailed, result.Status)
		assert.Equal(t, attempt, result.Attempts)
	}

	result, err := f.deliver(t, "s3cret", updateBody)
	require.NoError(t, err, "the final attempt is acknowledged")
	assert.Equal(t, domain.WebhookStatusExhausted, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Contains(t, result.Error, "downstream unavailable")

	// once exhausted, redeliveries are duplicates
	result, err = f.deliver(t, "s3cret", updateBody)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, 1, f.metrics.webhooks["exhausted"])
	assert.Equal(t, 2, f.metrics.webhooks["failed"])
}

func TestWebhookFailedEventRecoversOnRetry(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")
	f.handler.fail = errors.New("transient")
	_, err := f.deliver(t, "s3cret", updateBody)
	require.Error(t, err)

	f.handler.fail = nil
	result, err := f.deliver(t, "s3cret", updateBody)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, 2, result.Attempts)
}

func TestWebhookLifecycleDisconnectsConnector(t *testing.T) {
	f := newGatewayFixture(t, "s3cret")

	result, err := f.deliver(t, "s3cret", `{"id":"evt-9","type":"app/uninstalled","account":"acme.myshopify.com"}`)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	conn, err := f.store.Connectors().GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectorStatusDisconnected, conn.Status)
	assert.False(t, conn.Syncable())
	assert.Contains(t, f.publisher.types(), domain.EventConnectorStatus)
}
