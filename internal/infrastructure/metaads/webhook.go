package metaads

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/signature"

	"github.com/rs/zerolog"
)

// HeaderSignature carries "sha256=<hex>" over the raw body
const HeaderSignature = "X-Hub-Signature-256"

// WebhookAdapter verifies and parses Graph API change notifications
type WebhookAdapter struct{}

// NewWebhookAdapter creates the Meta webhook adapter
func NewWebhookAdapter() *WebhookAdapter {
	return &WebhookAdapter{}
}

func (a *WebhookAdapter) Provider() domain.ConnectorType { return domain.ConnectorMetaAds }

// Verify checks the app-secret signature of the raw body
func (a *WebhookAdapter) Verify(body []byte, headers http.Header, secret string, _ time.Time) error {
	return signature.VerifyHex(body, headers.Get(HeaderSignature), "sha256=", secret)
}

// Parse reads the notification. Meta sends no delivery id, so the event id
// is the body digest; redeliveries of the same body deduplicate.
func (a *WebhookAdapter) Parse(body []byte, _ http.Header) (*domain.InboundWebhook, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if n.Object == "" || len(n.Entry) == 0 {
		return nil, fmt.Errorf("%w: object and entry are required", domain.ErrInvalidPayload)
	}

	entry := n.Entry[0]
	eventType := n.Object
	if len(entry.Changes) > 0 {
		eventType = n.Object + "." + entry.Changes[0].Field
	}
	sum := sha256.Sum256(body)

	inbound := &domain.InboundWebhook{
		Provider:   domain.ConnectorMetaAds,
		EventID:    hex.EncodeToString(sum[:16]),
		EventType:  eventType,
		AccountRef: strings.TrimPrefix(entry.ID, "act_"),
		Payload:    body,
	}
	if entry.Time > 0 {
		at := time.Unix(entry.Time, 0).UTC()
		inbound.OccurredAt = &at
	}
	return inbound, nil
}

// ChangeHandler re-fetches the campaigns, ad sets and ads referenced by
// ad_account changes and upserts them
type ChangeHandler struct {
	clients *ClientFactory
	logger  zerolog.Logger
}

// NewChangeHandler creates the ad_account change handler
func NewChangeHandler(clients *ClientFactory, logger zerolog.Logger) *ChangeHandler {
	return &ChangeHandler{clients: clients, logger: logger}
}

func (h *ChangeHandler) CanHandle(eventType string) bool {
	return strings.HasPrefix(eventType, "ad_account")
}

func (h *ChangeHandler) Handle(ctx context.Context, conn *domain.Connector, event *domain.InboundWebhook) ([]domain.WebhookAction, error) {
	creds, ok := conn.Credentials.(domain.MetaAdsCredentials)
	if !ok {
		return nil, fmt.Errorf("%w: expected meta ads credentials", domain.ErrInvalidCredentials)
	}
	var n Notification
	if err := json.Unmarshal(event.Payload, &n); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	client, err := h.clients.NewClient(creds)
	if err != nil {
		return nil, err
	}

	ws := conn.WorkspaceID
	var (
		actions  []domain.WebhookAction
		currency *string
	)
	accountCurrency := func() (string, error) {
		if currency == nil {
			acct, err := client.GetAdAccount(ctx)
			if err != nil {
				return "", err
			}
			currency = &acct.Currency
		}
		return *currency, nil
	}

	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			if v.ID == "" {
				continue
			}
			switch strings.ToUpper(v.Level) {
			case "CAMPAIGN":
				cur, err := accountCurrency()
				if err != nil {
					return nil, err
				}
				c, err := client.GetCampaign(ctx, v.ID)
				if err != nil {
					return nil, err
				}
				actions = append(actions, domain.UpsertAction(TransformCampaign(*c, ws, cur)))
			case "AD_SET", "ADSET":
				cur, err := accountCurrency()
				if err != nil {
					return nil, err
				}
				s, err := client.GetAdSet(ctx, v.ID)
				if err != nil {
					return nil, err
				}
				actions = append(actions, domain.UpsertAction(TransformAdSet(*s, ws, cur)))
			case "AD":
				a, err := client.GetAd(ctx, v.ID)
				if err != nil {
					return nil, err
				}
				actions = append(actions, domain.UpsertAction(TransformAd(*a, ws)))
			default:
				h.logger.Debug().Str("field", change.Field).Str("level", v.Level).Msg("Ignoring ad account change")
			}
		}
	}
	return actions, nil
}
