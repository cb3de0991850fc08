package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Credentials is the provider-specific secret bundle of a connector.
// Each variant carries exactly the fields its client needs.
type Credentials interface {
	Provider() ConnectorType
	Validate() error
	// AccountRef is the provider-side account key used to route webhooks
	AccountRef() string
}

// ShopifyCredentials authenticate against the Shopify Admin API
type ShopifyCredentials struct {
	ShopDomain  string `json:"shopDomain"`
	AccessToken string `json:"accessToken"`
}

func (c ShopifyCredentials) Provider() ConnectorType { return ConnectorShopify }

func (c ShopifyCredentials) Validate() error {
	return requireFields(c.Provider(), map[string]string{
		"shopDomain":  c.ShopDomain,
		"accessToken": c.AccessToken,
	})
}

func (c ShopifyCredentials) AccountRef() string { return NormalizeShopDomain(c.ShopDomain) }

// ShopName returns the shop handle without the myshopify.com suffix
func (c ShopifyCredentials) ShopName() string {
	return strings.TrimSuffix(NormalizeShopDomain(c.ShopDomain), ".myshopify.com")
}

// StripeCredentials authenticate against the Stripe API
type StripeCredentials struct {
	APIKey    string `json:"apiKey"`
	AccountID string `json:"accountId,omitempty"`
}

func (c StripeCredentials) Provider() ConnectorType { return ConnectorStripe }

func (c StripeCredentials) Validate() error {
	return requireFields(c.Provider(), map[string]string{"apiKey": c.APIKey})
}

func (c StripeCredentials) AccountRef() string { return c.AccountID }

// MetaAdsCredentials authenticate against the Meta Graph API
type MetaAdsCredentials struct {
	AccessToken string `json:"accessToken"`
	AdAccountID string `json:"adAccountId"`
}

func (c MetaAdsCredentials) Provider() ConnectorType { return ConnectorMetaAds }

func (c MetaAdsCredentials) Validate() error {
	return requireFields(c.Provider(), map[string]string{
		"accessToken": c.AccessToken,
		"adAccountId": c.AdAccountID,
	})
}

func (c MetaAdsCredentials) AccountRef() string { return strings.TrimPrefix(c.AdAccountID, "act_") }

// AccountPath returns the act_-prefixed Graph API node for the ad account
func (c MetaAdsCredentials) AccountPath() string {
	return "act_" + strings.TrimPrefix(c.AdAccountID, "act_")
}

// GA4Credentials carry an OAuth refresh token for the GA4 Data API
type GA4Credentials struct {
	PropertyID   string     `json:"propertyId"`
	RefreshToken string     `json:"refreshToken"`
	AccessToken  string     `json:"accessToken,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

func (c GA4Credentials) Provider() ConnectorType { return ConnectorGA4 }

func (c GA4Credentials) Validate() error {
	return requireFields(c.Provider(), map[string]string{
		"propertyId":   c.PropertyID,
		"refreshToken": c.RefreshToken,
	})
}

func (c GA4Credentials) AccountRef() string { return c.PropertyID }

// TiendanubeCredentials authenticate against the Tiendanube (Nuvemshop) API
type TiendanubeCredentials struct {
	StoreID     string `json:"storeId"`
	AccessToken string `json:"accessToken"`
}

func (c TiendanubeCredentials) Provider() ConnectorType { return ConnectorTiendanube }

func (c TiendanubeCredentials) Validate() error {
	return requireFields(c.Provider(), map[string]string{
		"storeId":     c.StoreID,
		"accessToken": c.AccessToken,
	})
}

func (c TiendanubeCredentials) AccountRef() string { return c.StoreID }

// EncodeCredentials serializes a credential variant for encrypted storage
func EncodeCredentials(c Credentials) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: credentials are nil", ErrInvalidCredentials)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s credentials: %w", c.Provider(), err)
	}
	return data, nil
}

// DecodeCredentials restores the variant matching the connector type
func DecodeCredentials(t ConnectorType, data []byte) (Credentials, error) {
	var creds Credentials
	var err error

	switch t {
	case ConnectorShopify:
		var c ShopifyCredentials
		err = json.Unmarshal(data, &c)
		creds = c
	case ConnectorStripe:
		var c StripeCredentials
		err = json.Unmarshal(data, &c)
		creds = c
	case ConnectorMetaAds:
		var c MetaAdsCredentials
		err = json.Unmarshal(data, &c)
		creds = c
	case ConnectorGA4:
		var c GA4Credentials
		err = json.Unmarshal(data, &c)
		creds = c
	case ConnectorTiendanube:
		var c TiendanubeCredentials
		err = json.Unmarshal(data, &c)
		creds = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, t)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

// NormalizeShopDomain lowercases a shop domain and strips scheme and trailing slash
func NormalizeShopDomain(shop string) string {
	s := strings.ToLower(strings.TrimSpace(shop))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	if s != "" && !strings.Contains(s, ".") {
		s += ".myshopify.com"
	}
	return s
}

func requireFields(provider ConnectorType, fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s credentials missing %s", ErrInvalidCredentials, provider, strings.Join(missing, ", "))
}
