package tiendanube

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// timeLayout is the API timestamp format, e.g. 2026-03-01T10:00:00+0000
const timeLayout = "2006-01-02T15:04:05-0700"

// Time accepts the API timestamp format as well as RFC 3339
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339, s); err != nil {
			return err
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// Ptr returns nil for the zero time
func (t *Time) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// FlexInt decodes integers the API sometimes sends as strings
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// Localized is a multi-locale text field keyed by language code
type Localized map[string]string

type Customer struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	TotalSpent         string `json:"total_spent"`
	TotalSpentCurrency string `json:"total_spent_currency"`
	CreatedAt          *Time  `json:"created_at"`
	UpdatedAt          *Time  `json:"updated_at"`
}

type Variant struct {
	ID               int64       `json:"id"`
	ProductID        int64       `json:"product_id"`
	SKU              string      `json:"sku"`
	Price            string      `json:"price"`
	PromotionalPrice string      `json:"promotional_price"`
	CompareAtPrice   string      `json:"compare_at_price"`
	Stock            *FlexInt    `json:"stock"`
	Values           []Localized `json:"values"`
}

type Product struct {
	ID          int64     `json:"id"`
	Name        Localized `json:"name"`
	Description Localized `json:"description"`
	Handle      Localized `json:"handle"`
	Brand       string    `json:"brand"`
	Published   bool      `json:"published"`
	Tags        string    `json:"tags"`
	Variants    []Variant `json:"variants"`
	CreatedAt   *Time     `json:"created_at"`
	UpdatedAt   *Time     `json:"updated_at"`
}

type OrderCustomer struct {
	ID int64 `json:"id"`
}

type OrderProduct struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	VariantID int64   `json:"variant_id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Price     string  `json:"price"`
	Quantity  FlexInt `json:"quantity"`
}

type Order struct {
	ID             int64          `json:"id"`
	Number         int64          `json:"number"`
	Customer       *OrderCustomer `json:"customer"`
	ContactEmail   string         `json:"contact_email"`
	Currency       string         `json:"currency"`
	Subtotal       string         `json:"subtotal"`
	Discount       string         `json:"discount"`
	Total          string         `json:"total"`
	Status         string         `json:"status"`
	PaymentStatus  string         `json:"payment_status"`
	ShippingStatus string         `json:"shipping_status"`
	Products       []OrderProduct `json:"products"`
	CancelledAt    *Time          `json:"cancelled_at"`
	CreatedAt      *Time          `json:"created_at"`
	UpdatedAt      *Time          `json:"updated_at"`
}

// Notification is a webhook delivery; it references the changed record by id
type Notification struct {
	StoreID FlexInt `json:"store_id"`
	Event   string  `json:"event"`
	ID      int64   `json:"id"`
}
