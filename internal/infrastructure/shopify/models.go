package shopify

import "time"

// Wire types for the Shopify Admin REST API. Money fields are decimal strings
// on the wire and stay strings here. Webhook payloads share these shapes.

type Shop struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Currency string `json:"currency"`
}

type Customer struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone"`
	OrdersCount int        `json:"orders_count"`
	TotalSpent  string     `json:"total_spent"`
	Currency    string     `json:"currency"`
	State       string     `json:"state"`
	Tags        string     `json:"tags"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type Variant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	Price             string `json:"price"`
	CompareAtPrice    string `json:"compare_at_price"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

type Product struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	BodyHTML    string     `json:"body_html"`
	Vendor      string     `json:"vendor"`
	ProductType string     `json:"product_type"`
	Handle      string     `json:"handle"`
	Status      string     `json:"status"`
	Tags        string     `json:"tags"`
	Variants    []Variant  `json:"variants"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type LineItem struct {
	ID        int64  `json:"id"`
	ProductID *int64 `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type Order struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	OrderNumber       int64      `json:"order_number"`
	Email             string     `json:"email"`
	Currency          string     `json:"currency"`
	SubtotalPrice     string     `json:"subtotal_price"`
	TotalTax          string     `json:"total_tax"`
	TotalDiscounts    string     `json:"total_discounts"`
	TotalPrice        string     `json:"total_price"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus string     `json:"fulfillment_status"`
	Customer          *Customer  `json:"customer"`
	LineItems         []LineItem `json:"line_items"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	CreatedAt         *time.Time `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

// DeletedResource is the payload of */delete topics
type DeletedResource struct {
	ID int64 `json:"id"`
}
