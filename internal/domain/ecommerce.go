package domain

import "time"

// EcommerceCustomer is a storefront customer (Shopify, Tiendanube)
type EcommerceCustomer struct {
	EntityBase  `bson:",inline"`
	Email       string   `json:"email,omitempty" bson:"email,omitempty"`
	FirstName   string   `json:"first_name,omitempty" bson:"firstName,omitempty"`
	LastName    string   `json:"last_name,omitempty" bson:"lastName,omitempty"`
	Phone       string   `json:"phone,omitempty" bson:"phone,omitempty"`
	OrdersCount int      `json:"orders_count" bson:"ordersCount"`
	TotalSpent  Amount   `json:"total_spent,omitempty" bson:"totalSpent,omitempty"`
	Currency    string   `json:"currency,omitempty" bson:"currency,omitempty"`
	State       string   `json:"state,omitempty" bson:"state,omitempty"`
	Tags        []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

func (*EcommerceCustomer) Kind() EntityKind { return KindEcommerceCustomer }

// ProductVariant is one purchasable variant of a product
type ProductVariant struct {
	ExternalID        string `json:"external_id" bson:"externalId"`
	Title             string `json:"title,omitempty" bson:"title,omitempty"`
	SKU               string `json:"sku,omitempty" bson:"sku,omitempty"`
	Price             Amount `json:"price,omitempty" bson:"price,omitempty"`
	CompareAtPrice    Amount `json:"compare_at_price,omitempty" bson:"compareAtPrice,omitempty"`
	InventoryQuantity int    `json:"inventory_quantity" bson:"inventoryQuantity"`
}

// EcommerceProduct is a catalog product with inventory per variant
type EcommerceProduct struct {
	EntityBase      `bson:",inline"`
	Title           string           `json:"title" bson:"title"`
	Description     string           `json:"description,omitempty" bson:"description,omitempty"`
	Vendor          string           `json:"vendor,omitempty" bson:"vendor,omitempty"`
	ProductType     string           `json:"product_type,omitempty" bson:"productType,omitempty"`
	Handle          string           `json:"handle,omitempty" bson:"handle,omitempty"`
	Status          string           `json:"status,omitempty" bson:"status,omitempty"`
	Tags            []string         `json:"tags,omitempty" bson:"tags,omitempty"`
	Price           Amount           `json:"price,omitempty" bson:"price,omitempty"`
	Currency        string           `json:"currency,omitempty" bson:"currency,omitempty"`
	TotalInventory  int              `json:"total_inventory" bson:"totalInventory"`
	Variants        []ProductVariant `json:"variants,omitempty" bson:"variants,omitempty"`
	SourceUpdatedAt *time.Time       `json:"source_updated_at,omitempty" bson:"sourceUpdatedAt,omitempty"`
}

func (*EcommerceProduct) Kind() EntityKind { return KindEcommerceProduct }

// OrderLineItem is one line of an order
type OrderLineItem struct {
	ExternalID        string `json:"external_id" bson:"externalId"`
	ProductExternalID string `json:"product_external_id,omitempty" bson:"productExternalId,omitempty"`
	VariantExternalID string `json:"variant_external_id,omitempty" bson:"variantExternalId,omitempty"`
	Title             string `json:"title" bson:"title"`
	SKU               string `json:"sku,omitempty" bson:"sku,omitempty"`
	Quantity          int    `json:"quantity" bson:"quantity"`
	Price             Amount `json:"price,omitempty" bson:"price,omitempty"`
}

// EcommerceOrder is a storefront order
type EcommerceOrder struct {
	EntityBase         `bson:",inline"`
	OrderNumber        string          `json:"order_number,omitempty" bson:"orderNumber,omitempty"`
	CustomerExternalID string          `json:"customer_external_id,omitempty" bson:"customerExternalId,omitempty"`
	Email              string          `json:"email,omitempty" bson:"email,omitempty"`
	Currency           string          `json:"currency,omitempty" bson:"currency,omitempty"`
	Subtotal           Amount          `json:"subtotal,omitempty" bson:"subtotal,omitempty"`
	TotalTax           Amount          `json:"total_tax,omitempty" bson:"totalTax,omitempty"`
	TotalDiscounts     Amount          `json:"total_discounts,omitempty" bson:"totalDiscounts,omitempty"`
	TotalPrice         Amount          `json:"total_price,omitempty" bson:"totalPrice,omitempty"`
	FinancialStatus    string          `json:"financial_status,omitempty" bson:"financialStatus,omitempty"`
	FulfillmentStatus  string          `json:"fulfillment_status,omitempty" bson:"fulfillmentStatus,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty" bson:"cancelledAt,omitempty"`
	LineItems          []OrderLineItem `json:"line_items,omitempty" bson:"lineItems,omitempty"`
	SourceUpdatedAt    *time.Time      `json:"source_updated_at,omitempty" bson:"sourceUpdatedAt,omitempty"`
}

func (*EcommerceOrder) Kind() EntityKind { return KindEcommerceOrder }
