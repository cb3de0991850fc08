package shopify

import (
	"strconv"
	"strings"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/normalize"
)

func externalID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func optionalID(id *int64) string {
	if id == nil || *id == 0 {
		return ""
	}
	return externalID(*id)
}

// TransformCustomer maps a Shopify customer. Money keeps the shop's precision.
func TransformCustomer(c Customer, workspaceID string) *domain.EcommerceCustomer {
	return &domain.EcommerceCustomer{
		EntityBase:  domain.NewEntityBase(workspaceID, domain.ConnectorShopify, externalID(c.ID), c.CreatedAt),
		Email:       strings.TrimSpace(c.Email),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Phone:       c.Phone,
		OrdersCount: c.OrdersCount,
		TotalSpent:  domain.ParseAmount(c.TotalSpent),
		Currency:    strings.ToUpper(c.Currency),
		State:       c.State,
		Tags:        normalize.SplitTags(c.Tags),
	}
}

// TransformProduct maps a Shopify product with its variants. The product
// price is the lowest variant price and inventory is summed over variants.
func TransformProduct(p Product, workspaceID string) *domain.EcommerceProduct {
	product := &domain.EcommerceProduct{
		EntityBase:      domain.NewEntityBase(workspaceID, domain.ConnectorShopify, externalID(p.ID), p.CreatedAt),
		Title:           normalize.CollapseWhitespace(p.Title),
		Description:     normalize.StripHTML(p.BodyHTML),
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Handle:          p.Handle,
		Status:          p.Status,
		Tags:            normalize.SplitTags(p.Tags),
		SourceUpdatedAt: p.UpdatedAt,
	}

	for _, v := range p.Variants {
		variant := domain.ProductVariant{
			ExternalID:        externalID(v.ID),
			Title:             v.Title,
			SKU:               v.SKU,
			Price:             domain.ParseAmount(v.Price),
			CompareAtPrice:    domain.ParseAmount(v.CompareAtPrice),
			InventoryQuantity: v.InventoryQuantity,
		}
		product.Variants = append(product.Variants, variant)
		product.TotalInventory += v.InventoryQuantity
		product.Price = lowerAmount(product.Price, variant.Price)
	}
	return product
}

func lowerAmount(current, candidate domain.Amount) domain.Amount {
	c, ok := candidate.Decimal()
	if !ok {
		return current
	}
	cur, ok := current.Decimal()
	if !ok || c.LessThan(cur) {
		return candidate
	}
	return current
}

// TransformOrder maps a Shopify order with its line items
func TransformOrder(o Order, workspaceID string) *domain.EcommerceOrder {
	order := &domain.EcommerceOrder{
		EntityBase:        domain.NewEntityBase(workspaceID, domain.ConnectorShopify, externalID(o.ID), o.CreatedAt),
		OrderNumber:       o.Name,
		Email:             strings.TrimSpace(o.Email),
		Currency:          strings.ToUpper(o.Currency),
		Subtotal:          domain.ParseAmount(o.SubtotalPrice),
		TotalTax:          domain.ParseAmount(o.TotalTax),
		TotalDiscounts:    domain.ParseAmount(o.TotalDiscounts),
		TotalPrice:        domain.ParseAmount(o.TotalPrice),
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		CancelledAt:       o.CancelledAt,
		SourceUpdatedAt:   o.UpdatedAt,
	}
	if order.OrderNumber == "" && o.OrderNumber != 0 {
		order.OrderNumber = strconv.FormatInt(o.OrderNumber, 10)
	}
	if o.Customer != nil && o.Customer.ID != 0 {
		order.CustomerExternalID = externalID(o.Customer.ID)
	}

	for _, li := range o.LineItems {
		order.LineItems = append(order.LineItems, domain.OrderLineItem{
			ExternalID:        externalID(li.ID),
			ProductExternalID: optionalID(li.ProductID),
			VariantExternalID: optionalID(li.VariantID),
			Title:             li.Title,
			SKU:               li.SKU,
			Quantity:          li.Quantity,
			Price:             domain.ParseAmount(li.Price),
		})
	}
	return order
}
