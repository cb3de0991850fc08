package tiendanube

import (
	"strconv"
	"strings"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/normalize"
)

func externalID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// TransformCustomer maps a customer. The API has a single name field which is
// split at the first space.
func TransformCustomer(c Customer, workspaceID string) *domain.EcommerceCustomer {
	first, last, _ := strings.Cut(normalize.CollapseWhitespace(c.Name), " ")
	return &domain.EcommerceCustomer{
		EntityBase: domain.NewEntityBase(workspaceID, domain.ConnectorTiendanube, externalID(c.ID), c.CreatedAt.Ptr()),
		Email:      strings.TrimSpace(c.Email),
		FirstName:  first,
		LastName:   last,
		Phone:      c.Phone,
		TotalSpent: domain.ParseAmount(c.TotalSpent),
		Currency:   strings.ToUpper(c.TotalSpentCurrency),
	}
}

func variantTitle(values []Localized) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if s := normalize.PickLocalized(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " / ")
}

// TransformProduct maps a product. Names pick a locale in es, pt, en order;
// the price is the lowest variant price and inventory sums variants with
// tracked stock.
func TransformProduct(p Product, workspaceID string) *domain.EcommerceProduct {
	status := "draft"
	if p.Published {
		status = "active"
	}
	product := &domain.EcommerceProduct{
		EntityBase:      domain.NewEntityBase(workspaceID, domain.ConnectorTiendanube, externalID(p.ID), p.CreatedAt.Ptr()),
		Title:           normalize.CollapseWhitespace(normalize.PickLocalized(p.Name)),
		Description:     normalize.StripHTML(normalize.PickLocalized(p.Description)),
		Vendor:          p.Brand,
		Handle:          normalize.PickLocalized(p.Handle),
		Status:          status,
		Tags:            normalize.SplitTags(p.Tags),
		SourceUpdatedAt: p.UpdatedAt.Ptr(),
	}

	for _, v := range p.Variants {
		variant := domain.ProductVariant{
			ExternalID:     externalID(v.ID),
			Title:          variantTitle(v.Values),
			SKU:            v.SKU,
			Price:          domain.ParseAmount(v.Price),
			CompareAtPrice: domain.ParseAmount(v.CompareAtPrice),
		}
		if v.Stock != nil {
			variant.InventoryQuantity = int(*v.Stock)
			product.TotalInventory += variant.InventoryQuantity
		}
		product.Variants = append(product.Variants, variant)
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

// TransformOrder maps an order with its products as line items
func TransformOrder(o Order, workspaceID string) *domain.EcommerceOrder {
	order := &domain.EcommerceOrder{
		EntityBase:        domain.NewEntityBase(workspaceID, domain.ConnectorTiendanube, externalID(o.ID), o.CreatedAt.Ptr()),
		OrderNumber:       externalID(o.Number),
		Email:             strings.TrimSpace(o.ContactEmail),
		Currency:          strings.ToUpper(o.Currency),
		Subtotal:          domain.ParseAmount(o.Subtotal),
		TotalDiscounts:    domain.ParseAmount(o.Discount),
		TotalPrice:        domain.ParseAmount(o.Total),
		FinancialStatus:   o.PaymentStatus,
		FulfillmentStatus: o.ShippingStatus,
		CancelledAt:       o.CancelledAt.Ptr(),
		SourceUpdatedAt:   o.UpdatedAt.Ptr(),
	}
	if o.Customer != nil {
		order.CustomerExternalID = externalID(o.Customer.ID)
	}
	for _, li := range o.Products {
		order.LineItems = append(order.LineItems, domain.OrderLineItem{
			ExternalID:        externalID(li.ID),
			ProductExternalID: externalID(li.ProductID),
			VariantExternalID: externalID(li.VariantID),
			Title:             li.Name,
			SKU:               li.SKU,
			Quantity:          int(li.Quantity),
			Price:             domain.ParseAmount(li.Price),
		})
	}
	return order
}
