package grpcsvc

import (
	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func toAPIBasket(b domain.Basket) *storefrontv1.Basket {
	lines := make([]*storefrontv1.BasketLine, 0, len(b.Lines))
	for _, line := range b.Lines {
		lines = append(lines, &storefrontv1.BasketLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			AddedAt:   line.AddedAt.Unix(),
		})
	}
	return &storefrontv1.Basket{
		ID:      b.ID,
		UserID:  b.UserID,
		Status:  string(b.Status),
		Lines:   lines,
		Version: b.Version,
	}
}

func toAPIOrder(o domain.Order) *storefrontv1.Order {
	lines := make([]*storefrontv1.OrderLine, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, &storefrontv1.OrderLine{
			ID:           line.ID,
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit.StringFixed(2),
			Subtotal:     line.Subtotal.StringFixed(2),
		})
	}

	a := o.Address
	return &storefrontv1.Order{
		ID:                 o.ID,
		UserID:             o.UserID,
		Status:             string(o.Status),
		OrderDate:          o.OrderDate.Unix(),
		TotalAmount:        o.TotalAmount.StringFixed(2),
		PayableAmount:      o.PayableAmount().StringFixed(2),
		DiscountCode:       o.DiscountCode,
		DiscountPercentOff: o.DiscountPercentOff,
		Address: &storefrontv1.Address{
			Recipient:  a.Recipient,
			Street:     a.Street,
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
		},
		Lines:   lines,
		Version: o.Version,
	}
}

func fromAPIAddressChanges(c *storefrontv1.AddressChanges) *domain.AddressChanges {
	if c == nil {
		return nil
	}
	changes := &domain.AddressChanges{
		Recipient:  c.Recipient,
		Street:     c.Street,
		City:       c.City,
		PostalCode: c.PostalCode,
		Country:    c.Country,
		Phone:      c.Phone,
	}
	if changes.Empty() {
		return nil
	}
	return changes
}
