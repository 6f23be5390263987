package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Cart is the shopper-facing view of a cart.
type Cart struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	TotalAmount string     `json:"total_amount"`
	TotalItems  int        `json:"total_items"`
	Items       []CartItem `json:"items"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type CartItem struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	ProductName string     `json:"product_name,omitempty"`
	VariantName *string    `json:"variant_name,omitempty"`
	SKU         string     `json:"sku,omitempty"`
	Quantity    int        `json:"quantity"`
	UnitPrice   string     `json:"unit_price"`
	TotalPrice  string     `json:"total_price"`
}

// NewCart renders a cart. A cart that was never persisted has no id.
func NewCart(cart *models.Cart) Cart {
	out := Cart{
		TotalAmount: "0.00",
		Items:       []CartItem{},
	}
	if cart == nil {
		return out
	}
	if cart.ID != uuid.Nil {
		id := cart.ID
		updated := cart.UpdatedAt
		out.ID = &id
		out.UpdatedAt = &updated
	}
	out.TotalAmount = cart.TotalAmount.StringFixed(2)
	out.TotalItems = cart.TotalItems
	for _, item := range cart.Items {
		line := CartItem{
			ID:         item.ID,
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.StringFixed(2),
			TotalPrice: item.TotalPrice.StringFixed(2),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.SKU = item.Product.SKU
		}
		if item.Variant != nil {
			name := item.Variant.Name
			line.VariantName = &name
			line.SKU = item.Variant.SKU
		}
		out.Items = append(out.Items, line)
	}
	return out
}
