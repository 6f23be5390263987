package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// OrderSummary is one row of an order listing.
type OrderSummary struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	Status             enums.OrderStatus   `json:"status"`
	StatusLabel        string              `json:"status_label"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	PaymentStatusLabel string              `json:"payment_status_label"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	Currency           enums.Currency      `json:"currency"`
	TotalAmount        string              `json:"total_amount"`
	CreatedAt          time.Time           `json:"created_at"`
}

// OrderDetail is the full order with its line snapshots and both timelines.
type OrderDetail struct {
	OrderSummary
	Subtotal        string              `json:"subtotal"`
	DiscountAmount  string              `json:"discount_amount"`
	ShippingAmount  string              `json:"shipping_amount"`
	TaxAmount       string              `json:"tax_amount"`
	ShippingAddress types.Address       `json:"shipping_address"`
	BillingAddress  types.Address       `json:"billing_address"`
	CustomerNotes   *string             `json:"customer_notes,omitempty"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	Carrier         *string             `json:"carrier,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	Items           []OrderItem         `json:"items"`
	StatusHistory   []StatusEntry       `json:"status_history"`
	PaymentHistory  []PaymentEntry      `json:"payment_history"`
	AllowedStatuses []enums.OrderStatus `json:"allowed_statuses,omitempty"`
}

type OrderItem struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductName    string     `json:"product_name"`
	ProductSKU     string     `json:"product_sku"`
	VariantName    *string    `json:"variant_name,omitempty"`
	Quantity       int        `json:"quantity"`
	UnitPrice      string     `json:"unit_price"`
	DiscountAmount string     `json:"discount_amount"`
	TaxAmount      string     `json:"tax_amount"`
	TotalPrice     string     `json:"total_price"`
}

type StatusEntry struct {
	Status         enums.OrderStatus  `json:"status"`
	PreviousStatus *enums.OrderStatus `json:"previous_status,omitempty"`
	Notes          *string            `json:"notes,omitempty"`
	Actor          string             `json:"actor"`
	CreatedAt      time.Time          `json:"created_at"`
}

type PaymentEntry struct {
	PaymentStatus         enums.PaymentStatus  `json:"payment_status"`
	PreviousPaymentStatus *enums.PaymentStatus `json:"previous_payment_status,omitempty"`
	Notes                 *string              `json:"notes,omitempty"`
	Actor                 string               `json:"actor"`
	CreatedAt             time.Time            `json:"created_at"`
}

// OrderPage is a cursor page of summaries.
type OrderPage struct {
	Items      []OrderSummary `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func NewOrderSummary(order *models.Order) OrderSummary {
	return OrderSummary{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		StatusLabel:        order.Status.Label(),
		PaymentStatus:      order.PaymentStatus,
		PaymentStatusLabel: order.PaymentStatus.Label(),
		PaymentMethod:      order.PaymentMethod,
		Currency:           order.Currency,
		TotalAmount:        order.TotalAmount.StringFixed(2),
		CreatedAt:          order.CreatedAt,
	}
}

func NewOrderPage(page *types.Page[models.Order]) OrderPage {
	out := OrderPage{Items: []OrderSummary{}}
	if page == nil {
		return out
	}
	for i := range page.Items {
		out.Items = append(out.Items, NewOrderSummary(&page.Items[i]))
	}
	out.NextCursor = page.NextCursor
	return out
}

// NewOrderDetail renders order. allowed lists the statuses an admin may move
// it to; customers get nil.
func NewOrderDetail(order *models.Order, allowed []enums.OrderStatus) OrderDetail {
	out := OrderDetail{
		OrderSummary:    NewOrderSummary(order),
		Subtotal:        order.Subtotal.StringFixed(2),
		DiscountAmount:  order.DiscountAmount.StringFixed(2),
		ShippingAmount:  order.ShippingAmount.StringFixed(2),
		TaxAmount:       order.TaxAmount.StringFixed(2),
		ShippingAddress: order.Shipping,
		BillingAddress:  order.Billing,
		CustomerNotes:   order.CustomerNotes,
		CouponCode:      order.CouponCode,
		TrackingNumber:  order.TrackingNumber,
		Carrier:         order.Carrier,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		Items:           make([]OrderItem, 0, len(order.Items)),
		StatusHistory:   make([]StatusEntry, 0, len(order.StatusHistory)),
		PaymentHistory:  make([]PaymentEntry, 0, len(order.PaymentHistory)),
		AllowedStatuses: allowed,
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, OrderItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			VariantName:    item.VariantName,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice.StringFixed(2),
			DiscountAmount: item.DiscountAmount.StringFixed(2),
			TaxAmount:      item.TaxAmount.StringFixed(2),
			TotalPrice:     item.TotalPrice.StringFixed(2),
		})
	}
	for _, h := range order.StatusHistory {
		out.StatusHistory = append(out.StatusHistory, StatusEntry{
			Status:         h.Status,
			PreviousStatus: h.PreviousStatus,
			Notes:          h.Notes,
			Actor:          h.Actor,
			CreatedAt:      h.CreatedAt,
		})
	}
	for _, h := range order.PaymentHistory {
		out.PaymentHistory = append(out.PaymentHistory, PaymentEntry{
			PaymentStatus:         h.PaymentStatus,
			PreviousPaymentStatus: h.PreviousPaymentStatus,
			Notes:                 h.Notes,
			Actor:                 h.Actor,
			CreatedAt:             h.CreatedAt,
		})
	}
	return out
}
