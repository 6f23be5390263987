package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var statusDescriptions = map[enums.OrderStatus]string{
	enums.OrderStatusPending:          "Order received, awaiting confirmation",
	enums.OrderStatusConfirmed:        "Order confirmed, preparing for processing",
	enums.OrderStatusPreparing:        "Order is being prepared",
	enums.OrderStatusReadyForDelivery: "Order ready for delivery",
	enums.OrderStatusOutForDelivery:   "Order out for delivery",
	enums.OrderStatusDelivered:        "Order delivered - Payment collected",
	enums.OrderStatusCancelled:        "Order has been cancelled",
	enums.OrderStatusRefunded:         "Order has been refunded",
}

// StatusDescription is the customer-facing sentence shown next to a status.
func StatusDescription(status enums.OrderStatus) string {
	if desc, ok := statusDescriptions[status]; ok {
		return desc
	}
	return "Status updated"
}

// TrackingEvent is one entry of the fulfillment timeline.
type TrackingEvent struct {
	Date        time.Time         `json:"date"`
	Status      enums.OrderStatus `json:"status"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Notes       *string           `json:"notes,omitempty"`
}

// PaymentEvent is one entry of the payment timeline.
type PaymentEvent struct {
	Date          time.Time           `json:"date"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Label         string              `json:"label"`
	Notes         *string             `json:"notes,omitempty"`
}

// Tracking is the read projection returned to customers.
type Tracking struct {
	OrderNumber        string              `json:"order_number"`
	Status             enums.OrderStatus   `json:"status"`
	StatusLabel        string              `json:"status_label"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	PaymentStatusLabel string              `json:"payment_status_label"`
	Carrier            *string             `json:"carrier,omitempty"`
	TrackingNumber     *string             `json:"tracking_number,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	Events             []TrackingEvent     `json:"events"`
	PaymentEvents      []PaymentEvent      `json:"payment_events"`
}

// BuildTracking projects an order and its timelines, newest entries first.
// Histories are expected in chronological order as FindByID loads them.
func BuildTracking(order *models.Order) Tracking {
	out := Tracking{
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		StatusLabel:        order.Status.Label(),
		PaymentStatus:      order.PaymentStatus,
		PaymentStatusLabel: order.PaymentStatus.Label(),
		Carrier:            order.Carrier,
		TrackingNumber:     order.TrackingNumber,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		Events:             make([]TrackingEvent, 0, len(order.StatusHistory)),
		PaymentEvents:      make([]PaymentEvent, 0, len(order.PaymentHistory)),
	}
	for i := len(order.StatusHistory) - 1; i >= 0; i-- {
		h := order.StatusHistory[i]
		out.Events = append(out.Events, TrackingEvent{
			Date:        h.CreatedAt,
			Status:      h.Status,
			Label:       h.Status.Label(),
			Description: StatusDescription(h.Status),
			Notes:       h.Notes,
		})
	}
	for i := len(order.PaymentHistory) - 1; i >= 0; i-- {
		h := order.PaymentHistory[i]
		out.PaymentEvents = append(out.PaymentEvents, PaymentEvent{
			Date:          h.CreatedAt,
			PaymentStatus: h.PaymentStatus,
			Label:         h.PaymentStatus.Label(),
			Notes:         h.Notes,
		})
	}
	return out
}
