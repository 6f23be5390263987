package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ErrImmutableRow is returned when code attempts to update an append-only or snapshot row.
var ErrImmutableRow = errors.New("row is immutable")

// OrderStatusHistory is one append-only entry of the fulfillment timeline.
type OrderStatusHistory struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	Status         enums.OrderStatus  `gorm:"column:status;size:32;not null"`
	PreviousStatus *enums.OrderStatus `gorm:"column:previous_status;size:32"`
	Notes          *string            `gorm:"column:notes"`
	Actor          string             `gorm:"column:actor;size:150;not null"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}

func (h *OrderStatusHistory) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRow
}

// OrderPaymentHistory is one append-only entry of the payment timeline.
type OrderPaymentHistory struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentStatus         enums.PaymentStatus  `gorm:"column:payment_status;size:32;not null"`
	PreviousPaymentStatus *enums.PaymentStatus `gorm:"column:previous_payment_status;size:32"`
	Notes                 *string              `gorm:"column:notes"`
	Actor                 string               `gorm:"column:actor;size:150;not null"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (h *OrderPaymentHistory) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}

func (h *OrderPaymentHistory) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRow
}

// InventoryLog records a stock movement against a product or variant.
type InventoryLog struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID              `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID *uuid.UUID             `gorm:"column:variant_id;type:uuid"`
	Type      enums.InventoryLogType `gorm:"column:type;size:16;not null"`
	Quantity  int                    `gorm:"column:quantity;not null"`
	Reference *string                `gorm:"column:reference;size:64"`
	Notes     *string                `gorm:"column:notes"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (l *InventoryLog) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
