package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the immutable priced result of a checkout. After creation only the
// status machine touches it.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string              `gorm:"column:order_number;size:32;not null;uniqueIndex"`
	UserID         *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	SessionID      *string             `gorm:"column:session_id;size:100;index"`
	Status         enums.OrderStatus   `gorm:"column:status;size:32;not null;index"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;size:32;not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;size:32;not null"`
	Currency       enums.Currency      `gorm:"column:currency;size:3;not null"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(10,2);not null"`
	ShippingAmount decimal.Decimal     `gorm:"column:shipping_amount;type:numeric(10,2);not null"`
	TaxAmount      decimal.Decimal     `gorm:"column:tax_amount;type:numeric(10,2);not null"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Shipping       types.Address       `gorm:"embedded;embeddedPrefix:shipping_"`
	Billing        types.Address       `gorm:"embedded;embeddedPrefix:billing_"`
	CustomerNotes  *string             `gorm:"column:customer_notes"`
	CouponCode     *string             `gorm:"column:coupon_code;size:50"`
	TrackingNumber *string             `gorm:"column:tracking_number;size:100"`
	Carrier        *string             `gorm:"column:carrier;size:50"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	ShippedAt      *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time          `gorm:"column:delivered_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      *time.Time          `gorm:"column:deleted_at;index"`

	Items          []OrderItem           `gorm:"foreignKey:OrderID"`
	StatusHistory  []OrderStatusHistory  `gorm:"foreignKey:OrderID"`
	PaymentHistory []OrderPaymentHistory `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// Owner returns the identity the order was placed by.
func (o *Order) Owner() types.Owner {
	owner := types.Owner{UserID: o.UserID}
	if o.SessionID != nil {
		owner.SessionID = *o.SessionID
	}
	return owner
}

// BelongsTo reports whether the order was placed by the provided owner.
func (o *Order) BelongsTo(owner types.Owner) bool {
	if owner.IsUser() {
		return o.UserID != nil && *o.UserID == *owner.UserID
	}
	return o.UserID == nil && o.SessionID != nil && owner.SessionID != "" && *o.SessionID == owner.SessionID
}

// OrderItem is the immutable line snapshot taken at checkout. Product and
// variant ids are kept for reference only; display data lives on the row.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	VariantID      *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	ProductName    string          `gorm:"column:product_name;size:255;not null"`
	ProductSKU     string          `gorm:"column:product_sku;size:100;not null"`
	VariantName    *string         `gorm:"column:variant_name;size:255"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(10,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"column:tax_amount;type:numeric(10,2);not null"`
	TotalPrice     decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

func (i *OrderItem) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRow
}
