package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Target names the row whose stock is tracked: the variant when one is set,
// otherwise the product itself.
type Target struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

// ForVariant reports whether the target is a variant row.
func (t Target) ForVariant() bool {
	return t.VariantID != nil && *t.VariantID != uuid.Nil
}

func (t Target) table() string {
	if t.ForVariant() {
		return "product_variants"
	}
	return "products"
}

func (t Target) rowID() uuid.UUID {
	if t.ForVariant() {
		return *t.VariantID
	}
	return t.ProductID
}

// Details renders the target for error payloads.
func (t Target) Details() map[string]any {
	details := map[string]any{"product_id": t.ProductID.String()}
	if t.ForVariant() {
		details["variant_id"] = t.VariantID.String()
	}
	return details
}

func (t Target) String() string {
	if t.ForVariant() {
		return fmt.Sprintf("variant %s of product %s", t.VariantID, t.ProductID)
	}
	return fmt.Sprintf("product %s", t.ProductID)
}

// InsufficientStockError builds the caller-facing error naming the target.
func InsufficientStockError(target Target, name string, requested, available int) error {
	details := target.Details()
	details["requested"] = requested
	if available >= 0 {
		details["available"] = available
	}
	label := target.String()
	if name != "" {
		details["product_name"] = name
		label = name
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for "+label).WithDetails(details)
}

// Ledger is the only writer of stock_quantity. Decrements are a single
// conditional UPDATE so the database serializes concurrent callers on the row
// and the quantity can never go negative.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// DecrementIfAvailable removes qty units from the target when at least qty are
// available, and records an inventory log row. It must run inside the
// caller's transaction so a later failure rolls the decrement back.
func (l *Ledger) DecrementIfAvailable(ctx context.Context, tx *gorm.DB, target Target, qty int, reference string) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if target.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	res := tx.WithContext(ctx).
		Table(target.table()).
		Where("id = ? AND stock_quantity >= ?", target.rowID(), qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return InsufficientStockError(target, "", qty, -1)
	}

	entry := models.InventoryLog{
		ProductID: target.ProductID,
		VariantID: target.VariantID,
		Type:      enums.InventoryLogOut,
		Quantity:  qty,
	}
	if reference != "" {
		entry.Reference = &reference
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record inventory log")
	}
	return nil
}

// Available reads the live stock figure for the target.
func (l *Ledger) Available(ctx context.Context, db *gorm.DB, target Target) (int, error) {
	var qty int
	err := db.WithContext(ctx).
		Table(target.table()).
		Select("stock_quantity").
		Where("id = ?", target.rowID()).
		Scan(&qty).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read stock")
	}
	return qty, nil
}
