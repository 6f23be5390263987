// Package catalog resolves purchasable products and variants for the cart and
// checkout. It never writes catalog rows.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/stock"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Purchasable is the live view of a product, or one of its variants, that can
// be added to a cart or ordered.
type Purchasable struct {
	Product   models.Product
	Variant   *models.ProductVariant
	UnitPrice decimal.Decimal
	Available int
}

// Target returns the stock row backing the purchasable.
func (p *Purchasable) Target() stock.Target {
	target := stock.Target{ProductID: p.Product.ID}
	if p.Variant != nil {
		id := p.Variant.ID
		target.VariantID = &id
	}
	return target
}

// Name is the product name shown to customers.
func (p *Purchasable) Name() string {
	return p.Product.Name
}

// SKU prefers the variant SKU when a variant is selected.
func (p *Purchasable) SKU() string {
	if p.Variant != nil {
		return p.Variant.SKU
	}
	return p.Product.SKU
}

// VariantName returns the selected variant's name, if any.
func (p *Purchasable) VariantName() *string {
	if p.Variant == nil {
		return nil
	}
	name := p.Variant.Name
	return &name
}

// EnsureStock fails with INSUFFICIENT_STOCK when fewer than qty units are available.
func (p *Purchasable) EnsureStock(qty int) error {
	if qty > p.Available {
		return stock.InsufficientStockError(p.Target(), p.Name(), qty, p.Available)
	}
	return nil
}

// Resolver loads purchasables through the bound connection.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// WithTx binds the resolver to a transaction.
func (r *Resolver) WithTx(tx *gorm.DB) *Resolver {
	if tx == nil {
		return r
	}
	return &Resolver{db: tx}
}

// Resolve loads the product and optional variant, failing with
// PRODUCT_UNAVAILABLE when either is missing, inactive, soft-deleted, or the
// variant belongs to another product.
func (r *Resolver) Resolve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*Purchasable, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}

	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", productID).Take(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnavailableError(productID, variantID, "")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Purchasable() {
		return nil, UnavailableError(productID, variantID, product.Name)
	}

	out := &Purchasable{
		Product:   product,
		UnitPrice: product.Price,
		Available: product.StockQuantity,
	}
	if variantID == nil || *variantID == uuid.Nil {
		return out, nil
	}

	var variant models.ProductVariant
	err = r.db.WithContext(ctx).Where("id = ? AND product_id = ?", *variantID, productID).Take(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnavailableError(productID, variantID, product.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}
	if !variant.IsActive {
		return nil, UnavailableError(productID, variantID, product.Name)
	}

	out.Variant = &variant
	out.UnitPrice = variant.Price
	out.Available = variant.StockQuantity
	return out, nil
}

// UnavailableError builds the PRODUCT_UNAVAILABLE error naming the offending line.
func UnavailableError(productID uuid.UUID, variantID *uuid.UUID, name string) error {
	details := map[string]any{"product_id": productID.String()}
	if variantID != nil && *variantID != uuid.Nil {
		details["variant_id"] = variantID.String()
	}
	msg := "product is no longer available"
	if name != "" {
		details["product_name"] = name
		msg = name + " is no longer available"
	}
	return pkgerrors.New(pkgerrors.CodeProductUnavailable, msg).WithDetails(details)
}
