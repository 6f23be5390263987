package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByOwner loads the owner's cart with its lines and their catalog rows.
func (r *Repository) FindByOwner(ctx context.Context, owner types.Owner) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Scopes(models.OwnedBy(owner)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Items.Product").
		Preload("Items.Variant").
		Take(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts an empty cart row.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Omit("Items").Create(cart).Error
}

// SaveTotals persists the derived totals of the cart.
func (r *Repository) SaveTotals(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]any{
			"total_amount": cart.TotalAmount,
			"total_items":  cart.TotalItems,
			"updated_at":   r.db.NowFunc(),
		}).Error
}

// CreateItem inserts a cart line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Omit("Product", "Variant").Create(item).Error
}

// SaveItem updates quantity and prices of an existing line.
func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", item.ID, item.CartID).
		Updates(map[string]any{
			"quantity":    item.Quantity,
			"unit_price":  item.UnitPrice,
			"total_price": item.TotalPrice,
			"updated_at":  r.db.NowFunc(),
		}).Error
}

// DeleteItem removes a single line from the cart.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{}).Error
}

// ClearItems removes every line of the cart.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// DeleteAbandonedSessionCarts removes anonymous carts untouched since cutoff,
// lines first so the delete does not depend on cascading foreign keys.
func (r *Repository) DeleteAbandonedSessionCarts(ctx context.Context, cutoff time.Time) (int64, error) {
	stale := r.db.Model(&models.Cart{}).
		Select("id").
		Where("user_id IS NULL AND updated_at < ?", cutoff)

	if err := r.db.WithContext(ctx).
		Where("cart_id IN (?)", stale).
		Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}

	res := r.db.WithContext(ctx).
		Where("user_id IS NULL AND updated_at < ?", cutoff).
		Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
