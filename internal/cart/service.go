package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productResolver interface {
	Resolve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*catalog.Purchasable, error)
}

type resolverFactory func(tx *gorm.DB) productResolver

// Service exposes the cart aggregate operations for a single owner.
type Service interface {
	Get(ctx context.Context, owner types.Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner types.Owner, input AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, owner types.Owner, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner types.Owner, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, owner types.Owner) (*models.Cart, error)
}

// AddItemInput is a request to put quantity units of a product (or variant) in the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

type service struct {
	repo     CartRepository
	tx       txRunner
	resolver resolverFactory
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, resolver *catalog.Resolver, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("catalog resolver required")
	}
	bind := func(tx *gorm.DB) productResolver {
		return resolver.WithTx(tx)
	}
	return &service{
		repo:     repo,
		tx:       tx,
		resolver: bind,
		logg:     logg,
	}, nil
}

// Get returns the owner's cart, or an unsaved empty cart when none exists yet.
func (s *service) Get(ctx context.Context, owner types.Owner) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner is required")
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(owner), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// AddItem merges the request into the existing (product, variant) line or
// appends a new one. The quantity cap and stock are checked against the
// merged quantity.
func (s *service) AddItem(ctx context.Context, owner types.Owner, input AddItemInput) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if err := validateQuantity(input.Quantity, MinQuantity); err != nil {
		return nil, err
	}
	if input.VariantID != nil && *input.VariantID == uuid.Nil {
		input.VariantID = nil
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadOrCreate(ctx, repo, owner)
		if err != nil {
			return err
		}

		item, err := s.resolver(tx).Resolve(ctx, input.ProductID, input.VariantID)
		if err != nil {
			return err
		}

		idx := cart.FindLine(input.ProductID, input.VariantID)
		quantity := input.Quantity
		if idx >= 0 {
			quantity += cart.Items[idx].Quantity
			if quantity > MaxQuantity {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a cart line holds at most %d units", MaxQuantity)).
					WithDetails(map[string]any{"quantity": quantity, "in_cart": cart.Items[idx].Quantity})
			}
		}
		if err := item.EnsureStock(quantity); err != nil {
			return err
		}

		if idx >= 0 {
			cart.Items[idx].Quantity = quantity
			cart.Items[idx].UnitPrice = item.UnitPrice
			cart.Recalculate()
			if err := repo.SaveItem(ctx, &cart.Items[idx]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
		} else {
			cart.Items = append(cart.Items, models.CartItem{
				CartID:    cart.ID,
				ProductID: input.ProductID,
				VariantID: input.VariantID,
				Quantity:  quantity,
				UnitPrice: item.UnitPrice,
			})
			cart.Recalculate()
			if err := repo.CreateItem(ctx, &cart.Items[len(cart.Items)-1]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart item")
			}
		}

		return s.saveTotals(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logDebug(ctx, owner, "cart.item_added")
	return s.Get(ctx, owner)
}

// UpdateItem sets the line quantity; zero removes the line.
func (s *service) UpdateItem(ctx context.Context, owner types.Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner is required")
	}
	if err := validateQuantity(quantity, 0); err != nil {
		return nil, err
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, owner, itemID)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, idx, err := s.findItem(ctx, repo, owner, itemID)
		if err != nil {
			return err
		}

		line := cart.Items[idx]
		item, err := s.resolver(tx).Resolve(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return err
		}
		if err := item.EnsureStock(quantity); err != nil {
			return err
		}

		cart.Items[idx].Quantity = quantity
		cart.Items[idx].UnitPrice = item.UnitPrice
		cart.Recalculate()
		if err := repo.SaveItem(ctx, &cart.Items[idx]); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		return s.saveTotals(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logDebug(ctx, owner, "cart.item_updated")
	return s.Get(ctx, owner)
}

// RemoveItem deletes a line owned by the caller.
func (s *service) RemoveItem(ctx context.Context, owner types.Owner, itemID uuid.UUID) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, idx, err := s.findItem(ctx, repo, owner, itemID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		cart.Recalculate()
		return s.saveTotals(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logDebug(ctx, owner, "cart.item_removed")
	return s.Get(ctx, owner)
}

// Clear empties the owner's cart. Clearing a missing cart is a no-op.
func (s *service) Clear(ctx context.Context, owner types.Owner) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByOwner(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		cart.Items = nil
		cart.Recalculate()
		return s.saveTotals(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logDebug(ctx, owner, "cart.cleared")
	return s.Get(ctx, owner)
}

func (s *service) loadOrCreate(ctx context.Context, repo CartRepository, owner types.Owner) (*models.Cart, error) {
	cart, err := repo.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = emptyCart(owner)
	if err := repo.Create(ctx, cart); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart was created concurrently, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return cart, nil
}

func (s *service) findItem(ctx context.Context, repo CartRepository, owner types.Owner, itemID uuid.UUID) (*models.Cart, int, error) {
	if itemID == uuid.Nil {
		return nil, -1, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	cart, err := repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, -1, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, -1, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	idx := cart.FindItem(itemID)
	if idx < 0 {
		return nil, -1, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return cart, idx, nil
}

func (s *service) saveTotals(ctx context.Context, repo CartRepository, cart *models.Cart) error {
	if err := repo.SaveTotals(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart totals")
	}
	return nil
}

func (s *service) logDebug(ctx context.Context, owner types.Owner, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Debug(s.logg.WithField(ctx, "owner", owner.Reference()), msg)
}

func validateQuantity(quantity, lower int) error {
	if quantity < lower || quantity > MaxQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between %d and %d", lower, MaxQuantity)).
			WithDetails(map[string]any{"quantity": quantity})
	}
	return nil
}

func emptyCart(owner types.Owner) *models.Cart {
	return &models.Cart{
		UserID:      owner.UserPtr(),
		SessionID:   owner.SessionPtr(),
		TotalAmount: decimal.Zero,
		Items:       []models.CartItem{},
	}
}
