package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/stock"
	pricing "github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	DecrementIfAvailable(ctx context.Context, tx *gorm.DB, target stock.Target, qty int, reference string) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns an owner's cart into an order.
type Service interface {
	Execute(ctx context.Context, input Input) (*models.Order, error)
}

// Input is a checkout request for the owner's current cart.
type Input struct {
	Owner types.Owner
	helpers.OrderDetails
}

// Deps wires the checkout service.
type Deps struct {
	Tx       txRunner
	Carts    cart.CartRepository
	Orders   orders.Repository
	Resolver *catalog.Resolver
	Ledger   stockLedger
	Outbox   outboxPublisher
	Policy   pricing.PricingPolicy
	Numbers  *OrderNumberGenerator
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	carts    cart.CartRepository
	orders   orders.Repository
	resolver *catalog.Resolver
	ledger   stockLedger
	outbox   outboxPublisher
	policy   pricing.PricingPolicy
	numbers  *OrderNumberGenerator
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("catalog resolver required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Numbers == nil {
		deps.Numbers = NewOrderNumberGenerator("")
	}
	if deps.Policy.Currency == "" {
		deps.Policy = pricing.DefaultPolicy()
	}
	return &service{
		tx:       deps.Tx,
		carts:    deps.Carts,
		orders:   deps.Orders,
		resolver: deps.Resolver,
		ledger:   deps.Ledger,
		outbox:   deps.Outbox,
		policy:   deps.Policy,
		numbers:  deps.Numbers,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
	}, nil
}

// Execute validates the cart against the live catalog, prices it, and in one
// transaction creates the order, its items and first history entry, decrements
// stock per line, queues order_created and empties the cart. Any failure
// leaves every table as it was.
func (s *service) Execute(ctx context.Context, input Input) (*models.Order, error) {
	order, err := s.execute(ctx, input)
	if err != nil {
		code := pkgerrors.CodeInternal
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		s.metrics.IncRejected(string(code))
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"owner": input.Owner.Reference(),
				"code":  code,
			})
			if pkgerrors.IsCallerError(err) {
				s.logg.Warn(logCtx, "checkout.rejected")
			} else {
				s.logg.Error(logCtx, "checkout.failed", err)
			}
		}
		return nil, err
	}

	s.metrics.IncCreated(order.PaymentMethod.String())
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"order_number": order.OrderNumber,
			"total":        order.TotalAmount.StringFixed(2),
			"items":        len(order.Items),
		})
		s.logg.Info(logCtx, "checkout.completed")
	}
	return order, nil
}

func (s *service) execute(ctx context.Context, input Input) (*models.Order, error) {
	if input.Owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	details := input.OrderDetails.Normalize()
	if err := helpers.ValidateOrderDetails(details); err != nil {
		return nil, err
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		resolver := s.resolver.WithTx(tx)

		current, err := carts.FindByOwner(ctx, input.Owner)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if current.IsEmpty() {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		// Every line is checked before the first write.
		resolved := make([]*catalog.Purchasable, len(current.Items))
		lines := make([]pricing.Line, len(current.Items))
		for i, item := range current.Items {
			p, err := resolver.Resolve(ctx, item.ProductID, item.VariantID)
			if err != nil {
				return err
			}
			if err := p.EnsureStock(item.Quantity); err != nil {
				return err
			}
			resolved[i] = p
			lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
		}
		quote := s.policy.Quote(lines)

		order := &models.Order{
			UserID:         input.Owner.UserPtr(),
			SessionID:      input.Owner.SessionPtr(),
			Status:         enums.OrderStatusPending,
			PaymentStatus:  enums.PaymentStatusPending,
			PaymentMethod:  details.PaymentMethod,
			Currency:       s.policy.Currency,
			Subtotal:       quote.Subtotal,
			DiscountAmount: quote.Discount,
			ShippingAmount: quote.Shipping,
			TaxAmount:      quote.Tax,
			TotalAmount:    quote.Total,
			Shipping:       details.ShippingAddress,
			Billing:        details.BillingAddress,
			CustomerNotes:  details.CustomerNotes,
			CouponCode:     details.CouponCode,
		}
		number, err := s.numbers.Claim(ctx, ordersRepo.ExistsByNumber, func(ctx context.Context, candidate string) (bool, error) {
			order.OrderNumber = candidate
			// The savepoint keeps the outer transaction usable after a
			// unique violation so the next candidate can be inserted.
			err := tx.Transaction(func(sp *gorm.DB) error {
				return ordersRepo.WithTx(sp).Create(ctx, order)
			})
			if err == nil {
				return false, nil
			}
			if isOrderNumberCollision(err) {
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "order_number", candidate), "checkout.order_number_collision")
				}
				return true, nil
			}
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		})
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, len(current.Items))
		for i, item := range current.Items {
			productID := item.ProductID
			items[i] = models.OrderItem{
				OrderID:        order.ID,
				ProductID:      &productID,
				VariantID:      item.VariantID,
				ProductName:    resolved[i].Name(),
				ProductSKU:     resolved[i].SKU(),
				VariantName:    resolved[i].VariantName(),
				Quantity:       item.Quantity,
				UnitPrice:      item.UnitPrice,
				DiscountAmount: decimal.Zero,
				TaxAmount:      quote.Lines[i].Tax,
				TotalPrice:     quote.Lines[i].Total,
			}
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
		}

		for i, item := range current.Items {
			target := resolved[i].Target()
			if err := s.ledger.DecrementIfAvailable(ctx, tx, target, item.Quantity, number); err != nil {
				if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
					return stock.InsufficientStockError(target, resolved[i].Name(), item.Quantity, -1)
				}
				return err
			}
		}

		note := "Order created - " + details.PaymentMethod.Label()
		if err := ordersRepo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  enums.OrderStatusPending,
			Notes:   &note,
			Actor:   input.Owner.Reference(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append status history")
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Reference: input.Owner.Reference()},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				PaymentMethod: order.PaymentMethod,
				TotalAmount:   order.TotalAmount,
				Currency:      order.Currency,
				ItemCount:     len(items),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}

		if err := carts.ClearItems(ctx, current.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		current.Items = nil
		current.Recalculate()
		if err := carts.SaveTotals(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset cart totals")
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return order, nil
}

func isOrderNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "") && strings.Contains(err.Error(), "order_number")
}
