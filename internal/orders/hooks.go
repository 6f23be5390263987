package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// CODPaymentNote is recorded on the payment timeline when a cash on delivery
// order is delivered.
const CODPaymentNote = "Payment received - Cash on delivery"

// HookContext is what a post-transition hook sees. Writes must go through Tx
// or Repo, which is bound to it.
type HookContext struct {
	Tx       *gorm.DB
	Repo     Repository
	Order    *models.Order
	Previous enums.OrderStatus
	Input    TransitionInput
	Now      time.Time
}

// Hook runs inside the transition's transaction after the status moved.
type Hook func(ctx context.Context, hc *HookContext) error

type hookEntry struct {
	target enums.OrderStatus
	method enums.PaymentMethod
	name   string
	hook   Hook
}

// HookRegistry maps (target status, payment method) to side effects. An empty
// payment method matches every method. Hooks run in registration order.
type HookRegistry struct {
	entries []hookEntry
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// Register adds a hook for transitions into target.
func (r *HookRegistry) Register(target enums.OrderStatus, method enums.PaymentMethod, name string, hook Hook) {
	if hook == nil {
		return
	}
	r.entries = append(r.entries, hookEntry{target: target, method: method, name: name, hook: hook})
}

// Matching lists the names of hooks that apply, mostly for logs and tests.
func (r *HookRegistry) Matching(target enums.OrderStatus, method enums.PaymentMethod) []string {
	var names []string
	for _, entry := range r.entries {
		if entry.matches(target, method) {
			names = append(names, entry.name)
		}
	}
	return names
}

// Run executes every hook registered for the order's new status and payment method.
func (r *HookRegistry) Run(ctx context.Context, hc *HookContext) error {
	if r == nil {
		return nil
	}
	for _, entry := range r.entries {
		if !entry.matches(hc.Order.Status, hc.Order.PaymentMethod) {
			continue
		}
		if err := entry.hook(ctx, hc); err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "run "+entry.name+" hook")
		}
	}
	return nil
}

func (e hookEntry) matches(target enums.OrderStatus, method enums.PaymentMethod) bool {
	return e.target == target && (e.method == "" || e.method == method)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DefaultHooks wires the fulfillment timestamps and the cash on delivery
// payment capture.
func DefaultHooks(emitter outboxEmitter) *HookRegistry {
	reg := NewHookRegistry()
	reg.Register(enums.OrderStatusOutForDelivery, "", "mark_shipped", markShipped)
	reg.Register(enums.OrderStatusDelivered, "", "mark_delivered", markDelivered)
	reg.Register(enums.OrderStatusDelivered, enums.PaymentMethodCashOnDelivery, "collect_cash_payment", collectCashPayment(emitter))
	return reg
}

func markShipped(ctx context.Context, hc *HookContext) error {
	fields := map[string]any{"shipped_at": hc.Now}
	hc.Order.ShippedAt = &hc.Now
	if hc.Input.TrackingNumber != nil {
		fields["tracking_number"] = *hc.Input.TrackingNumber
		hc.Order.TrackingNumber = hc.Input.TrackingNumber
	}
	if hc.Input.Carrier != nil {
		fields["carrier"] = *hc.Input.Carrier
		hc.Order.Carrier = hc.Input.Carrier
	}
	return hc.Repo.UpdateFields(ctx, hc.Order.ID, fields)
}

func markDelivered(ctx context.Context, hc *HookContext) error {
	hc.Order.DeliveredAt = &hc.Now
	return hc.Repo.UpdateFields(ctx, hc.Order.ID, map[string]any{"delivered_at": hc.Now})
}

func collectCashPayment(emitter outboxEmitter) Hook {
	return func(ctx context.Context, hc *HookContext) error {
		order := hc.Order
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		previous := order.PaymentStatus
		if err := hc.Repo.UpdateFields(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"paid_at":        hc.Now,
		}); err != nil {
			return err
		}
		order.PaymentStatus = enums.PaymentStatusPaid
		order.PaidAt = &hc.Now

		note := CODPaymentNote
		if err := hc.Repo.AppendPaymentHistory(ctx, &models.OrderPaymentHistory{
			OrderID:               order.ID,
			PaymentStatus:         enums.PaymentStatusPaid,
			PreviousPaymentStatus: &previous,
			Notes:                 &note,
			Actor:                 hc.Input.Actor,
		}); err != nil {
			return err
		}

		if emitter == nil {
			return nil
		}
		return emitter.Emit(ctx, hc.Tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Reference: hc.Input.Actor},
			OccurredAt:    hc.Now,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				PaymentMethod: order.PaymentMethod,
				Amount:        order.TotalAmount,
				PaidAt:        hc.Now,
			},
		})
	}
}
