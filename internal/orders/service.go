package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes reads and lifecycle changes of placed orders.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForOwner(ctx context.Context, owner types.Owner, orderID uuid.UUID) (*models.Order, error)
	ListForOwner(ctx context.Context, owner types.Owner, params pagination.Params) (*types.Page[models.Order], error)
	ListAll(ctx context.Context, filter ListFilter, params pagination.Params) (*types.Page[models.Order], error)
	TransitionTo(ctx context.Context, orderID uuid.UUID, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason, actor string) (*models.Order, error)
	CancelForOwner(ctx context.Context, owner types.Owner, orderID uuid.UUID, reason string) (*models.Order, error)
	CanTransitionTo(order *models.Order, target enums.OrderStatus) bool
	Tracking(ctx context.Context, owner types.Owner, orderID uuid.UUID) (*Tracking, error)
}

// TransitionInput describes a requested status change.
type TransitionInput struct {
	Target         enums.OrderStatus
	Notes          *string
	Actor          string
	TrackingNumber *string
	Carrier        *string
}

type service struct {
	repo    Repository
	tx      txRunner
	machine *Machine
	hooks   *HookRegistry
	outbox  outboxEmitter
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
}

// NewService builds the order lifecycle service. A nil hook registry gets the
// default fulfillment and cash on delivery hooks.
func NewService(repo Repository, tx txRunner, emitter outboxEmitter, hooks *HookRegistry, orderMetrics *metrics.OrderMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if hooks == nil {
		hooks = DefaultHooks(emitter)
	}
	return &service{
		repo:    repo,
		tx:      tx,
		machine: NewMachine(),
		hooks:   hooks,
		outbox:  emitter,
		metrics: orderMetrics,
		logg:    logg,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.load(ctx, s.repo, orderID)
}

// GetForOwner hides orders of other customers behind NOT_FOUND.
func (s *service) GetForOwner(ctx context.Context, owner types.Owner, orderID uuid.UUID) (*models.Order, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !order.BelongsTo(owner) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForOwner(ctx context.Context, owner types.Owner, params pagination.Params) (*types.Page[models.Order], error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	return s.list(ctx, ListFilter{Owner: owner}, params)
}

func (s *service) ListAll(ctx context.Context, filter ListFilter, params pagination.Params) (*types.Page[models.Order], error) {
	filter.Owner = types.Owner{}
	return s.list(ctx, filter, params)
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) (*types.Page[models.Order], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && !filter.CreatedTo.After(*filter.CreatedFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_to must be after date_from")
	}

	rows, err := s.repo.List(ctx, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	items, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	if items == nil {
		items = []models.Order{}
	}
	return &types.Page[models.Order]{Items: items, NextCursor: next}, nil
}

func (s *service) CanTransitionTo(order *models.Order, target enums.OrderStatus) bool {
	if order == nil {
		return false
	}
	return s.machine.CanTransition(order.Status, target)
}

// TransitionTo moves the order along one edge of the lifecycle. The status
// write is a compare-and-set on the status read in the same transaction, so
// two concurrent callers cannot both apply a transition from the same state.
func (s *service) TransitionTo(ctx context.Context, orderID uuid.UUID, input TransitionInput) (*models.Order, error) {
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status").
			WithDetails(map[string]any{"status": input.Target})
	}
	if strings.TrimSpace(input.Actor) == "" {
		input.Actor = "system"
	}

	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		previous, err = s.apply(ctx, tx, orderID, input, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(previous.String(), input.Target.String())
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
			"from":  previous,
			"to":    input.Target,
			"actor": input.Actor,
		})
		s.logg.Info(logCtx, "order.transitioned")
	}
	return s.Get(ctx, orderID)
}

// apply runs the transition inside tx. guard, when set, sees the loaded order
// before anything is written.
func (s *service) apply(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, input TransitionInput, guard func(*models.Order) error) (enums.OrderStatus, error) {
	repo := s.repo.WithTx(tx)
	order, err := s.load(ctx, repo, orderID)
	if err != nil {
		return "", err
	}
	if guard != nil {
		if err := guard(order); err != nil {
			return "", err
		}
	}

	from := order.Status
	if !s.machine.CanTransition(from, input.Target) {
		return "", invalidTransition(from, input.Target, s.machine.Targets(from))
	}

	ok, err := repo.CompareAndSetStatus(ctx, order.ID, from, input.Target)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
			WithDetails(map[string]any{"expected_status": from})
	}
	order.Status = input.Target

	notes := input.Notes
	if notes == nil || strings.TrimSpace(*notes) == "" {
		defaultNote := fmt.Sprintf("Status changed from %s to %s", from, input.Target)
		notes = &defaultNote
	}
	prev := from
	if err := repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
		OrderID:        order.ID,
		Status:         input.Target,
		PreviousStatus: &prev,
		Notes:          notes,
		Actor:          input.Actor,
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append status history")
	}

	hc := &HookContext{
		Tx:       tx,
		Repo:     repo,
		Order:    order,
		Previous: from,
		Input:    input,
		Now:      tx.NowFunc(),
	}
	if err := s.hooks.Run(ctx, hc); err != nil {
		return "", err
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{Reference: input.Actor},
		OccurredAt:    hc.Now,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			From:        from,
			To:          input.Target,
			Notes:       notes,
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
	}
	return from, nil
}

// Cancel moves the order to cancelled with a "Cancelled: reason" note.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, reason, actor string) (*models.Order, error) {
	return s.cancel(ctx, orderID, reason, actor, nil)
}

// CancelForOwner lets a customer cancel one of their own orders.
func (s *service) CancelForOwner(ctx context.Context, owner types.Owner, orderID uuid.UUID, reason string) (*models.Order, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	return s.cancel(ctx, orderID, reason, owner.Reference(), func(order *models.Order) error {
		if !order.BelongsTo(owner) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil
	})
}

func (s *service) cancel(ctx context.Context, orderID uuid.UUID, reason, actor string, guard func(*models.Order) error) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}
	if strings.TrimSpace(actor) == "" {
		actor = "system"
	}
	notes := "Cancelled: " + reason
	input := TransitionInput{Target: enums.OrderStatusCancelled, Notes: &notes, Actor: actor}

	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cancelGuard := func(order *models.Order) error {
			if guard != nil {
				if err := guard(order); err != nil {
					return err
				}
			}
			if !s.machine.Cancellable(order.Status) {
				return pkgerrors.New(pkgerrors.CodeNotCancellable, "order cannot be cancelled in its current status").
					WithDetails(map[string]any{"status": order.Status})
			}
			return nil
		}
		var err error
		previous, err = s.apply(ctx, tx, orderID, input, cancelGuard)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(previous.String(), enums.OrderStatusCancelled.String())
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
			"from":  previous,
			"actor": actor,
		})
		s.logg.Info(logCtx, "order.cancelled")
	}
	return s.Get(ctx, orderID)
}

func (s *service) Tracking(ctx context.Context, owner types.Owner, orderID uuid.UUID) (*Tracking, error) {
	order, err := s.GetForOwner(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	tracking := BuildTracking(order)
	return &tracking, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func invalidTransition(from, to enums.OrderStatus, allowed []enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot transition order from %s to %s", from, to)).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": allowed,
		})
}
