package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
)

// parkReason is prefixed onto last_error when a row stops being retried.
type parkReason string

const (
	parkExhausted     parkReason = "max_attempts"
	parkUndeliverable parkReason = "non_retryable"
)

// deliveryPolicy bounds how many publish attempts an event type gets before
// its row is parked.
type deliveryPolicy struct {
	maxAttempts int
}

// deliveryPolicies gives order_created and order_paid the full budget since
// downstream fulfilment and accounting cannot rebuild them. A status change
// is superseded by the next one, so it gives up sooner, never later.
func deliveryPolicies(cfg config.OutboxConfig) map[enums.OutboxEventType]deliveryPolicy {
	critical := cfg.MaxAttempts
	if critical <= 0 {
		critical = defaultMaxAttempts
	}
	status := cfg.StatusMaxAttempts
	if status <= 0 || status > critical {
		status = critical
	}
	return map[enums.OutboxEventType]deliveryPolicy{
		enums.EventOrderCreated:       {maxAttempts: critical},
		enums.EventOrderPaid:          {maxAttempts: critical},
		enums.EventOrderStatusChanged: {maxAttempts: status},
	}
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// RelayParams wires a Relay.
type RelayParams struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	Tx         txRunner
	Repository outboxRepository
	Registry   registryResolver
	Publishers func(topic string) publisher
	// Metrics is optional.
	Metrics    *metrics.OutboxMetrics
}

// Relay moves committed order events from outbox_events to Pub/Sub. Every
// message carries the order id as ordering key, and events of one order never
// overtake each other: once an order's event fails, its later events in the
// batch wait for the next round.
type Relay struct {
	logg       *logger.Logger
	tx         txRunner
	repo       outboxRepository
	registry   registryResolver
	publishers func(topic string) publisher
	metrics    *metrics.OutboxMetrics
	policies   map[enums.OutboxEventType]deliveryPolicy
	ceiling    int
	batchSize  int
	interval   time.Duration
	timeout    time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.Publishers == nil {
		return nil, errors.New("publisher lookup is required")
	}

	policies := deliveryPolicies(params.Config)
	ceiling := 0
	for _, p := range policies {
		ceiling = max(ceiling, p.maxAttempts)
	}

	r := &Relay{
		logg:       params.Logger,
		tx:         params.Tx,
		repo:       params.Repository,
		registry:   params.Registry,
		publishers: params.Publishers,
		metrics:    params.Metrics,
		policies:   policies,
		ceiling:    ceiling,
		batchSize:  params.Config.BatchSize,
		interval:   time.Duration(params.Config.PollIntervalMS) * time.Millisecond,
		timeout:    params.Config.PublishTimeout,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.interval <= 0 {
		r.interval = defaultPollInterval
	}
	if r.timeout <= 0 {
		r.timeout = defaultPublishTimeout
	}
	return r, nil
}

// roundStats summarizes one pass over the outbox.
type roundStats struct {
	published int
	retrying  int
	parked    int
	held      int
}

func (s roundStats) fields() map[string]any {
	return map[string]any{
		"published": s.published,
		"retrying":  s.retrying,
		"parked":    s.parked,
		"held":      s.held,
	}
}

// Run relays until ctx is cancelled. A round that published something is
// followed immediately by the next; otherwise the relay waits, doubling the
// wait while rounds keep failing.
func (r *Relay) Run(ctx context.Context) error {
	wait := r.interval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats, err := r.round(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox round failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case stats.published > 0:
			wait = r.interval
			continue
		default:
			wait = r.interval
		}

		timer := time.NewTimer(wait + rand.N(wait/4+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Relay) round(ctx context.Context) (roundStats, error) {
	var stats roundStats
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.ceiling)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}

		stalled := make(map[uuid.UUID]bool)
		for _, row := range rows {
			if stalled[row.AggregateID] {
				stats.held++
				r.metrics.ObserveDelivery(string(row.EventType), metrics.OutboxHeld)
				continue
			}
			delivered, err := r.deliver(ctx, tx, row)
			if err != nil {
				return err
			}
			switch delivered {
			case outcomePublished:
				stats.published++
			case outcomeParked:
				stats.parked++
			case outcomeRetrying:
				stats.retrying++
				stalled[row.AggregateID] = true
			}
			r.metrics.ObserveDelivery(string(row.EventType), delivered.String())
		}
		return nil
	})
	if err != nil {
		r.metrics.IncRoundFailure()
	}
	if err == nil && stats != (roundStats{}) {
		r.logg.Debug(r.logg.WithFields(ctx, stats.fields()), "outbox round finished")
	}
	return stats, err
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetrying
	outcomeParked
)

func (o outcome) String() string {
	switch o {
	case outcomePublished:
		return metrics.OutboxPublished
	case outcomeRetrying:
		return metrics.OutboxRetrying
	default:
		return metrics.OutboxParked
	}
}

// deliver publishes one row and records the result on it. The returned error
// is reserved for bookkeeping failures, which abort the round.
func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"order_id":      row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return outcomeParked, r.park(logCtx, tx, row, parkUndeliverable, err)
	}

	err = r.publish(ctx, row, resolved)
	if err == nil {
		if markErr := r.repo.MarkPublishedTx(tx, row.ID); markErr != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		r.logg.Info(logCtx, "order event published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) {
		return outcomeParked, r.park(logCtx, tx, row, parkUndeliverable, err)
	}
	if row.AttemptCount+1 >= r.policyFor(row.EventType).maxAttempts {
		return outcomeParked, r.park(logCtx, tx, row, parkExhausted, err)
	}

	r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "order event publish failed, will retry")
	if markErr := r.repo.MarkFailedTx(tx, row.ID, err); markErr != nil {
		return outcomeRetrying, fmt.Errorf("mark failed %s: %w", row.ID, markErr)
	}
	return outcomeRetrying, nil
}

// park stops retrying the row by setting its attempts to the fetch ceiling.
// Later events of the same order are no longer held back by it.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason parkReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"park_reason": string(reason),
		"error":       cause.Error(),
	}), "order event parked")
	if err := r.repo.MarkTerminalTx(tx, row.ID, fmt.Errorf("%s: %w", reason, cause), r.ceiling); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	return nil
}

func (r *Relay) policyFor(eventType enums.OutboxEventType) deliveryPolicy {
	if p, ok := r.policies[eventType]; ok {
		return p
	}
	return deliveryPolicy{maxAttempts: r.ceiling}
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	result := pub.Publish(publishCtx, orderMessage(row, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// orderMessage builds the Pub/Sub message. The order number and status
// attributes let subscribers filter without decoding the payload.
func orderMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":    resolved.Envelope.EventID,
		"event_type":  string(row.EventType),
		"order_id":    row.AggregateID.String(),
		"occurred_at": resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	switch p := resolved.Payload.(type) {
	case *payloads.OrderCreatedEvent:
		attrs["order_number"] = p.OrderNumber
		attrs["payment_method"] = string(p.PaymentMethod)
	case *payloads.OrderStatusChangedEvent:
		attrs["order_number"] = p.OrderNumber
		attrs["from_status"] = string(p.From)
		attrs["to_status"] = string(p.To)
	case *payloads.OrderPaidEvent:
		attrs["order_number"] = p.OrderNumber
		attrs["payment_method"] = string(p.PaymentMethod)
	}
	return &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  attrs,
		OrderingKey: row.AggregateID.String(),
	}
}
