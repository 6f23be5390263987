package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// purgeFunc deletes rows older than cutoff inside tx and reports how many.
type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// retentionJob removes rows whose age exceeds maxAge in a single transaction.
type retentionJob struct {
	name   string
	logg   *logger.Logger
	db     txRunner
	maxAge time.Duration
	purge  purgeFunc
	now    func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, db txRunner, maxAge time.Duration, purge purgeFunc) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("%s: retention window must be positive", name)
	}
	return &retentionJob{
		name:   name,
		logg:   logg,
		db:     db,
		maxAge: maxAge,
		purge:  purge,
		now:    time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	var affected int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		affected = rows
		return err
	})
	if err != nil {
		return err
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"rows_affected": affected,
	})
	j.logg.Info(logCtx, "retention pass complete")
	return nil
}

// NewOrderRetentionJob soft-deletes delivered, cancelled and refunded orders
// untouched for maxAge.
func NewOrderRetentionJob(logg *logger.Logger, db txRunner, repo orders.Repository, maxAge time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return newRetentionJob("order-retention", logg, db, maxAge, func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return repo.WithTx(tx).SoftDeleteTerminalBefore(ctx, cutoff)
	})
}

// NewOutboxRetentionJob purges outbox rows published more than maxAge ago.
func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, repo outboxRetentionRepo, maxAge time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return newRetentionJob("outbox-retention", logg, db, maxAge, repo.DeletePublishedBefore)
}

// NewCartRetentionJob deletes anonymous session carts idle for maxAge.
// Customer carts are kept.
func NewCartRetentionJob(logg *logger.Logger, db txRunner, repo cart.CartRepository, maxAge time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return newRetentionJob("abandoned-cart-retention", logg, db, maxAge, func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return repo.WithTx(tx).DeleteAbandonedSessionCarts(ctx, cutoff)
	})
}
