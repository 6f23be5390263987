package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func TestRetentionJobCutoff(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	var got time.Time
	job, err := newRetentionJob("test", logger.Nop(), db.Wrap(conn), 48*time.Hour,
		func(_ context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			require.NotNil(t, tx)
			got = cutoff
			return 3, nil
		})
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), got)
}

func TestRetentionJobPropagatesFailure(t *testing.T) {
	conn := dbtest.Open(t)
	job, err := newRetentionJob("test", logger.Nop(), db.Wrap(conn), time.Hour,
		func(context.Context, *gorm.DB, time.Time) (int64, error) {
			return 0, errors.New("statement timeout")
		})
	require.NoError(t, err)
	require.EqualError(t, job.Run(context.Background()), "statement timeout")
}

func TestRetentionJobValidation(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := newRetentionJob("test", logger.Nop(), db.Wrap(conn), 0, nil)
	require.Error(t, err)
	_, err = NewOrderRetentionJob(logger.Nop(), db.Wrap(conn), nil, time.Hour)
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(nil, db.Wrap(conn), outbox.NewRepository(conn), time.Hour)
	require.Error(t, err)
}

func TestOutboxRetentionJob(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	events := []models.OutboxEvent{
		{PublishedAt: &old},
		{PublishedAt: &recent},
		{},
	}
	for i := range events {
		events[i].EventType = enums.EventOrderCreated
		events[i].AggregateType = enums.AggregateOrder
		events[i].AggregateID = uuid.New()
		events[i].Payload = json.RawMessage(`{}`)
		require.NoError(t, conn.Create(&events[i]).Error)
	}

	job, err := NewOutboxRetentionJob(logger.Nop(), db.Wrap(conn), outbox.NewRepository(conn), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "outbox-retention", job.Name())
	require.NoError(t, job.Run(ctx))

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, e := range remaining {
		assert.NotEqual(t, events[0].ID, e.ID)
	}
}

func TestOrderRetentionJob(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-400 * 24 * time.Hour)

	seed := func(status enums.OrderStatus, number string) models.Order {
		order := models.Order{
			OrderNumber:   number,
			Status:        status,
			PaymentStatus: enums.PaymentStatusPending,
			PaymentMethod: enums.PaymentMethodCashOnDelivery,
			Currency:      enums.CurrencyUSD,
		}
		require.NoError(t, conn.Create(&order).Error)
		require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).UpdateColumn("updated_at", old).Error)
		return order
	}
	delivered := seed(enums.OrderStatusDelivered, "VP-20251001-AAAA")
	pending := seed(enums.OrderStatusPending, "VP-20251001-BBBB")

	job, err := NewOrderRetentionJob(logger.Nop(), db.Wrap(conn), orders.NewRepository(conn), 365*24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	repo := orders.NewRepository(conn)
	_, err = repo.FindByID(ctx, delivered.ID)
	require.Error(t, err)
	kept, err := repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, kept.Status)
}

func TestCartRetentionJob(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	session := "abandoned"
	stale := models.Cart{SessionID: &session}
	require.NoError(t, conn.Create(&stale).Error)
	require.NoError(t, conn.Model(&models.Cart{}).Where("id = ?", stale.ID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-45*24*time.Hour)).Error)

	job, err := NewCartRetentionJob(logger.Nop(), db.Wrap(conn), cart.NewRepository(conn), 30*24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	var count int64
	require.NoError(t, conn.Model(&models.Cart{}).Count(&count).Error)
	assert.Zero(t, count)
}
