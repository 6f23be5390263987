// Package dbtest opens isolated sqlite databases carrying the storefront schema
// for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var seq atomic.Int64

// Open returns a fresh in-memory database migrated with every model. The pool
// is capped at one connection so concurrent callers are serialized the way
// row locks would serialize them on postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.OrderPaymentHistory{},
		&models.InventoryLog{},
		&models.OutboxEvent{},
	))
	return conn
}

// SeedProduct inserts an active product with the given price and stock.
func SeedProduct(t *testing.T, conn *gorm.DB, sku, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:          "Product " + sku,
		SKU:           sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

// SeedVariant inserts an active variant of product.
func SeedVariant(t *testing.T, conn *gorm.DB, product models.Product, sku, price string, stock int) models.ProductVariant {
	t.Helper()
	variant := models.ProductVariant{
		ProductID:     product.ID,
		Name:          "Variant " + sku,
		SKU:           sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, conn.Create(&variant).Error)
	return variant
}
