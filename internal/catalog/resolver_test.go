package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestResolveProduct(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "TEE-1", "19.99", 4)

	got, err := NewResolver(conn).Resolve(context.Background(), product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "19.99", got.UnitPrice.StringFixed(2))
	assert.Equal(t, 4, got.Available)
	assert.Equal(t, "TEE-1", got.SKU())
	assert.Nil(t, got.VariantName())
	assert.False(t, got.Target().ForVariant())
}

func TestResolveVariantUsesVariantPriceAndStock(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "TEE-2", "19.99", 4)
	variant := dbtest.SeedVariant(t, conn, product, "TEE-2-XL", "24.50", 1)

	got, err := NewResolver(conn).Resolve(context.Background(), product.ID, &variant.ID)
	require.NoError(t, err)
	assert.Equal(t, "24.50", got.UnitPrice.StringFixed(2))
	assert.Equal(t, 1, got.Available)
	assert.Equal(t, "TEE-2-XL", got.SKU())
	require.NotNil(t, got.VariantName())
	assert.True(t, got.Target().ForVariant())

	err = got.EnsureStock(2)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
	assert.NoError(t, got.EnsureStock(1))
}

func TestResolveUnavailable(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	resolver := NewResolver(conn)

	inactive := dbtest.SeedProduct(t, conn, "OFF-1", "5.00", 10)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	deleted := dbtest.SeedProduct(t, conn, "DEL-1", "5.00", 10)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", deleted.ID).Update("deleted_at", time.Now().UTC()).Error)

	other := dbtest.SeedProduct(t, conn, "OTH-1", "5.00", 10)
	foreignVariant := dbtest.SeedVariant(t, conn, other, "OTH-1-S", "5.00", 10)
	owner := dbtest.SeedProduct(t, conn, "OWN-1", "5.00", 10)

	missing := uuid.New()
	cases := []struct {
		name      string
		productID uuid.UUID
		variantID *uuid.UUID
	}{
		{name: "missing product", productID: missing},
		{name: "inactive product", productID: inactive.ID},
		{name: "soft deleted product", productID: deleted.ID},
		{name: "variant of another product", productID: owner.ID, variantID: &foreignVariant.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(ctx, tc.productID, tc.variantID)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeProductUnavailable), "got %v", err)
		})
	}
}
