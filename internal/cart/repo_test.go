package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func TestDeleteAbandonedSessionCarts(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	product := dbtest.SeedProduct(t, conn, "OLD-1", "1.00", 10)

	stale := emptyCart(types.SessionOwner("stale"))
	fresh := emptyCart(types.SessionOwner("fresh"))
	userCart := emptyCart(types.UserOwner(uuid.New()))
	for _, c := range []*models.Cart{stale, fresh, userCart} {
		require.NoError(t, repo.Create(ctx, c))
		require.NoError(t, repo.CreateItem(ctx, &models.CartItem{CartID: c.ID, ProductID: product.ID, Quantity: 1, UnitPrice: product.Price, TotalPrice: product.Price}))
	}

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	require.NoError(t, conn.Model(&models.Cart{}).Where("id IN ?", []uuid.UUID{stale.ID, userCart.ID}).UpdateColumn("updated_at", old).Error)

	deleted, err := repo.DeleteAbandonedSessionCarts(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.Cart
	require.NoError(t, conn.Find(&remaining).Error)
	assert.Len(t, remaining, 2)

	var items int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("cart_id = ?", stale.ID).Count(&items).Error)
	assert.Zero(t, items)
}
