package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), catalog.NewResolver(conn), nil)
	require.NoError(t, err)
	return svc, conn
}

func assertTotalsConsistent(t *testing.T, cart *models.Cart) {
	t.Helper()
	total := decimal.Zero
	count := 0
	for _, item := range cart.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		assert.True(t, line.Equal(item.TotalPrice), "line total %s != %s", item.TotalPrice, line)
		total = total.Add(line)
		count += item.Quantity
	}
	assert.True(t, total.Equal(cart.TotalAmount), "cart total %s != %s", cart.TotalAmount, total)
	assert.Equal(t, count, cart.TotalItems)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := NewService(nil, db.Wrap(conn), catalog.NewResolver(conn), nil)
	assert.Error(t, err)
	_, err = NewService(NewRepository(conn), nil, catalog.NewResolver(conn), nil)
	assert.Error(t, err)
	_, err = NewService(NewRepository(conn), db.Wrap(conn), nil, nil)
	assert.Error(t, err)
}

func TestGetReturnsEmptyCartForNewOwner(t *testing.T) {
	svc, _ := newTestService(t)
	cart, err := svc.Get(context.Background(), types.SessionOwner("sess-1"))
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.TotalAmount.IsZero())
	require.NotNil(t, cart.SessionID)
	assert.Equal(t, "sess-1", *cart.SessionID)
}

func TestAddItemMergesLineAndRefreshesPrice(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	product := dbtest.SeedProduct(t, conn, "MUG-1", "12.50", 10)

	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "25.00", cart.TotalAmount.StringFixed(2))

	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("price", decimal.RequireFromString("13.00")).Error)

	cart, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "13.00", cart.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "39.00", cart.TotalAmount.StringFixed(2))
	assertTotalsConsistent(t, cart)
}

func TestAddItemKeepsVariantsOnSeparateLines(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := types.SessionOwner("sess-variants")
	product := dbtest.SeedProduct(t, conn, "TEE-1", "20.00", 10)
	small := dbtest.SeedVariant(t, conn, product, "TEE-1-S", "20.00", 5)
	large := dbtest.SeedVariant(t, conn, product, "TEE-1-L", "22.00", 5)

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, VariantID: &small.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, VariantID: &large.ID, Quantity: 2})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, cart.Items, 3)
	assert.Equal(t, 4, cart.TotalItems)
	assert.Equal(t, "84.00", cart.TotalAmount.StringFixed(2))
	assertTotalsConsistent(t, cart)
}

func TestAddItemRejections(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	product := dbtest.SeedProduct(t, conn, "LIM-1", "5.00", 3)
	inactive := dbtest.SeedProduct(t, conn, "OFF-1", "5.00", 3)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 0})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: MaxQuantity + 1})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: inactive.ID, Quantity: 1})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeProductUnavailable))

	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 2})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock), "existing plus requested must be checked")

	_, err = svc.AddItem(ctx, types.Owner{}, AddItemInput{ProductID: product.ID, Quantity: 1})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	cart, err := svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestAddItemCapsMergedLine(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := types.SessionOwner("sess-cap")
	product := dbtest.SeedProduct(t, conn, "SOCK-1", "3.00", 50)

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 7})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 4})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, MaxQuantity, cart.Items[0].Quantity)
	assert.Equal(t, "30.00", cart.TotalAmount.StringFixed(2))
}

func TestUpdateItem(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := types.SessionOwner("sess-update")
	product := dbtest.SeedProduct(t, conn, "BOOK-1", "9.99", 5)

	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = svc.UpdateItem(ctx, owner, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, "39.96", cart.TotalAmount.StringFixed(2))
	assertTotalsConsistent(t, cart)

	_, err = svc.UpdateItem(ctx, owner, itemID, 6)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	cart, err = svc.UpdateItem(ctx, owner, itemID, 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.TotalAmount.IsZero())
	assert.Zero(t, cart.TotalItems)
}

func TestItemsOfAnotherOwnerAreNotFound(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	intruder := types.UserOwner(uuid.New())
	product := dbtest.SeedProduct(t, conn, "PEN-1", "1.50", 5)

	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	_, err = svc.UpdateItem(ctx, intruder, itemID, 2)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	_, err = svc.RemoveItem(ctx, intruder, itemID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	_, err = svc.RemoveItem(ctx, owner, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveAndClearKeepTotalsConsistent(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	first := dbtest.SeedProduct(t, conn, "A-1", "3.33", 10)
	second := dbtest.SeedProduct(t, conn, "B-1", "7.10", 10)

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: first.ID, Quantity: 3})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: second.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "24.19", cart.TotalAmount.StringFixed(2))
	assertTotalsConsistent(t, cart)

	cart, err = svc.RemoveItem(ctx, owner, cart.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "14.20", cart.TotalAmount.StringFixed(2))
	assertTotalsConsistent(t, cart)

	cart, err = svc.Clear(ctx, owner)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.TotalAmount.IsZero())

	_, err = svc.Clear(ctx, types.SessionOwner("never-used"))
	assert.NoError(t, err)
}

func TestUserAndSessionCartsAreSeparate(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, conn, "SEP-1", "2.00", 10)
	user := types.UserOwner(uuid.New())
	session := types.SessionOwner("sess-sep")

	_, err := svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, session, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalItems)

	var carts int64
	require.NoError(t, conn.Model(&models.Cart{}).Count(&carts).Error)
	assert.Equal(t, int64(2), carts)
}
