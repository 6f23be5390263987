package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/stock"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type harness struct {
	conn     *gorm.DB
	carts    cart.Service
	checkout Service
}

func newHarness(t *testing.T, ledger stockLedger) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	resolver := catalog.NewResolver(conn)
	carts, err := cart.NewService(cart.NewRepository(conn), db.Wrap(conn), resolver, nil)
	require.NoError(t, err)
	if ledger == nil {
		ledger = stock.NewLedger()
	}
	svc, err := NewService(Deps{
		Tx:       db.Wrap(conn),
		Carts:    cart.NewRepository(conn),
		Orders:   orders.NewRepository(conn),
		Resolver: resolver,
		Ledger:   ledger,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return &harness{conn: conn, carts: carts, checkout: svc}
}

func (h *harness) add(t *testing.T, owner types.Owner, productID uuid.UUID, variantID *uuid.UUID, qty int) {
	t.Helper()
	_, err := h.carts.AddItem(context.Background(), owner, cart.AddItemInput{ProductID: productID, VariantID: variantID, Quantity: qty})
	require.NoError(t, err)
}

func (h *harness) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, h.conn.Where("id = ?", productID).Take(&p).Error)
	return p.StockQuantity
}

func (h *harness) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func address() types.Address {
	return types.Address{
		FirstName:    "Alan",
		LastName:     "Turing",
		AddressLine1: "Bletchley Park",
		City:         "Milton Keynes",
		State:        "BKM",
		PostalCode:   "MK3 6EB",
		Country:      "GB",
	}
}

func input(owner types.Owner, method enums.PaymentMethod) Input {
	return Input{
		Owner: owner,
		OrderDetails: helpers.OrderDetails{
			PaymentMethod:   method,
			ShippingAddress: address(),
			BillingAddress:  address(),
		},
	}
}

func TestExecuteCreatesOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	shirt := dbtest.SeedProduct(t, h.conn, "SHIRT", "50.00", 5)
	jacket := dbtest.SeedProduct(t, h.conn, "JACKET", "99.00", 3)
	large := dbtest.SeedVariant(t, h.conn, jacket, "JACKET-L", "80.00", 2)
	h.add(t, owner, shirt.ID, nil, 2)
	h.add(t, owner, jacket.ID, &large.ID, 1)

	order, err := h.checkout.Execute(ctx, input(owner, enums.PaymentMethodCreditCard))
	require.NoError(t, err)

	assert.Regexp(t, `^VP-\d{8}-[A-Z0-9]{4}$`, order.OrderNumber)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, enums.CurrencyUSD, order.Currency)
	assert.Equal(t, "180.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", order.ShippingAmount.StringFixed(2))
	assert.Equal(t, "18.00", order.TaxAmount.StringFixed(2))
	assert.Equal(t, "198.00", order.TotalAmount.StringFixed(2))
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Sub(order.DiscountAmount).Add(order.ShippingAmount).Add(order.TaxAmount)))
	assert.Equal(t, "Bletchley Park", order.Shipping.AddressLine1)
	assert.Equal(t, "Turing", order.Billing.LastName)

	require.Len(t, order.Items, 2)
	byName := map[string]models.OrderItem{}
	for _, item := range order.Items {
		byName[item.ProductSKU] = item
	}
	assert.Equal(t, "100.00", byName["SHIRT"].TotalPrice.StringFixed(2))
	assert.Equal(t, "10.00", byName["SHIRT"].TaxAmount.StringFixed(2))
	require.NotNil(t, byName["JACKET-L"].VariantName)
	assert.Equal(t, "Variant JACKET-L", *byName["JACKET-L"].VariantName)
	assert.Equal(t, "80.00", byName["JACKET-L"].UnitPrice.StringFixed(2))

	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, enums.OrderStatusPending, order.StatusHistory[0].Status)
	assert.Nil(t, order.StatusHistory[0].PreviousStatus)
	require.NotNil(t, order.StatusHistory[0].Notes)
	assert.Equal(t, "Order created - Credit Card", *order.StatusHistory[0].Notes)

	assert.Equal(t, 3, h.stockOf(t, shirt.ID))
	assert.Equal(t, 3, h.stockOf(t, jacket.ID), "variant purchase must not touch product stock")
	var variant models.ProductVariant
	require.NoError(t, h.conn.Where("id = ?", large.ID).Take(&variant).Error)
	assert.Equal(t, 1, variant.StockQuantity)

	var logs int64
	require.NoError(t, h.conn.Model(&models.InventoryLog{}).Where("reference = ?", order.OrderNumber).Count(&logs).Error)
	assert.Equal(t, int64(2), logs)

	events, err := outbox.NewRepository(h.conn).ListForAggregate(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)

	emptied, err := h.carts.Get(ctx, owner)
	require.NoError(t, err)
	assert.True(t, emptied.IsEmpty())
	assert.True(t, emptied.TotalAmount.IsZero())
	assert.Zero(t, emptied.TotalItems)
	assert.NotEqual(t, uuid.Nil, emptied.ID, "the cart is emptied, not destroyed")
}

func TestExecuteChargesShippingBelowThreshold(t *testing.T) {
	h := newHarness(t, nil)
	owner := types.SessionOwner("sess-small")
	mug := dbtest.SeedProduct(t, h.conn, "MUG", "50.00", 5)
	h.add(t, owner, mug.ID, nil, 1)

	order, err := h.checkout.Execute(context.Background(), input(owner, enums.PaymentMethodCashOnDelivery))
	require.NoError(t, err)
	assert.Equal(t, "15.00", order.ShippingAmount.StringFixed(2))
	assert.Equal(t, "5.00", order.TaxAmount.StringFixed(2))
	assert.Equal(t, "70.00", order.TotalAmount.StringFixed(2))
	require.NotNil(t, order.SessionID)
	assert.Nil(t, order.UserID)
	assert.Equal(t, "session:sess-small", order.StatusHistory[0].Actor)
}

func TestExecuteEmptyCart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())

	_, err := h.checkout.Execute(ctx, input(owner, enums.PaymentMethodPayPal))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEmptyCart))

	p := dbtest.SeedProduct(t, h.conn, "GONE", "5.00", 5)
	h.add(t, owner, p.ID, nil, 1)
	_, err = h.carts.Clear(ctx, owner)
	require.NoError(t, err)

	_, err = h.checkout.Execute(ctx, input(owner, enums.PaymentMethodPayPal))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEmptyCart))
	assert.Zero(t, h.countOrders(t))
}

func TestExecuteValidation(t *testing.T) {
	h := newHarness(t, nil)
	owner := types.UserOwner(uuid.New())
	p := dbtest.SeedProduct(t, h.conn, "VAL", "5.00", 5)
	h.add(t, owner, p.ID, nil, 1)

	in := input(owner, "barter")
	in.ShippingAddress.PostalCode = ""
	_, err := h.checkout.Execute(context.Background(), in)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.checkout.Execute(context.Background(), input(types.Owner{}, enums.PaymentMethodPayPal))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	assert.Zero(t, h.countOrders(t))
}

func TestExecuteRejectsUnavailableProductBeforeWriting(t *testing.T) {
	h := newHarness(t, nil)
	owner := types.UserOwner(uuid.New())
	keep := dbtest.SeedProduct(t, h.conn, "KEEP", "10.00", 5)
	retired := dbtest.SeedProduct(t, h.conn, "RETIRED", "10.00", 5)
	h.add(t, owner, keep.ID, nil, 1)
	h.add(t, owner, retired.ID, nil, 1)
	require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", retired.ID).Update("is_active", false).Error)

	_, err := h.checkout.Execute(context.Background(), input(owner, enums.PaymentMethodCreditCard))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeProductUnavailable))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, retired.ID.String(), details["product_id"])
	assert.Equal(t, "Product RETIRED", details["product_name"])

	assert.Zero(t, h.countOrders(t))
	assert.Equal(t, 5, h.stockOf(t, keep.ID))
	c, err := h.carts.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
}

func TestExecuteRevalidatesStock(t *testing.T) {
	h := newHarness(t, nil)
	owner := types.UserOwner(uuid.New())
	lamp := dbtest.SeedProduct(t, h.conn, "LAMP", "30.00", 5)
	h.add(t, owner, lamp.ID, nil, 3)
	require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", lamp.ID).Update("stock_quantity", 2).Error)

	_, err := h.checkout.Execute(context.Background(), input(owner, enums.PaymentMethodCreditCard))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "Product LAMP", details["product_name"])
	assert.Equal(t, 2, details["available"])

	assert.Zero(t, h.countOrders(t))
	assert.Equal(t, 2, h.stockOf(t, lamp.ID))
}

// failingLedger decrements through the real ledger until it has served
// failAfter calls, then reports a lost race.
type failingLedger struct {
	real      *stock.Ledger
	failAfter int
	calls     int
}

func (f *failingLedger) DecrementIfAvailable(ctx context.Context, tx *gorm.DB, target stock.Target, qty int, ref string) error {
	f.calls++
	if f.calls > f.failAfter {
		return stock.InsufficientStockError(target, "", qty, 0)
	}
	return f.real.DecrementIfAvailable(ctx, tx, target, qty, ref)
}

func TestExecuteRollsBackEverythingOnLateStockFailure(t *testing.T) {
	ledger := &failingLedger{real: stock.NewLedger(), failAfter: 1}
	h := newHarness(t, ledger)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	first := dbtest.SeedProduct(t, h.conn, "FIRST", "10.00", 5)
	second := dbtest.SeedProduct(t, h.conn, "SECOND", "10.00", 5)
	h.add(t, owner, first.ID, nil, 2)
	h.add(t, owner, second.ID, nil, 2)

	_, err := h.checkout.Execute(ctx, input(owner, enums.PaymentMethodCreditCard))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, "Product SECOND", pkgerrors.As(err).Details().(map[string]any)["product_name"])

	assert.Zero(t, h.countOrders(t))
	assert.Equal(t, 5, h.stockOf(t, first.ID), "the first decrement must be rolled back")
	assert.Equal(t, 5, h.stockOf(t, second.ID))
	for _, table := range []any{&models.OrderItem{}, &models.OrderStatusHistory{}, &models.InventoryLog{}, &models.OutboxEvent{}} {
		var n int64
		require.NoError(t, h.conn.Model(table).Count(&n).Error)
		assert.Zero(t, n, "%T rows left behind", table)
	}
	c, err := h.carts.Get(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
	assert.Equal(t, "40.00", c.TotalAmount.StringFixed(2))
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	h := newHarness(t, nil)
	last := dbtest.SeedProduct(t, h.conn, "LAST", "20.00", 1)
	owners := []types.Owner{types.UserOwner(uuid.New()), types.SessionOwner("sess-race")}
	for _, owner := range owners {
		h.add(t, owner, last.ID, nil, 1)
	}

	var wg sync.WaitGroup
	results := make([]error, len(owners))
	for i, owner := range owners {
		wg.Add(1)
		go func(i int, owner types.Owner) {
			defer wg.Done()
			_, results[i] = h.checkout.Execute(context.Background(), input(owner, enums.PaymentMethodCreditCard))
		}(i, owner)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, h.stockOf(t, last.ID))
	assert.Equal(t, int64(1), h.countOrders(t))
}

func TestOrderItemsAreSnapshots(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	book := dbtest.SeedProduct(t, h.conn, "BOOK", "12.00", 5)
	h.add(t, owner, book.ID, nil, 1)

	order, err := h.checkout.Execute(ctx, input(owner, enums.PaymentMethodBankTransfer))
	require.NoError(t, err)

	require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", book.ID).Updates(map[string]any{
		"name":  "Renamed",
		"price": decimal.RequireFromString("99.00"),
	}).Error)

	reloaded, err := orders.NewRepository(h.conn).FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, "Product BOOK", reloaded.Items[0].ProductName)
	assert.Equal(t, "12.00", reloaded.Items[0].UnitPrice.StringFixed(2))

	err = h.conn.Save(&reloaded.Items[0]).Error
	assert.True(t, errors.Is(err, models.ErrImmutableRow))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

// unindexedNumbers hides existing order numbers from the pre-insert check,
// as a concurrent checkout committing in between would.
type unindexedNumbers struct {
	orders.Repository
}

func (u unindexedNumbers) WithTx(tx *gorm.DB) orders.Repository {
	return unindexedNumbers{Repository: u.Repository.WithTx(tx)}
}

func (unindexedNumbers) ExistsByNumber(context.Context, string) (bool, error) {
	return false, nil
}

func TestExecuteDrawsNewNumberWhenInsertCollides(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	resolver := catalog.NewResolver(conn)
	carts, err := cart.NewService(cart.NewRepository(conn), db.Wrap(conn), resolver, nil)
	require.NoError(t, err)

	numbers := NewOrderNumberGenerator("VP")
	numbers.now = func() time.Time { return time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC) }
	fixedSuffixes(numbers, "AAAA", "AAAA", "BBBB")

	svc, err := NewService(Deps{
		Tx:       db.Wrap(conn),
		Carts:    cart.NewRepository(conn),
		Orders:   unindexedNumbers{Repository: orders.NewRepository(conn)},
		Resolver: resolver,
		Ledger:   stock.NewLedger(),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Numbers:  numbers,
	})
	require.NoError(t, err)

	hat := dbtest.SeedProduct(t, conn, "CAP", "20.00", 5)
	first := types.UserOwner(uuid.New())
	second := types.SessionOwner("sess-late")
	for _, owner := range []types.Owner{first, second} {
		_, err := carts.AddItem(ctx, owner, cart.AddItemInput{ProductID: hat.ID, Quantity: 1})
		require.NoError(t, err)
	}

	a, err := svc.Execute(ctx, input(first, enums.PaymentMethodPayPal))
	require.NoError(t, err)
	assert.Equal(t, "VP-20260102-AAAA", a.OrderNumber)

	b, err := svc.Execute(ctx, input(second, enums.PaymentMethodPayPal))
	require.NoError(t, err)
	assert.Equal(t, "VP-20260102-BBBB", b.OrderNumber)
	require.Len(t, b.Items, 1)
	require.Len(t, b.StatusHistory, 1)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	var p models.Product
	require.NoError(t, conn.Where("id = ?", hat.ID).Take(&p).Error)
	assert.Equal(t, 3, p.StockQuantity)
}
