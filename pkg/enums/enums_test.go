package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	for _, status := range OrderStatuses() {
		parsed, err := ParseOrderStatus(string(status))
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
		assert.True(t, parsed.IsValid())
	}

	_, err := ParseOrderStatus("shipped")
	assert.Error(t, err)
}

func TestOrderStatusLabels(t *testing.T) {
	assert.Equal(t, "Ready for Delivery", OrderStatusReadyForDelivery.Label())
	assert.Equal(t, "Out for Delivery", OrderStatusOutForDelivery.Label())
	assert.Equal(t, "mystery", OrderStatus("mystery").Label())
}

func TestOrderStatusIsTerminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusOutForDelivery.IsTerminal())
}

func TestParsePaymentMethod(t *testing.T) {
	method, err := ParsePaymentMethod("cash_on_delivery")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCashOnDelivery, method)
	assert.Equal(t, "Cash on Delivery", method.Label())

	_, err = ParsePaymentMethod("bitcoin")
	assert.Error(t, err)
}

func TestPaymentStatusLabels(t *testing.T) {
	assert.Equal(t, "Payment Pending", PaymentStatusPending.Label())
	assert.Equal(t, "Paid", PaymentStatusPaid.Label())
	assert.Equal(t, "Payment Failed", PaymentStatusFailed.Label())
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("agent")
	assert.Error(t, err)
}
