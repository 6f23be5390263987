package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestMachineTransitionTable(t *testing.T) {
	allowed := map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPending:          {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		enums.OrderStatusConfirmed:        {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
		enums.OrderStatusPreparing:        {enums.OrderStatusReadyForDelivery, enums.OrderStatusCancelled},
		enums.OrderStatusReadyForDelivery: {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
		enums.OrderStatusOutForDelivery:   {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
		enums.OrderStatusDelivered:        {enums.OrderStatusRefunded},
		enums.OrderStatusCancelled:        nil,
		enums.OrderStatusRefunded:         nil,
	}

	machine := NewMachine()
	for _, from := range enums.OrderStatuses() {
		targets := map[enums.OrderStatus]bool{}
		for _, to := range allowed[from] {
			targets[to] = true
		}
		for _, to := range enums.OrderStatuses() {
			assert.Equal(t, targets[to], machine.CanTransition(from, to), "%s -> %s", from, to)
		}
		assert.ElementsMatch(t, allowed[from], machine.Targets(from), "targets of %s", from)
	}
}

func TestMachineCancellable(t *testing.T) {
	machine := NewMachine()
	assert.True(t, machine.Cancellable(enums.OrderStatusPending))
	assert.True(t, machine.Cancellable(enums.OrderStatusOutForDelivery))
	assert.False(t, machine.Cancellable(enums.OrderStatusDelivered))
	assert.False(t, machine.Cancellable(enums.OrderStatusCancelled))
	assert.False(t, machine.Cancellable(enums.OrderStatusRefunded))
}

func TestMachineTargetsIsACopy(t *testing.T) {
	machine := NewMachine()
	targets := machine.Targets(enums.OrderStatusPending)
	targets[0] = enums.OrderStatusRefunded
	assert.False(t, machine.CanTransition(enums.OrderStatusPending, enums.OrderStatusRefunded))
}
